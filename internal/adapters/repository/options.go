package repository

import (
	"time"

	"github.com/okian/perfscore/pkg/logger"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithFault installs a fault hook at construction.
func WithFault(f Fault) MemoryOption {
	return func(s *MemoryStore) {
		s.fault = f
	}
}

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithOpTimeout bounds each MongoDB round trip.
func WithOpTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithMongoLogger sets the logger used for connection lifecycle messages.
func WithMongoLogger(l logger.Logger) MongoOption {
	return func(s *MongoStore) {
		if l != nil {
			s.log = l
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*sqlSettings)

type sqlSettings struct {
	maxOpenConns int
	log          logger.Logger
}

// WithMaxOpenConns caps the connection pool. In-memory sqlite needs one.
func WithMaxOpenConns(n int) SQLOption {
	return func(s *sqlSettings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithSQLLogger sets the logger used for connection lifecycle messages.
func WithSQLLogger(l logger.Logger) SQLOption {
	return func(s *sqlSettings) {
		if l != nil {
			s.log = l
		}
	}
}
