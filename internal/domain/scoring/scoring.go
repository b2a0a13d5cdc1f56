// Package scoring converts task outcomes into bounded performance scores.
//
// Two formulas live here and they are deliberately kept apart:
//   - the batch formula (TaskScore + Aggregate) rebuilds a score from the
//     full task list of a user within one team;
//   - the incremental formula (IncrementalDelta) applies one delta for a
//     single task transition.
//
// They measure the same quantity and are not guaranteed to agree. Callers
// select one through the Strategy interface.
package scoring

import (
	"math"
	"time"

	"github.com/okian/perfscore/internal/domain/model"
)

// Strategy names.
const (
	BatchStrategyName       = "batch"
	IncrementalStrategyName = "incremental"
)

// Input carries what a strategy needs. Batch strategies read Tasks and
// TeamID; incremental strategies read Task and Completed.
type Input struct {
	Tasks     []model.Task
	TeamID    string
	Task      model.Task
	Completed bool
}

// Outcome describes the change a strategy produced.
type Outcome struct {
	Strategy string
	Delta    float64
	Entry    model.ScoreHistoryEntry
	Policy   string // history trimming policy applied
	Trimmed  int
}

// Strategy maps a previous score record and an input to the next record.
// Implementations never mutate prev.
type Strategy interface {
	Name() string
	Next(prev model.PerformanceScore, in Input, now time.Time) (model.PerformanceScore, Outcome)
}

// Option configures a strategy.
type Option func(*options)

type options struct {
	historyLimit int
}

// WithHistoryLimit bounds the retained history. Values <= 0 are ignored.
func WithHistoryLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{historyLimit: model.DefaultHistoryLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Clamp bounds score to [MinScore, MaxScore]. NaN maps to MinScore.
func Clamp(score float64) float64 {
	if math.IsNaN(score) {
		return model.MinScore
	}
	return math.Max(model.MinScore, math.Min(model.MaxScore, score))
}

// days returns d expressed in fractional days.
func days(d time.Duration) float64 {
	return d.Hours() / 24
}
