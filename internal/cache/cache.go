// Package cache holds the in-process team caches in front of the team
// directory.
//
// Both caches are cleared wholesale once the TTL has elapsed since the last
// clear. Expiry is checked lazily on access; there is no background timer.
// Writes elsewhere do not invalidate entries, so readers may see data up to
// one TTL old.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/perfscore/internal/adapters/repository"
	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// DefaultTTL is the wholesale clear interval.
const DefaultTTL = 5 * time.Minute

// Cache names used in metrics and logs.
const (
	NameTeamByID     = "team_by_id"
	NameTeamsForUser = "teams_for_user"
)

// Clear reasons.
const (
	ReasonTTL          = "ttl"
	ReasonMemberStatus = "member_status"
	ReasonManual       = "manual"
)

// table is a plain map guarded by the Coordinator's mutex.
type table[T any] map[string]T

func (t table[T]) get(key string) (T, bool) {
	v, ok := t[key]
	return v, ok
}

// Coordinator caches team lookups and implements repository.TeamDirectory.
type Coordinator struct {
	next    repository.TeamDirectory
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Manager
	log     logger.Logger

	mu        sync.Mutex
	byID      table[model.Team]
	byUser    table[[]model.Team]
	lastClear time.Time
}

var _ repository.TeamDirectory = (*Coordinator)(nil)

// New wraps next with the team caches.
func New(next repository.TeamDirectory, opts ...Option) *Coordinator {
	c := &Coordinator{
		next:   next,
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    logger.Nop(),
		byID:   make(table[model.Team]),
		byUser: make(table[[]model.Team]),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastClear = c.now()
	return c
}

// TeamByID implements repository.TeamDirectory. Errors are not cached.
func (c *Coordinator) TeamByID(ctx context.Context, teamID string) (model.Team, error) {
	c.mu.Lock()
	c.expireLocked(ctx)
	t, ok := c.byID.get(teamID)
	c.mu.Unlock()
	if ok {
		c.metrics.RecordCacheLookup(NameTeamByID, metrics.ResultHit)
		return t.Clone(), nil
	}
	c.metrics.RecordCacheLookup(NameTeamByID, metrics.ResultMiss)

	t, err := c.next.TeamByID(ctx, teamID)
	if err != nil {
		return model.Team{}, err
	}
	c.mu.Lock()
	c.byID[teamID] = t.Clone()
	c.mu.Unlock()
	return t, nil
}

// TeamsForUser implements repository.TeamDirectory. Errors are not cached.
func (c *Coordinator) TeamsForUser(ctx context.Context, userID string) ([]model.Team, error) {
	c.mu.Lock()
	c.expireLocked(ctx)
	teams, ok := c.byUser.get(userID)
	c.mu.Unlock()
	if ok {
		c.metrics.RecordCacheLookup(NameTeamsForUser, metrics.ResultHit)
		return cloneTeams(teams), nil
	}
	c.metrics.RecordCacheLookup(NameTeamsForUser, metrics.ResultMiss)

	teams, err := c.next.TeamsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byUser[userID] = cloneTeams(teams)
	c.mu.Unlock()
	return teams, nil
}

// Clear drops both caches.
func (c *Coordinator) Clear(ctx context.Context, reason string) {
	c.mu.Lock()
	c.clearLocked(ctx, reason)
	c.mu.Unlock()
}

// Len returns the number of cached entries per cache.
func (c *Coordinator) Len() (byID, byUser int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID), len(c.byUser)
}

func (c *Coordinator) expireLocked(ctx context.Context) {
	if c.now().Sub(c.lastClear) >= c.ttl {
		c.clearLocked(ctx, ReasonTTL)
	}
}

func (c *Coordinator) clearLocked(ctx context.Context, reason string) {
	dropped := len(c.byID) + len(c.byUser)
	c.byID = make(table[model.Team])
	c.byUser = make(table[[]model.Team])
	c.lastClear = c.now()
	c.metrics.RecordCacheClear(reason)
	if dropped > 0 {
		c.log.Debug(ctx, "team caches cleared", logger.String("reason", reason), logger.Int("dropped", dropped))
	}
}

func cloneTeams(in []model.Team) []model.Team {
	if in == nil {
		return nil
	}
	out := make([]model.Team, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
