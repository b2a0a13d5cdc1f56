package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/okian/perfscore/internal/domain/model"
)

// Operation names passed to a Fault.
const (
	OpTasksForUser  = "tasks_for_user"
	OpTeamsForUser  = "teams_for_user"
	OpTeamByID      = "team_by_id"
	OpFindScore     = "find_score"
	OpReplaceScore  = "replace_score"
	OpBulkUpsert    = "bulk_upsert"
	OpUpdateMetrics = "update_metrics"
	OpUpdateStatus  = "update_status"
)

// Fault decides whether an operation fails. key is the team id for
// team-scoped operations and the user id otherwise.
type Fault func(op, key string) error

// MemoryStore is an in-process Store. It backs the default deployment and
// the engine tests, which drive failure paths through SetFault.
type MemoryStore struct {
	mu     sync.RWMutex
	tasks  map[string]model.Task
	teams  map[string]model.Team
	scores map[string]model.PerformanceScore // by user/team
	calls  map[string]int
	fault  Fault
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks:  make(map[string]model.Task),
		teams:  make(map[string]model.Team),
		scores: make(map[string]model.PerformanceScore),
		calls:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func scoreKey(userID, teamID string) string { return userID + "/" + teamID }

// SetFault installs f, or clears it when f is nil.
func (s *MemoryStore) SetFault(f Fault) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// Calls returns how many times op was invoked, including failed calls.
func (s *MemoryStore) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// enter counts the call and evaluates the fault. Caller holds mu.
func (s *MemoryStore) enter(op, key string) error {
	s.calls[op]++
	if s.fault != nil {
		return s.fault(op, key)
	}
	return nil
}

// PutTask stores or replaces a task.
func (s *MemoryStore) PutTask(_ context.Context, t model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.mu.Lock()
	t.AssignedTo = append([]string(nil), t.AssignedTo...)
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return nil
}

// PutTeam stores or replaces a team. Malformed ids are accepted so callers
// can reproduce legacy data.
func (s *MemoryStore) PutTeam(_ context.Context, t model.Team) error {
	s.mu.Lock()
	s.teams[t.ID] = t.Clone()
	s.mu.Unlock()
	return nil
}

// TasksForUser implements TaskDirectory.
func (s *MemoryStore) TasksForUser(_ context.Context, userID string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTasksForUser, userID); err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range s.tasks {
		for _, a := range t.AssignedTo {
			if a == userID {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TeamsForUser implements TeamDirectory. Teams are returned in id order.
func (s *MemoryStore) TeamsForUser(_ context.Context, userID string) ([]model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTeamsForUser, userID); err != nil {
		return nil, err
	}
	var out []model.Team
	for _, t := range s.teams {
		if _, ok := t.Member(userID); ok {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TeamByID implements TeamDirectory.
func (s *MemoryStore) TeamByID(_ context.Context, teamID string) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpTeamByID, teamID); err != nil {
		return model.Team{}, err
	}
	t, ok := s.teams[teamID]
	if !ok {
		return model.Team{}, ErrNotFound
	}
	return t.Clone(), nil
}

// FindScore implements ScoreStore.
func (s *MemoryStore) FindScore(_ context.Context, userID, teamID string) (model.PerformanceScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFindScore, keyFor(userID, teamID)); err != nil {
		return model.PerformanceScore{}, err
	}
	ps, ok := s.scores[scoreKey(userID, teamID)]
	if !ok {
		return model.PerformanceScore{}, ErrNotFound
	}
	return ps.Clone(), nil
}

// ReplaceScore implements ScoreStore. A record with the same ID under a
// different (user, team) pair is moved.
func (s *MemoryStore) ReplaceScore(_ context.Context, score model.PerformanceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpReplaceScore, keyFor(score.UserID, score.TeamID)); err != nil {
		return err
	}
	if score.ID == "" {
		return ErrInvalidKey
	}
	for k, existing := range s.scores {
		if existing.ID == score.ID && k != scoreKey(score.UserID, score.TeamID) {
			delete(s.scores, k)
		}
	}
	s.scores[scoreKey(score.UserID, score.TeamID)] = score.Clone()
	return nil
}

// BulkUpsertScores implements ScoreStore. The fault sees an empty key.
func (s *MemoryStore) BulkUpsertScores(_ context.Context, scores []model.PerformanceScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpBulkUpsert, ""); err != nil {
		return err
	}
	for _, ps := range scores {
		k := scoreKey(ps.UserID, ps.TeamID)
		if existing, ok := s.scores[k]; ok && ps.ID == "" {
			ps.ID = existing.ID
		}
		s.scores[k] = ps.Clone()
	}
	return nil
}

// NewScoreID implements ScoreStore.
func (s *MemoryStore) NewScoreID() string { return uuid.NewString() }

// UpdateMemberMetrics implements MemberMetricsWriter.
func (s *MemoryStore) UpdateMemberMetrics(_ context.Context, teamID, userID string, m model.MemberMetrics) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateMetrics, teamID); err != nil {
		return false, err
	}
	return s.updateMember(teamID, userID, func(mb *model.Member) {
		mb.Metrics = m
		mb.PerformanceScore = m.Score
		mb.CompletedTasks = m.CompletedTasks
	}), nil
}

// UpdateMemberStatus implements MemberStatusWriter.
func (s *MemoryStore) UpdateMemberStatus(_ context.Context, teamID, userID, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdateStatus, teamID); err != nil {
		return false, err
	}
	return s.updateMember(teamID, userID, func(mb *model.Member) { mb.Status = status }), nil
}

// updateMember applies fn to the matching member. Caller holds mu.
func (s *MemoryStore) updateMember(teamID, userID string, fn func(*model.Member)) bool {
	t, ok := s.teams[teamID]
	if !ok {
		return false
	}
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			t = t.Clone()
			fn(&t.Members[i])
			s.teams[teamID] = t
			return true
		}
	}
	return false
}

// ValidKey accepts any non-blank id without whitespace.
func (s *MemoryStore) ValidKey(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}

// Close implements Store.
func (s *MemoryStore) Close(context.Context) error { return nil }

// keyFor picks the fault key of a score operation.
func keyFor(userID, teamID string) string {
	if teamID != "" {
		return teamID
	}
	return userID
}
