package scoring

import (
	"sort"

	"github.com/okian/perfscore/internal/domain/model"
)

// History trimming policies.
const (
	PolicyByAge    = "by_age"
	PolicyByAppend = "by_append"
)

// TrimByAge keeps the limit most recent entries by date. When trimming
// happens the result is ordered newest first; otherwise history is returned
// unchanged. The second result is the number of evicted entries.
func TrimByAge(history []model.ScoreHistoryEntry, limit int) ([]model.ScoreHistoryEntry, int) {
	if limit <= 0 || len(history) <= limit {
		return history, 0
	}
	sorted := make([]model.ScoreHistoryEntry, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted[:limit], len(history) - limit
}

// TrimByAppend keeps the last limit appended entries in append order.
func TrimByAppend(history []model.ScoreHistoryEntry, limit int) ([]model.ScoreHistoryEntry, int) {
	if limit <= 0 || len(history) <= limit {
		return history, 0
	}
	evicted := len(history) - limit
	out := make([]model.ScoreHistoryEntry, limit)
	copy(out, history[evicted:])
	return out, evicted
}
