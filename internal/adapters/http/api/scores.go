package api

import (
	"context"
	"net/http"

	"github.com/okian/perfscore/internal/domain/model"
)

// ScoreDependencies defines the interface for score reads.
type ScoreDependencies interface {
	GetScore(ctx context.Context, userID, teamID string) (model.PerformanceScore, error)
}

// ScoresHandler handles score requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleGetScore handles GET /scores/{user_id}?team={team_id} requests.
// Without team the team-less record is returned.
func (h *ScoresHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	parts := pathParts(r.URL.Path, "/scores/")
	if len(parts) != 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	ps, err := h.deps.GetScore(r.Context(), parts[0], r.URL.Query().Get("team"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
