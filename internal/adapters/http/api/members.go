package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// MemberDependencies defines the interface for member status changes.
type MemberDependencies interface {
	UpdateMemberStatus(ctx context.Context, teamID, userID, status string) (bool, error)
}

// MembersHandler handles member status requests.
type MembersHandler struct {
	deps MemberDependencies
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(deps MemberDependencies) *MembersHandler {
	return &MembersHandler{deps: deps}
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandlePutStatus handles PUT /teams/{team_id}/members/{user_id}/status.
func (h *MembersHandler) HandlePutStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_member_status"
	parts := pathParts(r.URL.Path, "/teams/")
	if r.Method != http.MethodPut || len(parts) != 4 || parts[1] != "members" || parts[3] != "status" {
		http.NotFound(w, r)
		return
	}
	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ok, err := h.deps.UpdateMemberStatus(r.Context(), parts[0], parts[2], req.Status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found",
			WrapKind(op, ErrNotFound, fmt.Errorf("user %s is not a member of team %s", parts[2], parts[0])))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
