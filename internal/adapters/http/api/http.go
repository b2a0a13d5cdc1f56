// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/perfscore/internal/domain/model"
	"github.com/okian/perfscore/internal/engine"
	"github.com/okian/perfscore/pkg/logger"
	"github.com/okian/perfscore/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	ScoreDependencies
	MemberDependencies
}

// Server wires HTTP routes for the operator API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	scoresHandler  *ScoresHandler
	membersHandler *MembersHandler

	metrics *metrics.Manager
	logger  logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, m *metrics.Manager, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:  NewHealthHandler(m),
		statsHandler:   NewStatsHandler(statsProvider),
		eventsHandler:  NewEventsHandler(deps),
		scoresHandler:  NewScoresHandler(deps),
		membersHandler: NewMembersHandler(deps),
		metrics:        m,
		logger:         log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", s.MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", s.MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/scores/", s.MetricsMiddleware(s.scoresHandler.HandleGetScore, "scores"))
	mux.HandleFunc("/teams/", s.MetricsMiddleware(s.membersHandler.HandlePutStatus, "member_status"))
}

// eventRequest mirrors the task event payload of POST /events.
type eventRequest struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	UserID    string      `json:"user_id"`
	Task      *model.Task `json:"task,omitempty"`
	Completed bool        `json:"completed"`
	TS        string      `json:"ts"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(e.Type) == "":
		return errors.New("missing type")
	}
	if e.TS != "" {
		if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// toEvent converts a validated request. A request without an event id gets
// a fresh one so the caller can see it in the acknowledgement.
func (e eventRequest) toEvent() model.TaskEvent {
	ev := model.TaskEvent{
		EventID:   strings.TrimSpace(e.EventID),
		Type:      model.EventType(strings.TrimSpace(e.Type)),
		UserID:    strings.TrimSpace(e.UserID),
		Task:      e.Task,
		Completed: e.Completed,
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if e.TS != "" {
		ev.TS, _ = time.Parse(time.RFC3339, e.TS)
	}
	return ev
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeEngineError maps an engine error kind to a status code.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, engine.ErrTransientStore):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// pathParts splits the path after prefix into non-empty segments.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
