package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/perfscore/internal/adapters/mq/queue"
	"github.com/okian/perfscore/internal/domain/model"
)

// maxEventBody bounds a POST /events payload.
const maxEventBody = 1 << 20

// EventDependencies defines the interface for event intake.
type EventDependencies interface {
	// Enqueue queues ev for the workers. It reports duplicates without
	// error and returns queue.ErrQueueFull on backpressure.
	Enqueue(ctx context.Context, ev model.TaskEvent) (duplicate bool, err error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ev := req.toEvent()
	duplicate, err := h.deps.Enqueue(r.Context(), ev)
	switch {
	case errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", EventID: ev.EventID, Duplicate: true})
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: ev.EventID})
	}
}
