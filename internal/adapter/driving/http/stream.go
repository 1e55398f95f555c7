package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/evanhall/daybrief/internal/domain/model"
)

// Stream serves the realtime update channel as server-sent events. Events
// are framed as `data: <json>` lines; clients see an initial status event,
// periodic heartbeats, and a REFRESH_DASHBOARD event whenever a background
// sync changed their mirror.
//
// Authentication failures are reported inside the stream as an error event
// so EventSource clients, which cannot inspect response bodies on failure,
// still learn why the stream ended.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable response buffering in nginx-style proxies, which would
	// otherwise hold events back.
	w.Header().Set("X-Accel-Buffering", "no")

	user, authed := h.resolveUser(r)
	if !authed {
		w.WriteHeader(http.StatusUnauthorized)
		writeSSE(w, model.UpdateEvent{
			Type:    model.EventError,
			Message: "authentication required",
		})
		flusher.Flush()
		return
	}

	w.WriteHeader(http.StatusOK)

	events, cancel := h.hub.Subscribe(r.Context(), user.ID)
	defer cancel()

	for event := range events {
		if err := writeSSE(w, event); err != nil {
			// Client went away; the deferred cancel tears down the
			// subscription.
			return
		}
		flusher.Flush()
	}
}

// writeSSE writes one event in SSE data framing.
func writeSSE(w http.ResponseWriter, event model.UpdateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
