package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeBody decodes the request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, driven.ErrNotFound)
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// UpdateMessageRequest is the JSON body for the message flag endpoint. Nil
// fields are left unchanged.
type UpdateMessageRequest struct {
	Archived *bool `json:"archived"`
	Starred  *bool `json:"starred"`
}

// UpdateEventRequest is the JSON body for the event flag endpoint.
type UpdateEventRequest struct {
	Dismissed *bool `json:"dismissed"`
}

// TaskRequest is the JSON body for task create and update. On update, empty
// fields are left unchanged and Completed only applies when present.
type TaskRequest struct {
	Title     string `json:"title"`
	Priority  string `json:"priority"`
	DueDate   string `json:"due_date"`
	Category  string `json:"category"`
	Completed *bool  `json:"completed"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Time       string            `json:"time"`
}
