// Package httphandler is the HTTP driving adapter serving the REST API and
// the realtime event stream.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/evanhall/daybrief/internal/application"
	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// Pinger reports whether a backing component is reachable.
type Pinger func(ctx context.Context) error

// Handler serves the REST API.
type Handler struct {
	users      driven.UserStore
	messages   driven.MessageStore
	events     driven.EventStore
	tasks      driven.TaskStore
	notifs     driven.NotificationStore
	dashboard  *application.DashboardService
	snapshots  *application.SnapshotService
	hub        *application.RealtimeHub
	limiter    *application.RateLimiter
	pingDB     Pinger
	pingBroker Pinger
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	users driven.UserStore,
	messages driven.MessageStore,
	events driven.EventStore,
	tasks driven.TaskStore,
	notifs driven.NotificationStore,
	dashboard *application.DashboardService,
	snapshots *application.SnapshotService,
	hub *application.RealtimeHub,
	limiter *application.RateLimiter,
	pingDB, pingBroker Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		users:      users,
		messages:   messages,
		events:     events,
		tasks:      tasks,
		notifs:     notifs,
		dashboard:  dashboard,
		snapshots:  snapshots,
		hub:        hub,
		limiter:    limiter,
		pingDB:     pingDB,
		pingBroker: pingBroker,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. Every API route requires bearer
// authentication except the health probe; the dashboard read path is
// additionally rate limited.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/v1/dashboard",
		h.authenticated(h.rateLimited("dashboard", http.HandlerFunc(h.Dashboard))))
	mux.Handle("GET /api/v1/dashboard/messages", h.authenticated(http.HandlerFunc(h.ListMessages)))
	mux.Handle("GET /api/v1/dashboard/events", h.authenticated(http.HandlerFunc(h.ListEvents)))
	mux.Handle("PATCH /api/v1/messages/{id}", h.authenticated(http.HandlerFunc(h.UpdateMessage)))
	mux.Handle("PATCH /api/v1/events/{id}", h.authenticated(http.HandlerFunc(h.UpdateEvent)))
	mux.Handle("GET /api/v1/tasks", h.authenticated(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", h.authenticated(http.HandlerFunc(h.CreateTask)))
	mux.Handle("PATCH /api/v1/tasks/{id}", h.authenticated(http.HandlerFunc(h.UpdateTask)))
	mux.Handle("GET /api/v1/notifications", h.authenticated(http.HandlerFunc(h.ListNotifications)))
	mux.Handle("PATCH /api/v1/notifications/{id}/read", h.authenticated(http.HandlerFunc(h.MarkNotificationRead)))
	mux.HandleFunc("GET /api/v1/realtime/stream", h.Stream)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Dashboard serves the aggregate dashboard view, through the snapshot cache.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	view, err := h.dashboard.View(r.Context(), user)
	if err != nil {
		h.logger.Error("dashboard view failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ListMessages returns the user's mirrored, non-archived messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	msgs, err := h.messages.ListByUser(r.Context(), user.ID, listLimit(r))
	if err != nil {
		h.logger.Error("list messages failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, msgs)
}

// ListEvents returns the user's mirrored upcoming calendar events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	events, err := h.events.ListUpcoming(r.Context(), user.ID, time.Now().UTC(), listLimit(r))
	if err != nil {
		h.logger.Error("list events failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}

// UpdateMessage applies user-owned flag changes to a mirrored message. Only
// archived and starred are settable here; the remaining message fields track
// the upstream provider and are owned by the background sync.
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Archived == nil && req.Starred == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Archived != nil {
		if err := h.setMessageFlag(w, r, user.ID, id, "archive",
			func(ctx context.Context) error {
				return h.messages.SetArchived(ctx, user.ID, id, *req.Archived)
			}); err != nil {
			return
		}
	}
	if req.Starred != nil {
		if err := h.setMessageFlag(w, r, user.ID, id, "star",
			func(ctx context.Context) error {
				return h.messages.SetStarred(ctx, user.ID, id, *req.Starred)
			}); err != nil {
			return
		}
	}

	h.snapshots.Invalidate(r.Context(), user.ID)

	msg, err := h.messages.GetByID(r.Context(), user.ID, id)
	if err != nil || msg == nil {
		h.logger.Error("reload updated message failed", "user_id", user.ID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// UpdateEvent applies user-owned flag changes to a mirrored calendar event.
// Dismissed is the only settable field; everything else tracks the upstream
// provider and is owned by the background sync.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Dismissed == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := h.events.SetDismissed(r.Context(), user.ID, id, *req.Dismissed); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error("dismiss event failed", "user_id", user.ID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.snapshots.Invalidate(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTasks returns the user's open tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	tasks, err := h.tasks.ListOpenByUser(r.Context(), user.ID, listLimit(r))
	if err != nil {
		h.logger.Error("list tasks failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask adds a new task for the user.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	priority := model.Priority(req.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}
	if priority != model.PriorityHigh && priority != model.PriorityMedium && priority != model.PriorityLow {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}

	task, err := h.tasks.Create(r.Context(), model.Task{
		UserID:   user.ID,
		Title:    req.Title,
		Priority: priority,
		DueDate:  req.DueDate,
		Category: req.Category,
	})
	if err != nil {
		h.logger.Error("create task failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.snapshots.Invalidate(r.Context(), user.ID)
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask modifies an existing task.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), user.ID, id)
	if err != nil {
		h.logger.Error("get task failed", "user_id", user.ID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Priority != "" {
		priority := model.Priority(req.Priority)
		if priority != model.PriorityHigh && priority != model.PriorityMedium && priority != model.PriorityLow {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		task.Priority = priority
	}
	if req.DueDate != "" {
		task.DueDate = req.DueDate
	}
	if req.Category != "" {
		task.Category = req.Category
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := h.tasks.Update(r.Context(), *task); err != nil {
		h.logger.Error("update task failed", "user_id", user.ID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.snapshots.Invalidate(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, task)
}

// ListNotifications returns the user's notifications, unread first by
// default, everything with ?all=true.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var (
		notifs []model.Notification
		err    error
	)
	if r.URL.Query().Get("all") == "true" {
		notifs, err = h.notifs.ListByUser(r.Context(), user.ID, listLimit(r))
	} else {
		notifs, err = h.notifs.ListUnreadByUser(r.Context(), user.ID, listLimit(r))
	}
	if err != nil {
		h.logger.Error("list notifications failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if notifs == nil {
		notifs = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, notifs)
}

// MarkNotificationRead flags a notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.notifs.MarkRead(r.Context(), user.ID, id); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("mark notification read failed", "user_id", user.ID, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.snapshots.Invalidate(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports reachability of the backing stores. A broker outage
// degrades the report but is not a failure: the API keeps serving from
// sqlite without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Components: map[string]string{"database": "ok", "broker": "ok"},
		Time:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.pingDB(r.Context()); err != nil {
		h.logger.Error("health: database unreachable", "error", err)
		resp.Status = "unhealthy"
		resp.Components["database"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if err := h.pingBroker(r.Context()); err != nil {
		h.logger.Warn("health: broker unreachable", "error", err)
		resp.Status = "degraded"
		resp.Components["broker"] = "unavailable"
	}

	writeJSON(w, http.StatusOK, resp)
}

// setMessageFlag runs one flag update, translating the store's error into a
// response. A non-nil return tells the caller the response is already
// written.
func (h *Handler) setMessageFlag(w http.ResponseWriter, r *http.Request, userID, id int64, action string, apply func(context.Context) error) error {
	err := apply(r.Context())
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, "message not found")
		return err
	}
	h.logger.Error(action+" message failed", "user_id", userID, "id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
	return err
}

// pathID parses the {id} path segment, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// listLimit reads an optional ?limit= query parameter, clamped to sane
// bounds.
func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
