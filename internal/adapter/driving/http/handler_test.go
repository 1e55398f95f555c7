package httphandler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/evanhall/daybrief/internal/adapter/driving/http"
	"github.com/evanhall/daybrief/internal/application"
	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockUserStore struct {
	user model.User
}

func (m *mockUserStore) Create(_ context.Context, u model.User) (model.User, error) { return u, nil }
func (m *mockUserStore) GetByID(_ context.Context, _ int64) (*model.User, error)    { return nil, nil }
func (m *mockUserStore) GetByAPIToken(_ context.Context, token string) (*model.User, error) {
	if token == m.user.APIToken {
		u := m.user
		return &u, nil
	}
	return nil, nil
}
func (m *mockUserStore) ListWithCredential(_ context.Context, _ string) ([]model.User, error) {
	return nil, nil
}
func (m *mockUserStore) SetLastSyncedAt(_ context.Context, _ int64, _ time.Time) error { return nil }

type mockMessageStore struct {
	msgs     []model.Message
	archived map[int64]bool
	starred  map[int64]bool
}

func (m *mockMessageStore) Upsert(_ context.Context, _ model.Message) error { return nil }
func (m *mockMessageStore) GetByUpstreamID(_ context.Context, _ int64, _ string) (*model.Message, error) {
	return nil, nil
}
func (m *mockMessageStore) GetByID(_ context.Context, _ int64, id int64) (*model.Message, error) {
	for _, msg := range m.msgs {
		if msg.ID == id {
			msg.Archived = m.archived[id]
			msg.Starred = m.starred[id]
			return &msg, nil
		}
	}
	return nil, nil
}
func (m *mockMessageStore) ListByUser(_ context.Context, _ int64, _ int) ([]model.Message, error) {
	return m.msgs, nil
}
func (m *mockMessageStore) CountByUser(_ context.Context, _ int64) (int, error) {
	return len(m.msgs), nil
}
func (m *mockMessageStore) SetArchived(_ context.Context, _ int64, id int64, v bool) error {
	return m.setFlag(m.archived, id, v)
}
func (m *mockMessageStore) SetStarred(_ context.Context, _ int64, id int64, v bool) error {
	return m.setFlag(m.starred, id, v)
}
func (m *mockMessageStore) setFlag(dst map[int64]bool, id int64, v bool) error {
	for _, msg := range m.msgs {
		if msg.ID == id {
			dst[id] = v
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockEventStore struct {
	events    []model.CalendarEvent
	dismissed map[int64]bool
}

func (m *mockEventStore) Upsert(_ context.Context, _ model.CalendarEvent) error { return nil }
func (m *mockEventStore) GetByUpstreamID(_ context.Context, _ int64, _ string) (*model.CalendarEvent, error) {
	return nil, nil
}
func (m *mockEventStore) ListUpcoming(_ context.Context, _ int64, _ time.Time, _ int) ([]model.CalendarEvent, error) {
	return m.events, nil
}
func (m *mockEventStore) CountByUser(_ context.Context, _ int64) (int, error) {
	return len(m.events), nil
}
func (m *mockEventStore) SetDismissed(_ context.Context, _ int64, id int64, dismissed bool) error {
	for _, e := range m.events {
		if e.ID == id {
			m.dismissed[id] = dismissed
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockTaskStore struct {
	tasks []model.Task
}

func (m *mockTaskStore) Create(_ context.Context, t model.Task) (model.Task, error) {
	t.ID = int64(len(m.tasks) + 1)
	m.tasks = append(m.tasks, t)
	return t, nil
}
func (m *mockTaskStore) GetByID(_ context.Context, _ int64, id int64) (*model.Task, error) {
	for _, t := range m.tasks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}
func (m *mockTaskStore) ListOpenByUser(_ context.Context, _ int64, _ int) ([]model.Task, error) {
	return m.tasks, nil
}
func (m *mockTaskStore) Update(_ context.Context, task model.Task) error {
	for i, t := range m.tasks {
		if t.ID == task.ID {
			m.tasks[i] = task
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockNotificationStore struct {
	notifs []model.Notification
}

func (m *mockNotificationStore) Create(_ context.Context, n model.Notification) (model.Notification, error) {
	return n, nil
}
func (m *mockNotificationStore) Exists(_ context.Context, _ int64, _ model.NotificationType, _ string) (bool, error) {
	return false, nil
}
func (m *mockNotificationStore) ListByUser(_ context.Context, _ int64, _ int) ([]model.Notification, error) {
	return m.notifs, nil
}
func (m *mockNotificationStore) ListUnreadByUser(_ context.Context, _ int64, _ int) ([]model.Notification, error) {
	return m.notifs, nil
}
func (m *mockNotificationStore) MarkRead(_ context.Context, _ int64, id int64) error {
	for i, n := range m.notifs {
		if n.ID == id {
			m.notifs[i].Read = true
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockCredentialStore struct{}

func (m *mockCredentialStore) Get(_ context.Context, _ int64, _ string) (*model.Credential, error) {
	return &model.Credential{AccessToken: "at"}, nil
}
func (m *mockCredentialStore) Put(_ context.Context, _ model.Credential) error    { return nil }
func (m *mockCredentialStore) Delete(_ context.Context, _ int64, _ string) error  { return nil }

type mockSnapshotStore struct {
	data    map[int64][]byte
	deletes int
}

func (m *mockSnapshotStore) Get(_ context.Context, userID int64) ([]byte, error) {
	payload, ok := m.data[userID]
	if !ok {
		return nil, driven.ErrNotFound
	}
	return payload, nil
}
func (m *mockSnapshotStore) Set(_ context.Context, userID int64, payload []byte, _ time.Duration) error {
	m.data[userID] = payload
	return nil
}
func (m *mockSnapshotStore) Delete(_ context.Context, userID int64) error {
	m.deletes++
	delete(m.data, userID)
	return nil
}

type mockSyncLock struct{}

func (m *mockSyncLock) Acquire(_ context.Context, _ int64, _ time.Duration) (bool, error) {
	return false, nil
}

type stubQueue struct{}

func (stubQueue) Enqueue(int64) bool { return true }

type mockRateWindow struct {
	count int
}

func (m *mockRateWindow) Add(_ context.Context, _ string, _ time.Time, _ time.Duration) (int, error) {
	m.count++
	return m.count, nil
}

type mockPublisher struct{}

func (mockPublisher) Publish(_ context.Context, _ int64, _ []byte) error { return nil }

type mockSubscriber struct {
	feed chan []byte
	fail bool
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ int64) (<-chan []byte, func(), error) {
	if m.fail {
		return nil, nil, driven.ErrBrokerUnavailable
	}
	return m.feed, func() {}, nil
}

// --- Fixture ---

type fixture struct {
	server    *httptest.Server
	snapshots *mockSnapshotStore
	messages  *mockMessageStore
	events    *mockEventStore
	tasks     *mockTaskStore
	window    *mockRateWindow
	brokerErr error
}

const testToken = "tok-abc"

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()

	now := time.Now().UTC()
	f := &fixture{
		snapshots: &mockSnapshotStore{data: make(map[int64][]byte)},
		window:    &mockRateWindow{},
		messages: &mockMessageStore{
			msgs: []model.Message{{
				ID:         1,
				UserID:     1,
				UpstreamID: "msg-1",
				Sender:     "priya@example.com",
				Subject:    "Budget review",
				Priority:   model.PriorityHigh,
				Unread:     true,
				ReceivedAt: now.Add(-time.Hour),
			}},
			archived: make(map[int64]bool),
			starred:  make(map[int64]bool),
		},
	}

	users := &mockUserStore{user: model.User{ID: 1, Email: "u@example.com", APIToken: testToken}}
	f.events = &mockEventStore{
		events: []model.CalendarEvent{{
			ID: 1, UserID: 1, UpstreamID: "evt-1", Title: "Design review",
			StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour),
		}},
		dismissed: make(map[int64]bool),
	}
	events := f.events
	f.tasks = &mockTaskStore{tasks: []model.Task{{ID: 1, UserID: 1, Title: "Ship it", Priority: model.PriorityHigh}}}
	tasks := f.tasks
	notifs := &mockNotificationStore{notifs: []model.Notification{{ID: 1, UserID: 1, Type: model.NotificationEmail, Message: "hello"}}}

	snapshots := application.NewSnapshotService(f.snapshots, 5*time.Minute)
	scheduler := application.NewSyncScheduler(&mockSyncLock{}, stubQueue{}, 5*time.Minute)
	dashboard := application.NewDashboardService(
		f.messages, events, tasks, notifs, &mockCredentialStore{}, snapshots, scheduler, "workspace")
	hub := application.NewRealtimeHub(mockPublisher{}, &mockSubscriber{feed: make(chan []byte, 1)}, time.Hour)
	limiter := application.NewRateLimiter(f.window, rateLimit, time.Minute)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := httphandler.NewHandler(
		users, f.messages, events, tasks, notifs,
		dashboard, snapshots, hub, limiter,
		func(context.Context) error { return nil },
		func(context.Context) error { return f.brokerErr },
		logger,
	)

	f.server = httptest.NewServer(httphandler.NewServeMux(handler, logger))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) request(t *testing.T, method, path string, body []byte, authed bool) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// --- Tests ---

func TestDashboard_RequiresAuth(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodGet, "/api/v1/dashboard", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDashboard_ReturnsView(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodGet, "/api/v1/dashboard", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[model.DashboardView](t, resp)
	assert.Len(t, view.Messages, 1)
	assert.Len(t, view.Events, 1)
	assert.Contains(t, view.DailyBrief.Summary, "1 meeting")
}

func TestDashboard_RateLimited(t *testing.T) {
	f := newFixture(t, 2)

	for i := 0; i < 2; i++ {
		resp := f.request(t, http.MethodGet, "/api/v1/dashboard", nil, true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := f.request(t, http.MethodGet, "/api/v1/dashboard", nil, true)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestListMessages_ReturnsMirror(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodGet, "/api/v1/dashboard/messages", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msgs := decode[[]model.Message](t, resp)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Budget review", msgs[0].Subject)
}

func TestUpdateMessage_ArchiveInvalidatesSnapshot(t *testing.T) {
	f := newFixture(t, 60)

	body := []byte(`{"archived":true}`)
	resp := f.request(t, http.MethodPatch, "/api/v1/messages/1", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := decode[model.Message](t, resp)
	assert.True(t, msg.Archived)
	assert.True(t, f.messages.archived[1])
	assert.Equal(t, 1, f.snapshots.deletes, "user action must invalidate the snapshot")
}

func TestUpdateMessage_UnknownIDIs404(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/messages/99", []byte(`{"starred":true}`), true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateMessage_EmptyBodyIs400(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/messages/1", []byte(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateEvent_DismissInvalidatesSnapshot(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/events/1", []byte(`{"dismissed":true}`), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, f.events.dismissed[1])
	assert.Equal(t, 1, f.snapshots.deletes, "user action must invalidate the snapshot")
}

func TestUpdateEvent_UnknownIDIs404(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/events/99", []byte(`{"dismissed":true}`), true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateEvent_EmptyBodyIs400(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/events/1", []byte(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard_EmptyMirrorSerializesEmptyLists(t *testing.T) {
	f := newFixture(t, 60)
	f.messages.msgs = nil
	f.events.events = nil
	f.tasks.tasks = nil

	resp := f.request(t, http.MethodGet, "/api/v1/dashboard", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"messages":[]`)
	assert.Contains(t, body, `"events":[]`)
	assert.Contains(t, body, `"suggestions":[]`)
	assert.NotContains(t, body, "null")
}

func TestCreateTask_Succeeds(t *testing.T) {
	f := newFixture(t, 60)

	body := []byte(`{"title":"Write report","priority":"high","category":"work"}`)
	resp := f.request(t, http.MethodPost, "/api/v1/tasks", body, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	task := decode[model.Task](t, resp)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, 1, f.snapshots.deletes)
}

func TestCreateTask_RejectsMissingTitle(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPost, "/api/v1/tasks", []byte(`{"priority":"low"}`), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateTask_CompletesTask(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/tasks/1", []byte(`{"completed":true}`), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	task := decode[model.Task](t, resp)
	assert.True(t, task.Completed)
}

func TestMarkNotificationRead_UnknownIDIs404(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/notifications/99/read", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarkNotificationRead_Succeeds(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodPatch, "/api/v1/notifications/1/read", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth_OKWithAllComponents(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodGet, "/api/v1/health", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[httphandler.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
}

func TestHealth_DegradedWhenBrokerDown(t *testing.T) {
	f := newFixture(t, 60)
	f.brokerErr = driven.ErrBrokerUnavailable

	resp := f.request(t, http.MethodGet, "/api/v1/health", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode, "broker loss is degraded, not down")

	health := decode[httphandler.HealthResponse](t, resp)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.Components["broker"])
}

func TestStream_RequiresAuth(t *testing.T) {
	f := newFixture(t, 60)

	resp := f.request(t, http.MethodGet, "/api/v1/realtime/stream", nil, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	require.True(t, len(line) > len("data: "))

	var event model.UpdateEvent
	require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &event))
	assert.Equal(t, model.EventError, event.Type)
}

func TestStream_SendsStatusEvent(t *testing.T) {
	f := newFixture(t, 60)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.server.URL+"/api/v1/realtime/stream?token="+testToken, nil)
	require.NoError(t, err)

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)

	var event model.UpdateEvent
	require.NoError(t, json.Unmarshal([]byte(line[len("data: "):]), &event))
	assert.Equal(t, model.EventStatus, event.Type)
	assert.Equal(t, model.StreamConnected, event.Status)
}
