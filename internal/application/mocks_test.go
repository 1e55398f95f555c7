package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evanhall/daybrief/internal/domain/model"
	"github.com/evanhall/daybrief/internal/domain/port/driven"
)

// --- Mock implementations shared across the service tests ---

type credKey struct {
	userID  int64
	service string
}

type mockCredentialStore struct {
	mu     sync.Mutex
	creds  map[credKey]model.Credential
	getErr error
	putErr error
	gets   int
	puts   int
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{creds: make(map[credKey]model.Credential)}
}

func (m *mockCredentialStore) Get(_ context.Context, userID int64, service string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	cred, ok := m.creds[credKey{userID, service}]
	if !ok {
		return nil, fmt.Errorf("credential: %w", driven.ErrNotFound)
	}
	return &cred, nil
}

func (m *mockCredentialStore) Put(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.creds[credKey{cred.UserID, cred.Service}] = cred
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, userID int64, service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, credKey{userID, service})
	return nil
}

type mockRefresher struct {
	mu       sync.Mutex
	calls    int
	token    string
	expiry   time.Time
	err      error
}

func (m *mockRefresher) Refresh(_ context.Context, _ string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", time.Time{}, m.err
	}
	return m.token, m.expiry, nil
}

type mockSnapshotStore struct {
	mu      sync.Mutex
	data    map[int64][]byte
	fail    bool
	deletes int
	sets    int
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{data: make(map[int64][]byte)}
}

func (m *mockSnapshotStore) Get(_ context.Context, userID int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, driven.ErrBrokerUnavailable
	}
	payload, ok := m.data[userID]
	if !ok {
		return nil, driven.ErrNotFound
	}
	return payload, nil
}

func (m *mockSnapshotStore) Set(_ context.Context, userID int64, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.fail {
		return driven.ErrBrokerUnavailable
	}
	m.data[userID] = payload
	return nil
}

func (m *mockSnapshotStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.fail {
		return driven.ErrBrokerUnavailable
	}
	delete(m.data, userID)
	return nil
}

type mockSyncLock struct {
	mu       sync.Mutex
	held     map[int64]bool
	fail     bool
	acquires int
}

func newMockSyncLock() *mockSyncLock {
	return &mockSyncLock{held: make(map[int64]bool)}
}

func (m *mockSyncLock) Acquire(_ context.Context, userID int64, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	if m.fail {
		return false, driven.ErrBrokerUnavailable
	}
	if m.held[userID] {
		return false, nil
	}
	m.held[userID] = true
	return true, nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published [][]byte
	userIDs   []int64
	fail      bool
}

func (m *mockPublisher) Publish(_ context.Context, userID int64, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return driven.ErrBrokerUnavailable
	}
	m.published = append(m.published, payload)
	m.userIDs = append(m.userIDs, userID)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

type mockSubscriber struct {
	feed     chan []byte
	fail     bool
	canceled bool
}

func (m *mockSubscriber) Subscribe(_ context.Context, _ int64) (<-chan []byte, func(), error) {
	if m.fail {
		return nil, nil, driven.ErrBrokerUnavailable
	}
	return m.feed, func() { m.canceled = true }, nil
}

type mockRateWindow struct {
	mu    sync.Mutex
	count int
	fail  bool
	calls int
}

func (m *mockRateWindow) Add(_ context.Context, _ string, _ time.Time, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return 0, driven.ErrBrokerUnavailable
	}
	m.count++
	return m.count, nil
}

type mockUserStore struct {
	mu        sync.Mutex
	users     map[int64]model.User
	connected []model.User
	syncedAt  map[int64]time.Time
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:    make(map[int64]model.User),
		syncedAt: make(map[int64]time.Time),
	}
}

func (m *mockUserStore) Create(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = int64(len(m.users) + 1)
	m.users[user.ID] = user
	return user, nil
}

func (m *mockUserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *mockUserStore) GetByAPIToken(_ context.Context, token string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.APIToken == token {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *mockUserStore) ListWithCredential(_ context.Context, _ string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, nil
}

func (m *mockUserStore) SetLastSyncedAt(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncedAt[userID] = at
	return nil
}

func (m *mockUserStore) lastSyncedAt(userID int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.syncedAt[userID]
	return at, ok
}

type mockMessageStore struct {
	mu      sync.Mutex
	rows    map[string]model.Message // keyed by upstream id
	upserts int
	listErr error
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{rows: make(map[string]model.Message)}
}

func (m *mockMessageStore) Upsert(_ context.Context, msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if existing, ok := m.rows[msg.UpstreamID]; ok {
		msg.Archived = existing.Archived
		msg.Starred = existing.Starred
		msg.ID = existing.ID
	} else {
		msg.ID = int64(len(m.rows) + 1)
	}
	m.rows[msg.UpstreamID] = msg
	return nil
}

func (m *mockMessageStore) GetByUpstreamID(_ context.Context, _ int64, upstreamID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[upstreamID]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (m *mockMessageStore) GetByID(_ context.Context, _ int64, id int64) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.ID == id {
			return &msg, nil
		}
	}
	return nil, nil
}

func (m *mockMessageStore) ListByUser(_ context.Context, _ int64, _ int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Message
	for _, msg := range m.rows {
		if !msg.Archived {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageStore) CountByUser(_ context.Context, _ int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *mockMessageStore) SetArchived(_ context.Context, _ int64, id int64, archived bool) error {
	return m.setFlag(id, func(msg *model.Message) { msg.Archived = archived })
}

func (m *mockMessageStore) SetStarred(_ context.Context, _ int64, id int64, starred bool) error {
	return m.setFlag(id, func(msg *model.Message) { msg.Starred = starred })
}

func (m *mockMessageStore) setFlag(id int64, apply func(*model.Message)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, msg := range m.rows {
		if msg.ID == id {
			apply(&msg)
			m.rows[key] = msg
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockEventStore struct {
	mu      sync.Mutex
	rows    map[string]model.CalendarEvent
	upserts int
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{rows: make(map[string]model.CalendarEvent)}
}

func (m *mockEventStore) Upsert(_ context.Context, ev model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if existing, ok := m.rows[ev.UpstreamID]; ok {
		ev.Dismissed = existing.Dismissed
		ev.ID = existing.ID
	} else {
		ev.ID = int64(len(m.rows) + 1)
	}
	m.rows[ev.UpstreamID] = ev
	return nil
}

func (m *mockEventStore) GetByUpstreamID(_ context.Context, _ int64, upstreamID string) (*model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.rows[upstreamID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (m *mockEventStore) ListUpcoming(_ context.Context, _ int64, from time.Time, _ int) ([]model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CalendarEvent
	for _, ev := range m.rows {
		if !ev.Dismissed && !ev.StartsAt.Before(from) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockEventStore) CountByUser(_ context.Context, _ int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *mockEventStore) SetDismissed(_ context.Context, _ int64, id int64, dismissed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ev := range m.rows {
		if ev.ID == id {
			ev.Dismissed = dismissed
			m.rows[key] = ev
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockTaskStore struct {
	mu    sync.Mutex
	tasks []model.Task
}

func (m *mockTaskStore) Create(_ context.Context, task model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.ID = int64(len(m.tasks) + 1)
	m.tasks = append(m.tasks, task)
	return task, nil
}

func (m *mockTaskStore) GetByID(_ context.Context, _ int64, id int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *mockTaskStore) ListOpenByUser(_ context.Context, _ int64, _ int) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTaskStore) Update(_ context.Context, task model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == task.ID {
			m.tasks[i] = task
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockNotificationStore struct {
	mu      sync.Mutex
	notifs  []model.Notification
	creates int
}

func (m *mockNotificationStore) Create(_ context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	n.ID = int64(len(m.notifs) + 1)
	m.notifs = append(m.notifs, n)
	return n, nil
}

func (m *mockNotificationStore) Exists(_ context.Context, userID int64, typ model.NotificationType, relatedID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifs {
		if n.UserID == userID && n.Type == typ && n.RelatedID == relatedID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationStore) ListByUser(_ context.Context, _ int64, _ int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Notification(nil), m.notifs...), nil
}

func (m *mockNotificationStore) ListUnreadByUser(_ context.Context, _ int64, _ int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.notifs {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationStore) MarkRead(_ context.Context, _ int64, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifs {
		if n.ID == id {
			m.notifs[i].Read = true
			return nil
		}
	}
	return driven.ErrNotFound
}

type mockProviderClient struct {
	mu       sync.Mutex
	messages []model.Message
	events   []model.CalendarEvent
	msgErr   error
	evErr    error
	fetches  int
}

func (m *mockProviderClient) FetchUnreadMessages(_ context.Context, _ string, _ int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.msgErr != nil {
		return nil, m.msgErr
	}
	return m.messages, nil
}

func (m *mockProviderClient) FetchUpcomingEvents(_ context.Context, _ string, _ int) ([]model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.evErr != nil {
		return nil, m.evErr
	}
	return m.events, nil
}
