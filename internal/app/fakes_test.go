package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"taskboard/api/internal/blob"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/realtime"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

var errWriteFailed = errors.New("write failed")

type broadcastCall struct {
	event   realtime.Event
	exclude int64
}

type directCall struct {
	userID int64
	event  realtime.Event
}

type recordingPublisher struct {
	mu         sync.Mutex
	broadcasts []broadcastCall
	direct     []directCall
}

func (p *recordingPublisher) Broadcast(event realtime.Event, excludeUserID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, broadcastCall{event: event, exclude: excludeUserID})
	return 1
}

func (p *recordingPublisher) SendToUser(userID int64, event realtime.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.direct = append(p.direct, directCall{userID: userID, event: event})
	return 1
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = nil
	p.direct = nil
}

func (p *recordingPublisher) broadcastsOf(kind realtime.Kind) []broadcastCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcastCall
	for _, call := range p.broadcasts {
		if call.event.Type == kind {
			out = append(out, call)
		}
	}
	return out
}

func (p *recordingPublisher) directTo(userID int64) []directCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []directCall
	for _, call := range p.direct {
		if call.userID == userID {
			out = append(out, call)
		}
	}
	return out
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.broadcasts) + len(p.direct)
}

// inlineJobs runs every submitted job before Submit returns.
type inlineJobs struct {
	submitted []string
}

func (j *inlineJobs) Submit(job realtime.Job) bool {
	j.submitted = append(j.submitted, job.Name)
	job.Run(context.Background())
	return true
}

// flakyStore fails selected writes on top of a MemoryStore.
type flakyStore struct {
	*store.MemoryStore
	failWrites        bool
	failNotifications bool
}

func (s *flakyStore) CreateTask(ctx context.Context, task store.Task) (store.Task, error) {
	if s.failWrites {
		return store.Task{}, errWriteFailed
	}
	return s.MemoryStore.CreateTask(ctx, task)
}

func (s *flakyStore) UpdateTask(ctx context.Context, task store.Task) (store.Task, error) {
	if s.failWrites {
		return store.Task{}, errWriteFailed
	}
	return s.MemoryStore.UpdateTask(ctx, task)
}

func (s *flakyStore) DeleteTask(ctx context.Context, id int64) error {
	if s.failWrites {
		return errWriteFailed
	}
	return s.MemoryStore.DeleteTask(ctx, id)
}

func (s *flakyStore) RemoveAssignee(ctx context.Context, taskID, userID int64) error {
	if s.failWrites {
		return errWriteFailed
	}
	return s.MemoryStore.RemoveAssignee(ctx, taskID, userID)
}

func (s *flakyStore) AddAssignee(ctx context.Context, a store.TaskAssignee) (store.TaskAssignee, error) {
	if s.failWrites {
		return store.TaskAssignee{}, errWriteFailed
	}
	return s.MemoryStore.AddAssignee(ctx, a)
}

func (s *flakyStore) CreateComment(ctx context.Context, c store.Comment) (store.Comment, error) {
	if s.failWrites {
		return store.Comment{}, errWriteFailed
	}
	return s.MemoryStore.CreateComment(ctx, c)
}

func (s *flakyStore) CreateTimeEntry(ctx context.Context, e store.TimeEntry) (store.TimeEntry, error) {
	if s.failWrites {
		return store.TimeEntry{}, errWriteFailed
	}
	return s.MemoryStore.CreateTimeEntry(ctx, e)
}

func (s *flakyStore) CreateNotification(ctx context.Context, n store.Notification) (store.Notification, error) {
	if s.failNotifications {
		return store.Notification{}, errWriteFailed
	}
	return s.MemoryStore.CreateNotification(ctx, n)
}

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) IsConfigured() bool { return true }

func (m *recordingMailer) SendAssignmentEmail(to, _, _ string, _ int64, _ string) error {
	m.sent = append(m.sent, to)
	return nil
}

type testEnv struct {
	svc      *Service
	store    *flakyStore
	events   *recordingPublisher
	jobs     *inlineJobs
	blobs    *blob.MemoryStore
	mailer   *recordingMailer
	resolver *session.Resolver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  &flakyStore{MemoryStore: store.NewMemoryStore()},
		events: &recordingPublisher{},
		jobs:   &inlineJobs{},
		blobs:  blob.NewMemoryStore(),
		mailer: &recordingMailer{},
	}
	sessions := session.NewMemoryStore(time.Hour)
	env.resolver = session.NewResolver(sessions, []byte("test-secret-0123456789"), time.Second)
	env.svc = New(Deps{
		Store:        env.store,
		Sessions:     env.resolver,
		SessionStore: sessions,
		Events:       env.events,
		Jobs:         env.jobs,
		Blobs:        env.blobs,
		Mailer:       env.mailer,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return env
}

func (e *testEnv) user(t *testing.T, username string, role rbac.Role) Actor {
	t.Helper()
	user, err := e.store.CreateUser(context.Background(), store.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return Actor{UserID: user.ID, Username: user.Username, Role: role}
}

func (e *testEnv) task(t *testing.T, creator Actor, title string) store.Task {
	t.Helper()
	task, err := e.store.CreateTask(context.Background(), store.Task{
		Title:     title,
		Status:    store.TaskStatusTodo,
		Priority:  store.PriorityMedium,
		CreatedBy: creator.UserID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (e *testEnv) assign(t *testing.T, taskID int64, users ...Actor) {
	t.Helper()
	for _, u := range users {
		if _, err := e.store.AddAssignee(context.Background(), store.TaskAssignee{TaskID: taskID, UserID: u.UserID}); err != nil {
			t.Fatalf("assign user %d: %v", u.UserID, err)
		}
	}
}

func (e *testEnv) notificationsFor(t *testing.T, userID int64) []store.Notification {
	t.Helper()
	items, err := e.store.ListNotifications(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return items
}
