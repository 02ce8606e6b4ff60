package app

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"taskboard/api/internal/blob"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/realtime"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

// Actor is the authenticated user behind a request.
type Actor struct {
	UserID      int64
	Username    string
	DisplayName string
	Role        rbac.Role
}

func (a Actor) Name() string {
	if strings.TrimSpace(a.DisplayName) != "" {
		return a.DisplayName
	}
	return a.Username
}

// Publisher pushes events to live socket connections.
type Publisher interface {
	Broadcast(event realtime.Event, excludeUserID int64) int
	SendToUser(userID int64, event realtime.Event) int
}

// JobQueue runs post-commit work off the request path.
type JobQueue interface {
	Submit(job realtime.Job) bool
}

type Sessions interface {
	Resolve(ctx context.Context, rawCookie string) (int64, error)
	Start(ctx context.Context, userID int64) (string, error)
	End(ctx context.Context, rawCookie string) error
}

type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexTask(task store.Task)
	DeleteTask(id int64)
}

type Mailer interface {
	IsConfigured() bool
	SendAssignmentEmail(to, userName, assignedBy string, taskID int64, taskTitle string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the service to its collaborators. Blobs, Search and Mailer may
// be nil.
type Deps struct {
	Store        store.Store
	Sessions     Sessions
	SessionStore pinger
	Events       Publisher
	Jobs         JobQueue
	Blobs        blob.Store
	Search       Searcher
	Mailer       Mailer
	Logger       *slog.Logger
}

type Service struct {
	store        store.Store
	sessions     Sessions
	sessionStore pinger
	events       Publisher
	jobs         JobQueue
	blobs        blob.Store
	search       Searcher
	mailer       Mailer
	validate     *validator.Validate
	logger       *slog.Logger

	// registerMu makes the first-account check and the insert one step.
	registerMu sync.Mutex
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	searcher := deps.Search
	if searcher == nil {
		searcher = search.NewService(nil, deps.Store, logger)
	}
	return &Service{
		store:        deps.Store,
		sessions:     deps.Sessions,
		sessionStore: deps.SessionStore,
		events:       deps.Events,
		jobs:         deps.Jobs,
		blobs:        deps.Blobs,
		search:       searcher,
		mailer:       deps.Mailer,
		validate:     newValidator(),
		logger:       logger,
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}

func (s *Service) requireRole(actor Actor, action rbac.Action) error {
	if !rbac.Can(actor.Role, action) {
		return errForbidden
	}
	return nil
}

// Readiness checks every backing service and reports per-check results.
func (s *Service) Readiness(ctx context.Context) (bool, map[string]any) {
	checks := map[string]any{}
	ready := true
	check := func(name string, p pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			return
		}
		checks[name] = map[string]any{"status": "ok"}
	}
	check("database", s.store)
	check("sessions", s.sessionStore)
	return ready, checks
}

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id int64) (store.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return store.User{}, wrapNotFound(err, "User")
	}
	return user, nil
}

func (s *Service) Search(ctx context.Context, actor Actor, q search.Query) (search.Response, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return search.Response{}, err
	}
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{}, validationError("q is required", nil)
	}
	return s.search.Search(ctx, q), nil
}

// wrapNotFound turns a store miss into a named 404 and passes other errors
// through.
func wrapNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return notFound(what)
	}
	return err
}
