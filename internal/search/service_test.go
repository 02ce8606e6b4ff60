package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"

	"taskboard/api/internal/store"
)

func TestSearchFallsBackToStore(t *testing.T) {
	backend := store.NewMemoryStore()
	ctx := context.Background()
	for _, title := range []string{"Fix login redirect", "Write release notes", "Login audit"} {
		if _, err := backend.CreateTask(ctx, store.Task{Title: title, Status: store.TaskStatusTodo, Priority: store.PriorityLow}); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	svc := NewService(nil, backend, nil)
	resp := svc.Search(ctx, Query{Text: "login"})
	if resp.Engine != EngineStore {
		t.Fatalf("expected store engine, got %q", resp.Engine)
	}
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}
	if resp.Results[0].Title != "Login audit" {
		t.Fatalf("expected newest match first, got %q", resp.Results[0].Title)
	}
}

func TestIndexingIsSkippedWithoutMeili(t *testing.T) {
	svc := NewService(nil, store.NewMemoryStore(), nil)
	svc.IndexTask(store.Task{ID: 1})
	svc.DeleteTask(1)
	svc.ReindexAll(context.Background())
	svc.Close()
}

func TestHitToResultPrefersHighlight(t *testing.T) {
	hit := meili.Hit{
		"id":          json.RawMessage(`12`),
		"title":       json.RawMessage(`"Fix login"`),
		"description": json.RawMessage(`"redirect loop"`),
		"status":      json.RawMessage(`"todo"`),
		"_formatted":  json.RawMessage(`{"title":"Fix <mark>login</mark>","id":"12"}`),
	}
	r := hitToResult(hit)
	if r.ID != 12 || r.Status != "todo" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Title != "Fix <mark>login</mark>" {
		t.Fatalf("expected highlighted title, got %q", r.Title)
	}
	if r.Snippet != "redirect loop" {
		t.Fatalf("expected raw description as snippet, got %q", r.Snippet)
	}
}

func TestMeiliUnavailableFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := NewMeili(server.URL, "key", "", nil)
	defer m.Close()
	if m.Healthy() {
		t.Fatal("expected meili to be unhealthy")
	}

	backend := store.NewMemoryStore()
	_, _ = backend.CreateTask(context.Background(), store.Task{Title: "Plan sprint"})
	resp := NewService(m, backend, nil).Search(context.Background(), Query{Text: "sprint"})
	if resp.Engine != EngineStore || len(resp.Results) != 1 || !strings.Contains(resp.Results[0].Title, "sprint") {
		t.Fatalf("expected store fallback result, got %+v", resp)
	}
}
