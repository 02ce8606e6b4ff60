package search

import (
	"context"
	"log/slog"

	"taskboard/api/internal/store"
)

const (
	EngineMeili = "meilisearch"
	EngineStore = "store"
)

// TaskLister is the store subset used for the fallback path and reindexing.
type TaskLister interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
}

// Service tries Meilisearch first and falls back to the store.
type Service struct {
	meili    *Meili
	fallback TaskLister
	logger   *slog.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback TaskLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{meili: meili, fallback: fallback, logger: logger}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: results, Total: total, Query: q.Text, Engine: EngineMeili}
		}
		s.logger.Warn("search.meili.fallback", "error", err)
	}

	tasks, err := s.fallback.ListTasks(ctx, store.TaskFilter{
		Query:    q.Text,
		Status:   q.Status,
		Priority: q.Priority,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		s.logger.Error("search.store", "error", err)
		return Response{Results: []Result{}, Query: q.Text, Engine: EngineStore}
	}
	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		results = append(results, Result{
			ID:       task.ID,
			Title:    task.Title,
			Snippet:  task.Description,
			Status:   task.Status,
			Priority: task.Priority,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text, Engine: EngineStore}
}

// IndexTask pushes task to Meilisearch without waiting for the result.
func (s *Service) IndexTask(task store.Task) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromTask(task)
	go func() {
		if err := s.meili.IndexTask(record); err != nil {
			s.logger.Warn("search.index", "task_id", record.ID, "error", err)
		}
	}()
}

func (s *Service) DeleteTask(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			s.logger.Warn("search.delete", "task_id", id, "error", err)
		}
	}()
}

// ReindexAll loads every task from the store and pushes them in pages.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.fallback == nil {
		return
	}
	const page = 500
	for offset := 0; ; offset += page {
		tasks, err := s.fallback.ListTasks(ctx, store.TaskFilter{Limit: page, Offset: offset})
		if err != nil {
			s.logger.Warn("search.reindex.load", "error", err)
			return
		}
		records := make([]TaskRecord, 0, len(tasks))
		for _, task := range tasks {
			records = append(records, RecordFromTask(task))
		}
		if err := s.meili.IndexTasks(records); err != nil {
			s.logger.Warn("search.reindex", "error", err)
			return
		}
		if len(tasks) < page {
			return
		}
	}
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
