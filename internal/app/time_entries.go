package app

import (
	"context"
	"strings"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type TimeEntryInput struct {
	Hours       float64    `json:"hours" validate:"gt=0,lte=24"`
	Description string     `json:"description" validate:"max=1000"`
	Date        *time.Time `json:"date"`
}

func (s *Service) ListTimeEntries(ctx context.Context, actor Actor, taskID int64) ([]store.TimeEntry, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, wrapNotFound(err, "Task")
	}
	entries, err := s.store.ListTimeEntries(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []store.TimeEntry{}
	}
	return entries, nil
}

func (s *Service) LogTime(ctx context.Context, actor Actor, taskID int64, input TimeEntryInput) (store.TimeEntry, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.TimeEntry{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return store.TimeEntry{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.TimeEntry{}, wrapNotFound(err, "Task")
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if input.Date != nil {
		date = input.Date.UTC()
	}
	entry, err := s.store.CreateTimeEntry(ctx, store.TimeEntry{
		TaskID:      task.ID,
		UserID:      actor.UserID,
		Hours:       input.Hours,
		Description: strings.TrimSpace(input.Description),
		Date:        date,
	})
	if err != nil {
		return store.TimeEntry{}, wrapNotFound(err, "Task")
	}
	s.publishTimeEntry(actor, task, entry)
	return entry, nil
}
