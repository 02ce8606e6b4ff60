package app

import (
	"context"
	"strings"
	"time"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type CreateTaskInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskInput is a partial update: nil fields are left alone.
type UpdateTaskInput struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=10000"`
	Status       *string    `json:"status" validate:"omitempty,oneof=todo in_progress review done"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
}

// TaskDetail is a task with its assignees.
type TaskDetail struct {
	store.Task
	Assignees []store.TaskAssignee `json:"assignees"`
}

func (s *Service) ListTasks(ctx context.Context, actor Actor, filter store.TaskFilter) ([]store.Task, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	return tasks, nil
}

func (s *Service) GetTask(ctx context.Context, actor Actor, id int64) (TaskDetail, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return TaskDetail{}, err
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return TaskDetail{}, wrapNotFound(err, "Task")
	}
	assignees, err := s.store.ListAssignees(ctx, id)
	if err != nil {
		return TaskDetail{}, err
	}
	if assignees == nil {
		assignees = []store.TaskAssignee{}
	}
	return TaskDetail{Task: task, Assignees: assignees}, nil
}

func (s *Service) CreateTask(ctx context.Context, actor Actor, input CreateTaskInput) (store.Task, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.Task{}, err
	}
	input.Title = strings.TrimSpace(input.Title)
	if err := s.validate.Struct(input); err != nil {
		return store.Task{}, err
	}
	task := store.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CreatedBy:   actor.UserID,
	}
	if task.Status == "" {
		task.Status = store.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = store.PriorityMedium
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return store.Task{}, err
	}
	s.publishTaskCreated(created)
	return created, nil
}

func (s *Service) UpdateTask(ctx context.Context, actor Actor, id int64, input UpdateTaskInput) (store.Task, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.Task{}, err
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		input.Title = &trimmed
	}
	if err := s.validate.Struct(input); err != nil {
		return store.Task{}, err
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return store.Task{}, wrapNotFound(err, "Task")
	}

	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.ClearDueDate {
		task.DueDate = nil
	}

	updated, err := s.store.UpdateTask(ctx, task)
	if err != nil {
		return store.Task{}, wrapNotFound(err, "Task")
	}
	s.publishTaskUpdated(updated)
	return updated, nil
}

func (s *Service) DeleteTask(ctx context.Context, actor Actor, id int64) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return wrapNotFound(err, "Task")
	}
	if !rbac.CanDeleteOwned(actor.Role, actor.UserID, task.CreatedBy) {
		return errForbidden
	}
	attachments, err := s.store.ListAttachments(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return wrapNotFound(err, "Task")
	}
	s.removeObjects(attachments)
	s.publishTaskDeleted(id)
	return nil
}
