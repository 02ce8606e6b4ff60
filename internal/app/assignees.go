package app

import (
	"context"
	"errors"
	"net/http"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type AssignInput struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}

func (s *Service) ListAssignees(ctx context.Context, actor Actor, taskID int64) ([]store.TaskAssignee, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, wrapNotFound(err, "Task")
	}
	assignees, err := s.store.ListAssignees(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if assignees == nil {
		assignees = []store.TaskAssignee{}
	}
	return assignees, nil
}

func (s *Service) AssignUser(ctx context.Context, actor Actor, taskID int64, input AssignInput) (store.TaskAssignee, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.TaskAssignee{}, err
	}
	if err := s.validate.Struct(input); err != nil {
		return store.TaskAssignee{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.TaskAssignee{}, wrapNotFound(err, "Task")
	}
	assignee, err := s.store.GetUser(ctx, input.UserID)
	if err != nil {
		return store.TaskAssignee{}, wrapNotFound(err, "User")
	}

	assignment, err := s.store.AddAssignee(ctx, store.TaskAssignee{
		TaskID:     task.ID,
		UserID:     assignee.ID,
		AssignedBy: actor.UserID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.TaskAssignee{}, domainError(http.StatusConflict, "ALREADY_ASSIGNED", "User is already assigned to this task", nil)
		}
		return store.TaskAssignee{}, wrapNotFound(err, "Task")
	}
	s.publishAssignment(actor, task, assignee)
	return assignment, nil
}

func (s *Service) UnassignUser(ctx context.Context, actor Actor, taskID, userID int64) error {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return wrapNotFound(err, "Task")
	}
	if err := s.store.RemoveAssignee(ctx, taskID, userID); err != nil {
		return wrapNotFound(err, "Assignment")
	}
	s.publishUnassignment(task)
	return nil
}
