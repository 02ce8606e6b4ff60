package app

import (
	"context"
	"strings"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type CommentInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (s *Service) ListComments(ctx context.Context, actor Actor, taskID int64) ([]store.Comment, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, wrapNotFound(err, "Task")
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []store.Comment{}
	}
	return comments, nil
}

func (s *Service) AddComment(ctx context.Context, actor Actor, taskID int64, input CommentInput) (store.Comment, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.Comment{}, err
	}
	input.Content = strings.TrimSpace(input.Content)
	if err := s.validate.Struct(input); err != nil {
		return store.Comment{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Comment{}, wrapNotFound(err, "Task")
	}
	comment, err := s.store.CreateComment(ctx, store.Comment{
		TaskID:  task.ID,
		UserID:  actor.UserID,
		Content: input.Content,
	})
	if err != nil {
		return store.Comment{}, wrapNotFound(err, "Task")
	}
	s.publishComment(actor, task, comment)
	return comment, nil
}
