// Package store is the persistence adapter for taskboard entities. It offers
// a MongoDB document store, a PostgreSQL store and an in-memory fallback that
// all satisfy Store.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	DeleteTask(ctx context.Context, id int64) error

	AddAssignee(ctx context.Context, assignee TaskAssignee) (TaskAssignee, error)
	RemoveAssignee(ctx context.Context, taskID, userID int64) error
	ListAssignees(ctx context.Context, taskID int64) ([]TaskAssignee, error)

	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, taskID int64) ([]Comment, error)

	CreateTimeEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	ListTimeEntries(ctx context.Context, taskID int64) ([]TimeEntry, error)

	CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, id int64) (Attachment, error)
	ListAttachments(ctx context.Context, taskID int64) ([]Attachment, error)
	DeleteAttachment(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	GetNotification(ctx context.Context, id int64) (Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error)
	UnreadNotificationCount(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) (Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
