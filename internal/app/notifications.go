package app

import (
	"context"

	"taskboard/api/internal/store"
)

// Notifications are private to their recipient; every role may read and
// acknowledge its own.

func (s *Service) ListNotifications(ctx context.Context, actor Actor, unreadOnly bool) ([]store.Notification, error) {
	items, err := s.store.ListNotifications(ctx, actor.UserID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Notification{}
	}
	return items, nil
}

func (s *Service) UnreadNotificationCount(ctx context.Context, actor Actor) (int, error) {
	return s.store.UnreadNotificationCount(ctx, actor.UserID)
}

// MarkNotificationRead is idempotent. Another user's notification reads as
// missing.
func (s *Service) MarkNotificationRead(ctx context.Context, actor Actor, id int64) (store.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return store.Notification{}, wrapNotFound(err, "Notification")
	}
	if n.UserID != actor.UserID {
		return store.Notification{}, notFound("Notification")
	}
	if n.IsRead {
		return n, nil
	}
	updated, err := s.store.MarkNotificationRead(ctx, id)
	if err != nil {
		return store.Notification{}, wrapNotFound(err, "Notification")
	}
	return updated, nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, actor Actor) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, actor.UserID)
}
