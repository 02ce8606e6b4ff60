package app

import (
	"context"
	"fmt"
	"sort"

	"taskboard/api/internal/realtime"
	"taskboard/api/internal/store"
)

const (
	NotificationTypeAssignment = "task_assigned"
	NotificationTypeComment    = "comment"
	NotificationTypeTimeEntry  = "time_entry"
)

// afterCommit hands the notify/broadcast phase of a write to the fan-out
// worker. It must only be called once the primary write has succeeded.
func (s *Service) afterCommit(name string, run func(ctx context.Context)) {
	if s.jobs == nil {
		return
	}
	s.jobs.Submit(realtime.Job{Name: name, Run: run})
}

// persistNotifications stores one notification per recipient. Failures are
// logged and skipped; the primary write already stands.
func (s *Service) persistNotifications(ctx context.Context, template store.Notification, recipients []int64) []store.Notification {
	created := make([]store.Notification, 0, len(recipients))
	for _, userID := range recipients {
		n := template
		n.UserID = userID
		saved, err := s.store.CreateNotification(ctx, n)
		if err != nil {
			s.logger.Warn("notification.persist", "user_id", userID, "type", n.Type, "error", err)
			continue
		}
		created = append(created, saved)
	}
	return created
}

func (s *Service) deliverNotifications(notifications []store.Notification) {
	for _, n := range notifications {
		s.events.SendToUser(n.UserID, realtime.NotificationCreated(n))
	}
}

// recipients returns the distinct ids in candidates other than actorID, in
// ascending order.
func recipients(actorID int64, candidates ...int64) []int64 {
	seen := make(map[int64]struct{}, len(candidates))
	out := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if id == 0 || id == actorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func assigneeIDs(assignees []store.TaskAssignee) []int64 {
	ids := make([]int64, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.UserID)
	}
	return ids
}

func (s *Service) publishTaskCreated(task store.Task) {
	s.search.IndexTask(task)
	s.afterCommit("task.created", func(context.Context) {
		s.events.Broadcast(realtime.TaskCreated(task), 0)
	})
}

func (s *Service) publishTaskUpdated(task store.Task) {
	s.search.IndexTask(task)
	s.afterCommit("task.updated", func(context.Context) {
		s.events.Broadcast(realtime.TaskUpdated(task), 0)
	})
}

func (s *Service) publishTaskDeleted(taskID int64) {
	s.search.DeleteTask(taskID)
	s.afterCommit("task.deleted", func(context.Context) {
		s.events.Broadcast(realtime.TaskDeleted(taskID), 0)
	})
}

// publishAssignment notifies the assignee, broadcasts the assignment and
// mails the assignee when SMTP is configured. Self-assignment produces no
// notification.
func (s *Service) publishAssignment(actor Actor, task store.Task, assignee store.User) {
	s.afterCommit("task.assigned", func(ctx context.Context) {
		related := task.ID
		created := s.persistNotifications(ctx, store.Notification{
			Title:     "New Task Assignment",
			Message:   fmt.Sprintf("%s assigned you to %q", actor.Name(), task.Title),
			Type:      NotificationTypeAssignment,
			RelatedID: &related,
		}, recipients(actor.UserID, assignee.ID))

		s.events.Broadcast(realtime.TaskAssigned(task, assignee.ID), 0)
		s.deliverNotifications(created)

		if len(created) > 0 && assignee.Email != "" && s.mailer != nil && s.mailer.IsConfigured() {
			name := assignee.DisplayName
			if name == "" {
				name = assignee.Username
			}
			if err := s.mailer.SendAssignmentEmail(assignee.Email, name, actor.Name(), task.ID, task.Title); err != nil {
				s.logger.Warn("email.assignment", "user_id", assignee.ID, "task_id", task.ID, "error", err)
			}
		}
	})
}

func (s *Service) publishUnassignment(task store.Task) {
	s.afterCommit("task.unassigned", func(context.Context) {
		s.events.Broadcast(realtime.TaskUpdated(task), 0)
	})
}

// publishComment notifies every assignee except the commenter and
// broadcasts to everyone but the commenter.
func (s *Service) publishComment(actor Actor, task store.Task, comment store.Comment) {
	s.afterCommit("comment.added", func(ctx context.Context) {
		assignees, err := s.store.ListAssignees(ctx, task.ID)
		if err != nil {
			s.logger.Warn("fanout.assignees", "task_id", task.ID, "error", err)
		}
		related := task.ID
		created := s.persistNotifications(ctx, store.Notification{
			Title:     "New Comment",
			Message:   fmt.Sprintf("%s commented on %q", actor.Name(), task.Title),
			Type:      NotificationTypeComment,
			RelatedID: &related,
		}, recipients(actor.UserID, assigneeIDs(assignees)...))

		s.events.Broadcast(realtime.CommentAdded(comment, task), actor.UserID)
		s.deliverNotifications(created)
	})
}

// publishTimeEntry notifies assignees and the task creator, never the
// logger, and broadcasts to everyone.
func (s *Service) publishTimeEntry(actor Actor, task store.Task, entry store.TimeEntry) {
	s.afterCommit("time_entry.added", func(ctx context.Context) {
		assignees, err := s.store.ListAssignees(ctx, task.ID)
		if err != nil {
			s.logger.Warn("fanout.assignees", "task_id", task.ID, "error", err)
		}
		candidates := append(assigneeIDs(assignees), task.CreatedBy)
		related := task.ID
		created := s.persistNotifications(ctx, store.Notification{
			Title:     "Time Entry Added",
			Message:   fmt.Sprintf("%s logged %s hours on %q", actor.Name(), formatHours(entry.Hours), task.Title),
			Type:      NotificationTypeTimeEntry,
			RelatedID: &related,
		}, recipients(actor.UserID, candidates...))

		s.events.Broadcast(realtime.TimeEntryAdded(entry, task), 0)
		s.deliverNotifications(created)
	})
}

func formatHours(hours float64) string {
	return fmt.Sprintf("%g", hours)
}
