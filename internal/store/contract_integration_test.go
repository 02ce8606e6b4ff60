//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises a freshly created, empty backend. Every Store
// implementation must behave the same way here.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, User{Username: "alice", PasswordHash: "x", Role: "admin"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := s.CreateUser(ctx, User{Username: "bob", PasswordHash: "x", Role: "member"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	if alice.ID != 1 || bob.ID != 2 {
		t.Fatalf("expected user ids 1 and 2, got %d and %d", alice.ID, bob.ID)
	}
	if _, err := s.CreateUser(ctx, User{Username: "Alice", PasswordHash: "x", Role: "member"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected case-insensitive username conflict, got %v", err)
	}
	found, err := s.GetUserByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("get user by username: %v", err)
	}
	if found.ID != alice.ID {
		t.Fatalf("expected user %d, got %d", alice.ID, found.ID)
	}
	if _, err := s.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	task, err := s.CreateTask(ctx, Task{Title: "Ship 50%_off banner", Status: TaskStatusTodo, Priority: PriorityHigh, CreatedBy: alice.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	docs, err := s.CreateTask(ctx, Task{Title: "Write docs", Status: TaskStatusTodo, Priority: PriorityLow, CreatedBy: bob.ID})
	if err != nil {
		t.Fatalf("create docs task: %v", err)
	}
	if task.ID != 1 || docs.ID != 2 {
		t.Fatalf("expected task ids 1 and 2, got %d and %d", task.ID, docs.ID)
	}
	if task.DueDate != nil {
		t.Fatalf("expected no due date, got %v", task.DueDate)
	}

	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	task.DueDate = &due
	task.Status = TaskStatusInProgress
	task.CreatedBy = bob.ID
	task, err = s.UpdateTask(ctx, task)
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if task.DueDate == nil || !due.Equal(*task.DueDate) {
		t.Fatalf("expected due date %v, got %v", due, task.DueDate)
	}
	if task.Status != TaskStatusInProgress {
		t.Fatalf("expected status %s, got %s", TaskStatusInProgress, task.Status)
	}
	if task.CreatedBy != alice.ID {
		t.Fatalf("expected creator to stay %d, got %d", alice.ID, task.CreatedBy)
	}

	task.DueDate = nil
	task, err = s.UpdateTask(ctx, task)
	if err != nil {
		t.Fatalf("clear due date: %v", err)
	}
	reloaded, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.DueDate != nil || reloaded.DueDate != nil {
		t.Fatalf("expected due date to be cleared, got %v / %v", task.DueDate, reloaded.DueDate)
	}
	if _, err := s.UpdateTask(ctx, Task{ID: 999, Title: "ghost", Status: TaskStatusTodo, Priority: PriorityLow}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating an unknown task, got %v", err)
	}

	if _, err := s.AddAssignee(ctx, TaskAssignee{TaskID: task.ID, UserID: bob.ID, AssignedBy: alice.ID}); err != nil {
		t.Fatalf("assign bob: %v", err)
	}
	if _, err := s.AddAssignee(ctx, TaskAssignee{TaskID: task.ID, UserID: bob.ID, AssignedBy: alice.ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a duplicate assignee, got %v", err)
	}
	if _, err := s.AddAssignee(ctx, TaskAssignee{TaskID: 999, UserID: bob.ID, AssignedBy: alice.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound assigning to an unknown task, got %v", err)
	}
	if _, err := s.AddAssignee(ctx, TaskAssignee{TaskID: docs.ID, UserID: alice.ID, AssignedBy: bob.ID}); err != nil {
		t.Fatalf("assign alice: %v", err)
	}
	if err := s.RemoveAssignee(ctx, docs.ID, alice.ID); err != nil {
		t.Fatalf("remove assignee: %v", err)
	}
	if err := s.RemoveAssignee(ctx, docs.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}

	all, err := s.ListTasks(ctx, TaskFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(all) != 2 || all[0].ID != docs.ID {
		t.Fatalf("expected 2 tasks newest first, got %+v", all)
	}
	byAssignee, err := s.ListTasks(ctx, TaskFilter{AssigneeID: bob.ID, Query: "50%"})
	if err != nil {
		t.Fatalf("list by assignee: %v", err)
	}
	if len(byAssignee) != 1 || byAssignee[0].ID != task.ID {
		t.Fatalf("expected only task %d for bob, got %+v", task.ID, byAssignee)
	}
	unassigned, err := s.ListTasks(ctx, TaskFilter{AssigneeID: alice.ID})
	if err != nil {
		t.Fatalf("list by assignee without tasks: %v", err)
	}
	if len(unassigned) != 0 {
		t.Fatalf("expected no tasks for alice, got %+v", unassigned)
	}
	literal, err := s.ListTasks(ctx, TaskFilter{Query: "5_%"})
	if err != nil {
		t.Fatalf("list by literal query: %v", err)
	}
	if len(literal) != 0 {
		t.Fatalf("expected wildcards to match literally, got %+v", literal)
	}
	byStatus, err := s.ListTasks(ctx, TaskFilter{Status: TaskStatusInProgress})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != task.ID {
		t.Fatalf("expected task %d in progress, got %+v", task.ID, byStatus)
	}
	paged, err := s.ListTasks(ctx, TaskFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != task.ID {
		t.Fatalf("expected second page to hold task %d, got %+v", task.ID, paged)
	}

	comment, err := s.CreateComment(ctx, Comment{TaskID: task.ID, UserID: bob.ID, Content: "on it"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if comment.ID != 1 {
		t.Fatalf("expected the comment counter to start at 1, got %d", comment.ID)
	}
	if _, err := s.CreateTimeEntry(ctx, TimeEntry{TaskID: task.ID, UserID: bob.ID, Hours: 1.5}); err != nil {
		t.Fatalf("create time entry: %v", err)
	}
	if _, err := s.CreateAttachment(ctx, Attachment{TaskID: task.ID, UserID: bob.ID, FileName: "a.txt", ObjectKey: "tasks/1/a.txt"}); err != nil {
		t.Fatalf("create attachment: %v", err)
	}
	if _, err := s.CreateComment(ctx, Comment{TaskID: 999, UserID: bob.ID, Content: "orphan"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound commenting on an unknown task, got %v", err)
	}

	related := task.ID
	first, err := s.CreateNotification(ctx, Notification{UserID: bob.ID, Title: "one", Type: "comment", IsRead: true, RelatedID: &related})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if first.IsRead {
		t.Fatalf("expected new notifications to start unread")
	}
	if _, err := s.CreateNotification(ctx, Notification{UserID: bob.ID, Title: "two", Type: "comment"}); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if _, err := s.CreateNotification(ctx, Notification{UserID: alice.ID, Title: "other", Type: "comment"}); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if count, err := s.UnreadNotificationCount(ctx, bob.ID); err != nil || count != 2 {
		t.Fatalf("expected 2 unread for bob, got %d (%v)", count, err)
	}
	for i := 0; i < 2; i++ {
		read, err := s.MarkNotificationRead(ctx, first.ID)
		if err != nil {
			t.Fatalf("mark read: %v", err)
		}
		if !read.IsRead {
			t.Fatalf("expected notification %d to be read", first.ID)
		}
	}
	unread, err := s.ListNotifications(ctx, bob.ID, true)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 1 || unread[0].Title != "two" {
		t.Fatalf("expected only notification two unread, got %+v", unread)
	}
	if updated, err := s.MarkAllNotificationsRead(ctx, bob.ID); err != nil || updated != 1 {
		t.Fatalf("expected 1 notification marked read, got %d (%v)", updated, err)
	}
	if updated, err := s.MarkAllNotificationsRead(ctx, bob.ID); err != nil || updated != 0 {
		t.Fatalf("expected nothing left to mark, got %d (%v)", updated, err)
	}
	if count, err := s.UnreadNotificationCount(ctx, alice.ID); err != nil || count != 1 {
		t.Fatalf("expected alice's notification untouched, got %d (%v)", count, err)
	}
	if _, err := s.MarkNotificationRead(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown notification, got %v", err)
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	assignees, _ := s.ListAssignees(ctx, task.ID)
	comments, _ := s.ListComments(ctx, task.ID)
	entries, _ := s.ListTimeEntries(ctx, task.ID)
	attachments, _ := s.ListAttachments(ctx, task.ID)
	if len(assignees)+len(comments)+len(entries)+len(attachments) != 0 {
		t.Fatalf("expected delete to cascade, got %d assignees %d comments %d entries %d attachments",
			len(assignees), len(comments), len(entries), len(attachments))
	}
	notes, err := s.ListNotifications(ctx, bob.ID, false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected notifications to outlive the task, got %d", len(notes))
	}
	if err := s.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
