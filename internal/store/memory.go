package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps every entity in process memory. It backs tests and is the
// fallback when the configured database cannot be reached at startup.
type MemoryStore struct {
	mu sync.RWMutex

	counters      map[string]int64
	users         map[int64]User
	tasks         map[int64]Task
	assignees     map[int64]TaskAssignee
	comments      map[int64]Comment
	timeEntries   map[int64]TimeEntry
	attachments   map[int64]Attachment
	notifications map[int64]Notification

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters:      make(map[string]int64),
		users:         make(map[int64]User),
		tasks:         make(map[int64]Task),
		assignees:     make(map[int64]TaskAssignee),
		comments:      make(map[int64]Comment),
		timeEntries:   make(map[int64]TimeEntry),
		attachments:   make(map[int64]Attachment),
		notifications: make(map[int64]Notification),
		now:           time.Now,
	}
}

// nextID must be called with mu held.
func (s *MemoryStore) nextID(kind string) int64 {
	s.counters[kind]++
	return s.counters[kind]
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return User{}, fmt.Errorf("user %q: %w", user.Username, ErrConflict)
		}
	}
	user.ID = s.nextID("users")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return user, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]User, 0, len(s.users))
	for _, user := range s.users {
		items = append(items, user)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	task.ID = s.nextID("tasks")
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	return task, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return task, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]Task, error) {
	filter = filter.normalized()
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	assigned := map[int64]struct{}{}
	if filter.AssigneeID != 0 {
		for _, a := range s.assignees {
			if a.UserID == filter.AssigneeID {
				assigned[a.TaskID] = struct{}{}
			}
		}
	}

	items := make([]Task, 0)
	for _, task := range s.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		if filter.CreatedBy != 0 && task.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.AssigneeID != 0 {
			if _, ok := assigned[task.ID]; !ok {
				continue
			}
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(task.Title), query) &&
			!strings.Contains(strings.ToLower(task.Description), query) {
			continue
		}
		items = append(items, task)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })

	if filter.Offset >= len(items) {
		return []Task{}, nil
	}
	items = items[filter.Offset:]
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task Task) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[task.ID]
	if !ok {
		return Task{}, fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
	}
	task.CreatedAt = existing.CreatedAt
	task.CreatedBy = existing.CreatedBy
	task.UpdatedAt = s.now().UTC()
	s.tasks[task.ID] = task
	return task, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	for key, a := range s.assignees {
		if a.TaskID == id {
			delete(s.assignees, key)
		}
	}
	for key, c := range s.comments {
		if c.TaskID == id {
			delete(s.comments, key)
		}
	}
	for key, e := range s.timeEntries {
		if e.TaskID == id {
			delete(s.timeEntries, key)
		}
	}
	for key, a := range s.attachments {
		if a.TaskID == id {
			delete(s.attachments, key)
		}
	}
	return nil
}

func (s *MemoryStore) AddAssignee(_ context.Context, assignee TaskAssignee) (TaskAssignee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[assignee.TaskID]; !ok {
		return TaskAssignee{}, fmt.Errorf("task %d: %w", assignee.TaskID, ErrNotFound)
	}
	for _, existing := range s.assignees {
		if existing.TaskID == assignee.TaskID && existing.UserID == assignee.UserID {
			return TaskAssignee{}, fmt.Errorf("assignee %d on task %d: %w", assignee.UserID, assignee.TaskID, ErrConflict)
		}
	}
	assignee.ID = s.nextID("task_assignees")
	assignee.AssignedAt = s.now().UTC()
	s.assignees[assignee.ID] = assignee
	return assignee, nil
}

func (s *MemoryStore) RemoveAssignee(_ context.Context, taskID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, a := range s.assignees {
		if a.TaskID == taskID && a.UserID == userID {
			delete(s.assignees, key)
			return nil
		}
	}
	return fmt.Errorf("assignee %d on task %d: %w", userID, taskID, ErrNotFound)
}

func (s *MemoryStore) ListAssignees(_ context.Context, taskID int64) ([]TaskAssignee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]TaskAssignee, 0)
	for _, a := range s.assignees {
		if a.TaskID == taskID {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[comment.TaskID]; !ok {
		return Comment{}, fmt.Errorf("task %d: %w", comment.TaskID, ErrNotFound)
	}
	comment.ID = s.nextID("comments")
	comment.CreatedAt = s.now().UTC()
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *MemoryStore) ListComments(_ context.Context, taskID int64) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Comment, 0)
	for _, c := range s.comments {
		if c.TaskID == taskID {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateTimeEntry(_ context.Context, entry TimeEntry) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[entry.TaskID]; !ok {
		return TimeEntry{}, fmt.Errorf("task %d: %w", entry.TaskID, ErrNotFound)
	}
	entry.ID = s.nextID("time_entries")
	entry.CreatedAt = s.now().UTC()
	if entry.Date.IsZero() {
		entry.Date = entry.CreatedAt
	}
	s.timeEntries[entry.ID] = entry
	return entry, nil
}

func (s *MemoryStore) ListTimeEntries(_ context.Context, taskID int64) ([]TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]TimeEntry, 0)
	for _, e := range s.timeEntries {
		if e.TaskID == taskID {
			items = append(items, e)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreateAttachment(_ context.Context, attachment Attachment) (Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[attachment.TaskID]; !ok {
		return Attachment{}, fmt.Errorf("task %d: %w", attachment.TaskID, ErrNotFound)
	}
	attachment.ID = s.nextID("attachments")
	attachment.CreatedAt = s.now().UTC()
	s.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (s *MemoryStore) GetAttachment(_ context.Context, id int64) (Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attachment, ok := s.attachments[id]
	if !ok {
		return Attachment{}, fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	return attachment, nil
}

func (s *MemoryStore) ListAttachments(_ context.Context, taskID int64) ([]Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Attachment, 0)
	for _, a := range s.attachments {
		if a.TaskID == taskID {
			items = append(items, a)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) DeleteAttachment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[id]; !ok {
		return fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	delete(s.attachments, id)
	return nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, notification Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.ID = s.nextID("notifications")
	notification.IsRead = false
	notification.CreatedAt = s.now().UTC()
	s.notifications[notification.ID] = notification
	return notification, nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id int64) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	notification, ok := s.notifications[id]
	if !ok {
		return Notification{}, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return notification, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Notification, 0)
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

func (s *MemoryStore) UnreadNotificationCount(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id int64) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification, ok := s.notifications[id]
	if !ok {
		return Notification{}, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	notification.IsRead = true
	s.notifications[id] = notification
	return notification, nil
}

func (s *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
