// Package realtime pushes live updates to browser sessions over WebSocket.
// A Registry tracks open connections per user, a Dispatcher fans events out
// to them and a Worker runs fan-out jobs off the request path.
package realtime

import "taskboard/api/internal/store"

type Kind string

const (
	KindConnected      Kind = "connected"
	KindTaskUpdate     Kind = "task_update"
	KindTaskAssigned   Kind = "task_assigned"
	KindCommentAdded   Kind = "comment_added"
	KindTimeEntryAdded Kind = "time_entry_added"
	KindNotification   Kind = "notification"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event is the outbound envelope. It is serialised once per dispatch.
type Event struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload"`
}

type ConnectedPayload struct {
	UserID int64 `json:"userId"`
}

type TaskUpdatePayload struct {
	Action string      `json:"action"`
	Task   *store.Task `json:"task,omitempty"`
	TaskID int64       `json:"taskId,omitempty"`
}

type TaskAssignedPayload struct {
	TaskID int64      `json:"taskId"`
	UserID int64      `json:"userId"`
	Task   store.Task `json:"task"`
}

type CommentAddedPayload struct {
	Comment store.Comment `json:"comment"`
	Task    store.Task    `json:"task"`
}

type TimeEntryAddedPayload struct {
	TaskID    int64           `json:"taskId"`
	UserID    int64           `json:"userId"`
	TimeEntry store.TimeEntry `json:"timeEntry"`
	Task      store.Task      `json:"task"`
}

func Connected(userID int64) Event {
	return Event{Type: KindConnected, Payload: ConnectedPayload{UserID: userID}}
}

func TaskCreated(task store.Task) Event {
	return Event{Type: KindTaskUpdate, Payload: TaskUpdatePayload{Action: ActionCreated, Task: &task}}
}

func TaskUpdated(task store.Task) Event {
	return Event{Type: KindTaskUpdate, Payload: TaskUpdatePayload{Action: ActionUpdated, Task: &task}}
}

func TaskDeleted(taskID int64) Event {
	return Event{Type: KindTaskUpdate, Payload: TaskUpdatePayload{Action: ActionDeleted, TaskID: taskID}}
}

func TaskAssigned(task store.Task, userID int64) Event {
	return Event{Type: KindTaskAssigned, Payload: TaskAssignedPayload{TaskID: task.ID, UserID: userID, Task: task}}
}

func CommentAdded(comment store.Comment, task store.Task) Event {
	return Event{Type: KindCommentAdded, Payload: CommentAddedPayload{Comment: comment, Task: task}}
}

func TimeEntryAdded(entry store.TimeEntry, task store.Task) Event {
	return Event{Type: KindTimeEntryAdded, Payload: TimeEntryAddedPayload{
		TaskID:    task.ID,
		UserID:    entry.UserID,
		TimeEntry: entry,
		Task:      task,
	}}
}

func NotificationCreated(notification store.Notification) Event {
	return Event{Type: KindNotification, Payload: notification}
}
