package store

import "time"

type User struct {
	ID           int64     `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	DisplayName  string    `json:"displayName" bson:"displayName"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Task struct {
	ID          int64      `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Status      string     `json:"status" bson:"status"`
	Priority    string     `json:"priority" bson:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	CreatedBy   int64      `json:"createdBy" bson:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

type TaskAssignee struct {
	ID         int64     `json:"id" bson:"_id"`
	TaskID     int64     `json:"taskId" bson:"taskId"`
	UserID     int64     `json:"userId" bson:"userId"`
	AssignedBy int64     `json:"assignedBy" bson:"assignedBy"`
	AssignedAt time.Time `json:"assignedAt" bson:"assignedAt"`
}

type Comment struct {
	ID        int64     `json:"id" bson:"_id"`
	TaskID    int64     `json:"taskId" bson:"taskId"`
	UserID    int64     `json:"userId" bson:"userId"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type TimeEntry struct {
	ID          int64     `json:"id" bson:"_id"`
	TaskID      int64     `json:"taskId" bson:"taskId"`
	UserID      int64     `json:"userId" bson:"userId"`
	Hours       float64   `json:"hours" bson:"hours"`
	Description string    `json:"description" bson:"description"`
	Date        time.Time `json:"date" bson:"date"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

type Attachment struct {
	ID          int64     `json:"id" bson:"_id"`
	TaskID      int64     `json:"taskId" bson:"taskId"`
	UserID      int64     `json:"userId" bson:"userId"`
	FileName    string    `json:"fileName" bson:"fileName"`
	ContentType string    `json:"contentType" bson:"contentType"`
	Size        int64     `json:"size" bson:"size"`
	ObjectKey   string    `json:"-" bson:"objectKey"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Notification is a recipient-addressed inbox record. IsRead only ever
// moves from false to true.
type Notification struct {
	ID        int64     `json:"id" bson:"_id"`
	UserID    int64     `json:"userId" bson:"userId"`
	Title     string    `json:"title" bson:"title"`
	Message   string    `json:"message" bson:"message"`
	Type      string    `json:"type" bson:"type"`
	IsRead    bool      `json:"isRead" bson:"isRead"`
	RelatedID *int64    `json:"relatedId,omitempty" bson:"relatedId,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	Status     string
	Priority   string
	AssigneeID int64
	CreatedBy  int64
	Query      string
	Limit      int
	Offset     int
}

const (
	defaultTaskLimit = 100
	maxTaskLimit     = 500
)

func (f TaskFilter) normalized() TaskFilter {
	if f.Limit <= 0 {
		f.Limit = defaultTaskLimit
	}
	if f.Limit > maxTaskLimit {
		f.Limit = maxTaskLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
