package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db  *sql.DB
	psq sq.StatementBuilderType
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		psq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// mapPgError converts driver errors into store sentinels. Context errors pass
// through untouched.
func mapPgError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", what, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

const userColumns = `id, username, email, display_name, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Role, &user.CreatedAt)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Username, user.Email, user.DisplayName, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		return User{}, mapPgError(err, "insert user")
	}
	return created, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return User{}, mapPgError(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username)=LOWER($1)`, username))
	if err != nil {
		return User{}, mapPgError(err, fmt.Sprintf("user %q", username))
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

var taskColumns = []string{"t.id", "t.title", "t.description", "t.status", "t.priority", "t.due_date", "t.created_by", "t.created_at", "t.updated_at"}

const taskReturning = `id, title, description, status, priority, due_date, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var (
		task Task
		due  sql.NullTime
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority, &due, &task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	if due.Valid {
		value := due.Time
		task.DueDate = &value
	}
	return task, err
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, status, priority, due_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskReturning,
		task.Title, task.Description, task.Status, task.Priority, nullTime(task.DueDate), task.CreatedBy)
	created, err := scanTask(row)
	if err != nil {
		return Task{}, mapPgError(err, "insert task")
	}
	return created, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id int64) (Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskReturning+` FROM tasks WHERE id=$1`, id))
	if err != nil {
		return Task{}, mapPgError(err, fmt.Sprintf("task %d", id))
	}
	return task, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	filter = filter.normalized()

	query := s.psq.Select(taskColumns...).From("tasks t")
	if filter.Status != "" {
		query = query.Where(sq.Eq{"t.status": filter.Status})
	}
	if filter.Priority != "" {
		query = query.Where(sq.Eq{"t.priority": filter.Priority})
	}
	if filter.CreatedBy != 0 {
		query = query.Where(sq.Eq{"t.created_by": filter.CreatedBy})
	}
	if filter.AssigneeID != 0 {
		query = query.Where("EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = ?)", filter.AssigneeID)
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		query = query.Where(sq.Or{
			sq.ILike{"t.title": pattern},
			sq.ILike{"t.description": pattern},
		})
	}
	query = query.OrderBy("t.id DESC").Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))

	statement, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET title=$2, description=$3, status=$4, priority=$5, due_date=$6, updated_at=NOW()
		WHERE id=$1
		RETURNING `+taskReturning,
		task.ID, task.Title, task.Description, task.Status, task.Priority, nullTime(task.DueDate))
	updated, err := scanTask(row)
	if err != nil {
		return Task{}, mapPgError(err, fmt.Sprintf("update task %d", task.ID))
	}
	return updated, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("delete task %d", id))
	}
	return requireAffected(result, fmt.Sprintf("task %d", id))
}

func requireAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AddAssignee(ctx context.Context, assignee TaskAssignee) (TaskAssignee, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO task_assignees (task_id, user_id, assigned_by)
		VALUES ($1, $2, $3)
		RETURNING id, assigned_at
	`, assignee.TaskID, assignee.UserID, assignee.AssignedBy).Scan(&assignee.ID, &assignee.AssignedAt)
	if err != nil {
		return TaskAssignee{}, mapPgError(err, fmt.Sprintf("assign user %d to task %d", assignee.UserID, assignee.TaskID))
	}
	return assignee, nil
}

func (s *PostgresStore) RemoveAssignee(ctx context.Context, taskID, userID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=$1 AND user_id=$2`, taskID, userID)
	if err != nil {
		return mapPgError(err, "remove assignee")
	}
	return requireAffected(result, fmt.Sprintf("assignee %d on task %d", userID, taskID))
}

func (s *PostgresStore) ListAssignees(ctx context.Context, taskID int64) ([]TaskAssignee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, assigned_by, assigned_at
		FROM task_assignees
		WHERE task_id=$1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	items := make([]TaskAssignee, 0)
	for rows.Next() {
		var item TaskAssignee
		if err := rows.Scan(&item.ID, &item.TaskID, &item.UserID, &item.AssignedBy, &item.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignees: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (task_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, comment.TaskID, comment.UserID, comment.Content).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return Comment{}, mapPgError(err, "insert comment")
	}
	return comment, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, content, created_at
		FROM comments
		WHERE task_id=$1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.UserID, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTimeEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	date := entry.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO time_entries (task_id, user_id, hours, description, entry_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, entry_date, created_at
	`, entry.TaskID, entry.UserID, entry.Hours, entry.Description, date).Scan(&entry.ID, &entry.Date, &entry.CreatedAt)
	if err != nil {
		return TimeEntry{}, mapPgError(err, "insert time entry")
	}
	return entry, nil
}

func (s *PostgresStore) ListTimeEntries(ctx context.Context, taskID int64) ([]TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, hours, description, entry_date, created_at
		FROM time_entries
		WHERE task_id=$1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	items := make([]TimeEntry, 0)
	for rows.Next() {
		var item TimeEntry
		if err := rows.Scan(&item.ID, &item.TaskID, &item.UserID, &item.Hours, &item.Description, &item.Date, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return items, nil
}

const attachmentColumns = `id, task_id, user_id, file_name, content_type, size, object_key, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (Attachment, error) {
	var item Attachment
	err := row.Scan(&item.ID, &item.TaskID, &item.UserID, &item.FileName, &item.ContentType, &item.Size, &item.ObjectKey, &item.CreatedAt)
	return item, err
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (task_id, user_id, file_name, content_type, size, object_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+attachmentColumns,
		attachment.TaskID, attachment.UserID, attachment.FileName, attachment.ContentType, attachment.Size, attachment.ObjectKey)
	created, err := scanAttachment(row)
	if err != nil {
		return Attachment{}, mapPgError(err, "insert attachment")
	}
	return created, nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, id int64) (Attachment, error) {
	item, err := scanAttachment(s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, id))
	if err != nil {
		return Attachment{}, mapPgError(err, fmt.Sprintf("attachment %d", id))
	}
	return item, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, taskID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE task_id=$1 ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err, fmt.Sprintf("delete attachment %d", id))
	}
	return requireAffected(result, fmt.Sprintf("attachment %d", id))
}

const notificationColumns = `id, user_id, title, message, type, is_read, related_id, created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var (
		item    Notification
		related sql.NullInt64
	)
	err := row.Scan(&item.ID, &item.UserID, &item.Title, &item.Message, &item.Type, &item.IsRead, &related, &item.CreatedAt)
	if related.Valid {
		value := related.Int64
		item.RelatedID = &value
	}
	return item, err
}

func (s *PostgresStore) CreateNotification(ctx context.Context, notification Notification) (Notification, error) {
	var related sql.NullInt64
	if notification.RelatedID != nil {
		related = sql.NullInt64{Int64: *notification.RelatedID, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, message, type, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		notification.UserID, notification.Title, notification.Message, notification.Type, related)
	created, err := scanNotification(row)
	if err != nil {
		return Notification{}, mapPgError(err, "insert notification")
	}
	return created, nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id int64) (Notification, error) {
	item, err := scanNotification(s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id))
	if err != nil {
		return Notification{}, mapPgError(err, fmt.Sprintf("notification %d", id))
	}
	return item, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	query := s.psq.Select(notificationColumns).From("notifications").Where(sq.Eq{"user_id": userID})
	if unreadOnly {
		query = query.Where(sq.Eq{"is_read": false})
	}
	statement, args, err := query.OrderBy("id DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build notification query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		item, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read=FALSE`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id int64) (Notification, error) {
	row := s.db.QueryRowContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 RETURNING `+notificationColumns, id)
	item, err := scanNotification(row)
	if err != nil {
		return Notification{}, mapPgError(err, fmt.Sprintf("notification %d", id))
	}
	return item, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND is_read=FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
