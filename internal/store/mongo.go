package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collUsers         = "users"
	collTasks         = "tasks"
	collAssignees     = "task_assignees"
	collComments      = "comments"
	collTimeEntries   = "time_entries"
	collAttachments   = "attachments"
	collNotifications = "notifications"
	collCounters      = "counters"
)

var usernameCollation = &options.Collation{Locale: "en", Strength: 2}

// MongoStore keeps each entity in its own collection. Numeric ids come from
// the counters collection so they line up with the relational backends.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	if database == "" {
		database = "taskboard"
	}
	s := &MongoStore{
		client: client,
		db:     client.Database(database),
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(usernameCollation),
			},
		},
		collTasks: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		},
		collAssignees: {
			{
				Keys:    bson.D{{Key: "taskId", Value: 1}, {Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		collComments:    {{Keys: bson.D{{Key: "taskId", Value: 1}}}},
		collTimeEntries: {{Keys: bson.D{{Key: "taskId", Value: 1}}}},
		collAttachments: {{Keys: bson.D{{Key: "taskId", Value: 1}}}},
		collNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isRead", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) nextID(ctx context.Context, kind string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(collCounters).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: kind}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", kind, err)
	}
	return counter.Seq, nil
}

func mapMongoError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *MongoStore) requireTask(ctx context.Context, taskID int64) error {
	count, err := s.db.Collection(collTasks).CountDocuments(ctx, bson.D{{Key: "_id", Value: taskID}})
	if err != nil {
		return fmt.Errorf("task %d: %w", taskID, err)
	}
	if count == 0 {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func byID() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
}

func (s *MongoStore) CreateUser(ctx context.Context, user User) (User, error) {
	id, err := s.nextID(ctx, collUsers)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	user.CreatedAt = s.now()
	if _, err := s.db.Collection(collUsers).InsertOne(ctx, user); err != nil {
		return User{}, mapMongoError(err, fmt.Sprintf("user %q", user.Username))
	}
	return user, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user)
	if err != nil {
		return User{}, mapMongoError(err, fmt.Sprintf("user %d", id))
	}
	return user, nil
}

func (s *MongoStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.Collection(collUsers).FindOne(ctx,
		bson.D{{Key: "username", Value: username}},
		options.FindOne().SetCollation(usernameCollation),
	).Decode(&user)
	if err != nil {
		return User{}, mapMongoError(err, fmt.Sprintf("user %q", username))
	}
	return user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]User, error) {
	items, err := findAll[User](ctx, s.db.Collection(collUsers), bson.D{}, byID())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return items, nil
}

func (s *MongoStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	id, err := s.nextID(ctx, collTasks)
	if err != nil {
		return Task{}, err
	}
	now := s.now()
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	if _, err := s.db.Collection(collTasks).InsertOne(ctx, task); err != nil {
		return Task{}, mapMongoError(err, "insert task")
	}
	return task, nil
}

func (s *MongoStore) GetTask(ctx context.Context, id int64) (Task, error) {
	var task Task
	err := s.db.Collection(collTasks).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&task)
	if err != nil {
		return Task{}, mapMongoError(err, fmt.Sprintf("task %d", id))
	}
	return task, nil
}

func (s *MongoStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	filter = filter.normalized()

	query := bson.D{}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: filter.Status})
	}
	if filter.Priority != "" {
		query = append(query, bson.E{Key: "priority", Value: filter.Priority})
	}
	if filter.CreatedBy != 0 {
		query = append(query, bson.E{Key: "createdBy", Value: filter.CreatedBy})
	}
	if filter.AssigneeID != 0 {
		links, err := findAll[TaskAssignee](ctx, s.db.Collection(collAssignees), bson.D{{Key: "userId", Value: filter.AssigneeID}})
		if err != nil {
			return nil, fmt.Errorf("list assigned tasks: %w", err)
		}
		ids := make([]int64, 0, len(links))
		for _, link := range links {
			ids = append(ids, link.TaskID)
		}
		query = append(query, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}})
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "description", Value: pattern}},
		}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(filter.Limit)).
		SetSkip(int64(filter.Offset))
	items, err := findAll[Task](ctx, s.db.Collection(collTasks), query, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return items, nil
}

func (s *MongoStore) UpdateTask(ctx context.Context, task Task) (Task, error) {
	set := bson.D{
		{Key: "title", Value: task.Title},
		{Key: "description", Value: task.Description},
		{Key: "status", Value: task.Status},
		{Key: "priority", Value: task.Priority},
		{Key: "updatedAt", Value: s.now()},
	}
	if task.DueDate != nil {
		set = append(set, bson.E{Key: "dueDate", Value: *task.DueDate})
	}
	update := bson.D{{Key: "$set", Value: set}}
	if task.DueDate == nil {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "dueDate", Value: ""}}})
	}

	var updated Task
	err := s.db.Collection(collTasks).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: task.ID}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return Task{}, mapMongoError(err, fmt.Sprintf("update task %d", task.ID))
	}
	return updated, nil
}

func (s *MongoStore) DeleteTask(ctx context.Context, id int64) error {
	result, err := s.db.Collection(collTasks).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	for _, name := range []string{collAssignees, collComments, collTimeEntries, collAttachments} {
		if _, err := s.db.Collection(name).DeleteMany(ctx, bson.D{{Key: "taskId", Value: id}}); err != nil {
			return fmt.Errorf("delete %s of task %d: %w", name, id, err)
		}
	}
	return nil
}

func (s *MongoStore) AddAssignee(ctx context.Context, assignee TaskAssignee) (TaskAssignee, error) {
	if err := s.requireTask(ctx, assignee.TaskID); err != nil {
		return TaskAssignee{}, err
	}
	id, err := s.nextID(ctx, collAssignees)
	if err != nil {
		return TaskAssignee{}, err
	}
	assignee.ID = id
	assignee.AssignedAt = s.now()
	if _, err := s.db.Collection(collAssignees).InsertOne(ctx, assignee); err != nil {
		return TaskAssignee{}, mapMongoError(err, fmt.Sprintf("assignee %d on task %d", assignee.UserID, assignee.TaskID))
	}
	return assignee, nil
}

func (s *MongoStore) RemoveAssignee(ctx context.Context, taskID, userID int64) error {
	result, err := s.db.Collection(collAssignees).DeleteOne(ctx, bson.D{
		{Key: "taskId", Value: taskID},
		{Key: "userId", Value: userID},
	})
	if err != nil {
		return fmt.Errorf("remove assignee: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("assignee %d on task %d: %w", userID, taskID, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ListAssignees(ctx context.Context, taskID int64) ([]TaskAssignee, error) {
	items, err := findAll[TaskAssignee](ctx, s.db.Collection(collAssignees), bson.D{{Key: "taskId", Value: taskID}}, byID())
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	return items, nil
}

func (s *MongoStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	if err := s.requireTask(ctx, comment.TaskID); err != nil {
		return Comment{}, err
	}
	id, err := s.nextID(ctx, collComments)
	if err != nil {
		return Comment{}, err
	}
	comment.ID = id
	comment.CreatedAt = s.now()
	if _, err := s.db.Collection(collComments).InsertOne(ctx, comment); err != nil {
		return Comment{}, mapMongoError(err, "insert comment")
	}
	return comment, nil
}

func (s *MongoStore) ListComments(ctx context.Context, taskID int64) ([]Comment, error) {
	items, err := findAll[Comment](ctx, s.db.Collection(collComments), bson.D{{Key: "taskId", Value: taskID}}, byID())
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return items, nil
}

func (s *MongoStore) CreateTimeEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	if err := s.requireTask(ctx, entry.TaskID); err != nil {
		return TimeEntry{}, err
	}
	id, err := s.nextID(ctx, collTimeEntries)
	if err != nil {
		return TimeEntry{}, err
	}
	now := s.now()
	entry.ID = id
	entry.CreatedAt = now
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if _, err := s.db.Collection(collTimeEntries).InsertOne(ctx, entry); err != nil {
		return TimeEntry{}, mapMongoError(err, "insert time entry")
	}
	return entry, nil
}

func (s *MongoStore) ListTimeEntries(ctx context.Context, taskID int64) ([]TimeEntry, error) {
	items, err := findAll[TimeEntry](ctx, s.db.Collection(collTimeEntries), bson.D{{Key: "taskId", Value: taskID}}, byID())
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	return items, nil
}

func (s *MongoStore) CreateAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	if err := s.requireTask(ctx, attachment.TaskID); err != nil {
		return Attachment{}, err
	}
	id, err := s.nextID(ctx, collAttachments)
	if err != nil {
		return Attachment{}, err
	}
	attachment.ID = id
	attachment.CreatedAt = s.now()
	if _, err := s.db.Collection(collAttachments).InsertOne(ctx, attachment); err != nil {
		return Attachment{}, mapMongoError(err, "insert attachment")
	}
	return attachment, nil
}

func (s *MongoStore) GetAttachment(ctx context.Context, id int64) (Attachment, error) {
	var item Attachment
	err := s.db.Collection(collAttachments).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&item)
	if err != nil {
		return Attachment{}, mapMongoError(err, fmt.Sprintf("attachment %d", id))
	}
	return item, nil
}

func (s *MongoStore) ListAttachments(ctx context.Context, taskID int64) ([]Attachment, error) {
	items, err := findAll[Attachment](ctx, s.db.Collection(collAttachments), bson.D{{Key: "taskId", Value: taskID}}, byID())
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}

func (s *MongoStore) DeleteAttachment(ctx context.Context, id int64) error {
	result, err := s.db.Collection(collAttachments).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("attachment %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CreateNotification(ctx context.Context, notification Notification) (Notification, error) {
	id, err := s.nextID(ctx, collNotifications)
	if err != nil {
		return Notification{}, err
	}
	notification.ID = id
	notification.IsRead = false
	notification.CreatedAt = s.now()
	if _, err := s.db.Collection(collNotifications).InsertOne(ctx, notification); err != nil {
		return Notification{}, mapMongoError(err, "insert notification")
	}
	return notification, nil
}

func (s *MongoStore) GetNotification(ctx context.Context, id int64) (Notification, error) {
	var item Notification
	err := s.db.Collection(collNotifications).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&item)
	if err != nil {
		return Notification{}, mapMongoError(err, fmt.Sprintf("notification %d", id))
	}
	return item, nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]Notification, error) {
	query := bson.D{{Key: "userId", Value: userID}}
	if unreadOnly {
		query = append(query, bson.E{Key: "isRead", Value: false})
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	items, err := findAll[Notification](ctx, s.db.Collection(collNotifications), query, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *MongoStore) UnreadNotificationCount(ctx context.Context, userID int64) (int, error) {
	count, err := s.db.Collection(collNotifications).CountDocuments(ctx, bson.D{
		{Key: "userId", Value: userID},
		{Key: "isRead", Value: false},
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int(count), nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id int64) (Notification, error) {
	var item Notification
	err := s.db.Collection(collNotifications).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isRead", Value: true}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if err != nil {
		return Notification{}, mapMongoError(err, fmt.Sprintf("notification %d", id))
	}
	return item, nil
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	result, err := s.db.Collection(collNotifications).UpdateMany(ctx,
		bson.D{{Key: "userId", Value: userID}, {Key: "isRead", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isRead", Value: true}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
