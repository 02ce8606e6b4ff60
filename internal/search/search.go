// Package search finds tasks by free text. Meilisearch serves queries when it
// is reachable; otherwise the store's substring filter answers them.
package search

import "taskboard/api/internal/store"

type Result struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type Query struct {
	Text     string
	Status   string
	Priority string
	Limit    int
	Offset   int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// TaskRecord is the document pushed to the index for each task.
type TaskRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	CreatedBy   int64  `json:"createdBy"`
}

func RecordFromTask(task store.Task) TaskRecord {
	return TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		CreatedBy:   task.CreatedBy,
	}
}
