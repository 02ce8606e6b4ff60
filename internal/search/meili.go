package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const defaultIndex = "tasks"

// Meili indexes and queries tasks in Meilisearch. Health is re-checked in
// the background so a restarted server is picked up again.
type Meili struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
	logger  *slog.Logger
}

func NewMeili(url, apiKey, index string, logger *slog.Logger) *Meili {
	if index == "" {
		index = defaultIndex
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		done:   make(chan struct{}),
		logger: logger,
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("search.meili.unavailable", "url", url, "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.index,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("search.meili.create_index", "index", m.index, "error", err)
	}

	index := m.client.Index(m.index)
	filterable := []interface{}{"status", "priority", "createdBy"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search.meili.filterable", "index", m.index, "error", err)
	}
	searchable := []string{"title", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search.meili.searchable", "index", m.index, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search.meili.recovered", "index", m.index)
				m.configureIndex()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	request := &meili.SearchRequest{
		IndexUID:              m.index,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"title", "description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	var filters []string
	if q.Status != "" {
		filters = append(filters, fmt.Sprintf("status = %q", q.Status))
	}
	if q.Priority != "" {
		filters = append(filters, fmt.Sprintf("priority = %q", q.Priority))
	}
	if len(filters) > 0 {
		request.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{request},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0)
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:       decodeInt(hit, "id"),
		Status:   decodeString(hit, "status"),
		Priority: decodeString(hit, "priority"),
	}
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexTask(record TaskRecord) error {
	_, err := m.client.Index(m.index).AddDocuments([]TaskRecord{record}, nil)
	return err
}

func (m *Meili) IndexTasks(records []TaskRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(m.index).AddDocuments(records, nil)
	return err
}

func (m *Meili) DeleteTask(id int64) error {
	_, err := m.client.Index(m.index).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}
