package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

type HTTPOptions struct {
	AllowedOrigins []string
	CookieName     string
	CookieMaxAge   time.Duration
	SecureCookie   bool
	MaxUploadBytes int64
	// WebSocketPath is served by WebSocket; it must differ from any dev
	// tooling path on the same port.
	WebSocketPath string
	WebSocket     http.Handler
	Metrics       http.Handler
	Logger        *slog.Logger
}

type HTTPServer struct {
	service *Service
	opts    HTTPOptions
	logger  *slog.Logger
}

func NewHTTPServer(service *Service, opts HTTPOptions) *HTTPServer {
	if opts.CookieName == "" {
		opts.CookieName = "taskboard.sid"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.WebSocketPath == "" {
		opts.WebSocketPath = "/ws"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{service: service, opts: opts, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, nil)
		return
	}

	if r.URL.Path == s.opts.WebSocketPath && s.opts.WebSocket != nil {
		s.opts.WebSocket.ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" && s.opts.Metrics != nil {
		s.opts.Metrics.ServeHTTP(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ready, checks := s.service.Readiness(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ready {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ready,
			"status": status,
			"checks": checks,
		})
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/register" {
		var body RegisterInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, cookie, err := s.service.Register(r.Context(), body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		s.setSessionCookie(w, cookie)
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		var body LoginInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, cookie, err := s.service.Login(r.Context(), body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		s.setSessionCookie(w, cookie)
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		if err := s.service.Logout(r.Context(), s.sessionCookie(r)); err != nil {
			s.logger.Warn("auth.logout", "error", err)
		}
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	actor, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		user, err := s.service.GetUser(r.Context(), actor.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:     strings.TrimSpace(r.URL.Query().Get("q")),
			Status:   strings.TrimSpace(r.URL.Query().Get("status")),
			Priority: strings.TrimSpace(r.URL.Query().Get("priority")),
			Limit:    20,
		}
		var err error
		if q.Limit, err = queryInt(r, "limit", q.Limit); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		if q.Offset, err = queryInt(r, "offset", 0); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		payload, err := s.service.Search(r.Context(), actor, q)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "users":
		s.handleUsers(w, r, parts[2:])
	case "tasks":
		s.handleTasks(w, r, actor, parts[2:])
	case "attachments":
		s.handleAttachment(w, r, actor, parts[2:])
	case "notifications":
		s.handleNotifications(w, r, actor, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if len(rest) == 0 {
		users, err := s.service.ListUsers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list users", nil)
			return
		}
		if users == nil {
			users = []store.User{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
		return
	}
	if len(rest) == 1 {
		id, ok := pathID(w, rest[0])
		if !ok {
			return
		}
		user, err := s.service.GetUser(r.Context(), id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			filter, err := taskFilterFromQuery(r)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			tasks, err := s.service.ListTasks(r.Context(), actor, filter)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
		case http.MethodPost:
			var body CreateTaskInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			task, err := s.service.CreateTask(r.Context(), actor, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"task": task})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	taskID, ok := pathID(w, rest[0])
	if !ok {
		return
	}

	if len(rest) == 1 {
		switch r.Method {
		case http.MethodGet:
			task, err := s.service.GetTask(r.Context(), actor, taskID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"task": task})
		case http.MethodPut, http.MethodPatch:
			var body UpdateTaskInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			task, err := s.service.UpdateTask(r.Context(), actor, taskID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"task": task})
		case http.MethodDelete:
			if err := s.service.DeleteTask(r.Context(), actor, taskID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[1] {
	case "assignees":
		s.handleAssignees(w, r, actor, taskID, rest[2:])
	case "comments":
		if len(rest) != 2 {
			break
		}
		if r.Method == http.MethodGet {
			comments, err := s.service.ListComments(r.Context(), actor, taskID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
			return
		}
		if r.Method == http.MethodPost {
			var body CommentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			comment, err := s.service.AddComment(r.Context(), actor, taskID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	case "time-entries":
		if len(rest) != 2 {
			break
		}
		if r.Method == http.MethodGet {
			entries, err := s.service.ListTimeEntries(r.Context(), actor, taskID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"timeEntries": entries})
			return
		}
		if r.Method == http.MethodPost {
			var body TimeEntryInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			entry, err := s.service.LogTime(r.Context(), actor, taskID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"timeEntry": entry})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	case "attachments":
		if len(rest) != 2 {
			break
		}
		if r.Method == http.MethodGet {
			items, err := s.service.ListAttachments(r.Context(), actor, taskID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"attachments": items})
			return
		}
		if r.Method == http.MethodPost {
			s.handleUpload(w, r, actor, taskID)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleAssignees(w http.ResponseWriter, r *http.Request, actor Actor, taskID int64, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			assignees, err := s.service.ListAssignees(r.Context(), actor, taskID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"assignees": assignees})
		case http.MethodPost:
			var body AssignInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			assignment, err := s.service.AssignUser(r.Context(), actor, taskID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"assignee": assignment})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(rest) == 1 && r.Method == http.MethodDelete {
		userID, ok := pathID(w, rest[0])
		if !ok {
			return
		}
		if err := s.service.UnassignUser(r.Context(), actor, taskID, userID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, actor Actor, taskID int64) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", fmt.Sprintf("File exceeds %d bytes", s.opts.MaxUploadBytes), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form with a file field is required", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	attachment, err := s.service.UploadAttachment(r.Context(), actor, taskID, UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attachment": attachment})
}

func (s *HTTPServer) handleAttachment(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, ok := pathID(w, rest[0])
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		attachment, body, err := s.service.OpenAttachment(r.Context(), actor, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		defer body.Close()
		w.Header().Set("Content-Type", attachment.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.FileName}))
		if attachment.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, body); err != nil {
			s.logger.Warn("attachment.download", "attachment_id", id, "error", err)
		}
	case http.MethodDelete:
		if err := s.service.DeleteAttachment(r.Context(), actor, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodGet {
		unreadOnly := r.URL.Query().Get("unread") == "true"
		items, err := s.service.ListNotifications(r.Context(), actor, unreadOnly)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
		return
	}

	if len(rest) == 1 && rest[0] == "unread-count" && r.Method == http.MethodGet {
		count, err := s.service.UnreadNotificationCount(r.Context(), actor)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": count})
		return
	}

	if len(rest) == 1 && rest[0] == "read-all" && (r.Method == http.MethodPut || r.Method == http.MethodPost) {
		updated, err := s.service.MarkAllNotificationsRead(r.Context(), actor)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
		return
	}

	if len(rest) == 2 && rest[1] == "read" && (r.Method == http.MethodPut || r.Method == http.MethodPost) {
		id, ok := pathID(w, rest[0])
		if !ok {
			return
		}
		n, err := s.service.MarkNotificationRead(r.Context(), actor, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notification": n})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	raw := s.sessionCookie(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Actor{}, false
	}
	actor, err := s.service.Authenticate(r.Context(), raw)
	if err != nil {
		status, code, message, details := mapError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("session.lookup", "request_id", requestIDFrom(r.Context()), "error", err)
			message = "Session lookup failed"
		}
		writeError(w, status, code, message, details)
		return Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) sessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.opts.CookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.setCORSHeaders(writer.Header(), r.Header.Get("Origin"))
		writer.Header().Set("X-Request-ID", requestID)

		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Error("http.panic", "request_id", requestID, "path", r.URL.Path, "panic", recovered)
				if !writer.wroteHeader {
					writeError(writer, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
				}
			}

			level := slog.LevelInfo
			if writer.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.Log(r.Context(), level, "http.request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", writer.status,
				"duration_ms", time.Since(started).Milliseconds(),
			)
		}()

		next.ServeHTTP(writer, r)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Hijack lets the socket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *HTTPServer) setCORSHeaders(header http.Header, origin string) {
	if origin != "" && slices.Contains(s.opts.AllowedOrigins, origin) {
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Add("Vary", "Origin")
	}
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	if payload == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func pathID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func taskFilterFromQuery(r *http.Request) (store.TaskFilter, error) {
	query := r.URL.Query()
	filter := store.TaskFilter{
		Status:   strings.TrimSpace(query.Get("status")),
		Priority: strings.TrimSpace(query.Get("priority")),
		Query:    strings.TrimSpace(query.Get("q")),
	}
	for key, target := range map[string]*int64{"assignee": &filter.AssigneeID, "createdBy": &filter.CreatedBy} {
		if raw := strings.TrimSpace(query.Get(key)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return store.TaskFilter{}, fmt.Errorf("%s must be an integer", key)
			}
			*target = id
		}
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		return store.TaskFilter{}, fmt.Errorf("limit must be an integer")
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return store.TaskFilter{}, fmt.Errorf("offset must be an integer")
	}
	return filter, nil
}
