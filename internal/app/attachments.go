package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type UploadInput struct {
	FileName    string `validate:"required,max=255"`
	ContentType string
	Size        int64 `validate:"gte=0"`
	Body        io.Reader
}

var errStorageUnavailable = domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage is not configured", nil)

func objectKey(taskID int64, fileName string) string {
	return fmt.Sprintf("tasks/%d/%s-%s", taskID, uuid.NewString(), sanitizeFileName(fileName))
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r < 0x20 || r == 0x7f:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

func (s *Service) ListAttachments(ctx context.Context, actor Actor, taskID int64) ([]store.Attachment, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, wrapNotFound(err, "Task")
	}
	items, err := s.store.ListAttachments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Attachment{}
	}
	return items, nil
}

// UploadAttachment writes the object first and the record second, removing
// the object again when the record cannot be stored.
func (s *Service) UploadAttachment(ctx context.Context, actor Actor, taskID int64, input UploadInput) (store.Attachment, error) {
	if err := s.requireRole(actor, rbac.ActionWrite); err != nil {
		return store.Attachment{}, err
	}
	if s.blobs == nil {
		return store.Attachment{}, errStorageUnavailable
	}
	if err := s.validate.Struct(input); err != nil {
		return store.Attachment{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Attachment{}, wrapNotFound(err, "Task")
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(task.ID, input.FileName)
	if err := s.blobs.Put(ctx, key, input.Body, input.Size, contentType); err != nil {
		return store.Attachment{}, err
	}
	attachment, err := s.store.CreateAttachment(ctx, store.Attachment{
		TaskID:      task.ID,
		UserID:      actor.UserID,
		FileName:    input.FileName,
		ContentType: contentType,
		Size:        input.Size,
		ObjectKey:   key,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("attachment.cleanup", "key", key, "error", delErr)
		}
		return store.Attachment{}, wrapNotFound(err, "Task")
	}
	return attachment, nil
}

// OpenAttachment returns the record and a reader the caller must close.
func (s *Service) OpenAttachment(ctx context.Context, actor Actor, id int64) (store.Attachment, io.ReadCloser, error) {
	if err := s.requireRole(actor, rbac.ActionRead); err != nil {
		return store.Attachment{}, nil, err
	}
	if s.blobs == nil {
		return store.Attachment{}, nil, errStorageUnavailable
	}
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return store.Attachment{}, nil, wrapNotFound(err, "Attachment")
	}
	body, err := s.blobs.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return store.Attachment{}, nil, err
	}
	return attachment, body, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, actor Actor, id int64) error {
	attachment, err := s.store.GetAttachment(ctx, id)
	if err != nil {
		return wrapNotFound(err, "Attachment")
	}
	if !rbac.CanDeleteOwned(actor.Role, actor.UserID, attachment.UserID) {
		return errForbidden
	}
	if err := s.store.DeleteAttachment(ctx, id); err != nil {
		return wrapNotFound(err, "Attachment")
	}
	s.removeObjects([]store.Attachment{attachment})
	return nil
}

// removeObjects deletes stored bytes for records that are already gone.
// Orphaned objects are logged, not surfaced.
func (s *Service) removeObjects(attachments []store.Attachment) {
	if s.blobs == nil {
		return
	}
	for _, a := range attachments {
		if a.ObjectKey == "" {
			continue
		}
		if err := s.blobs.Delete(context.Background(), a.ObjectKey); err != nil {
			s.logger.Warn("attachment.object.delete", "attachment_id", a.ID, "key", a.ObjectKey, "error", err)
		}
	}
}
