package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/storage"
	"go.uber.org/zap"
)

// StoredMessage is what the persistence collaborator returns for a
// committed message row.
type StoredMessage struct {
	ID        string
	CreatedAt time.Time
}

// MessageStore is the persistence collaborator consumed by ingestion
type MessageStore interface {
	SaveMessage(ctx context.Context, room Room, senderID, content string) (*StoredMessage, error)
	SaveAttachment(ctx context.Context, room Room, messageID, locator string) error
}

// StorageError reports a persistence or blob-write failure. Partial is
// set when the message row was already committed, meaning the stored
// message is missing some attachments; callers must report it to the
// sender rather than silently succeed, but the row is not rolled back.
type StorageError struct {
	MessageID string
	Partial   bool
	Err       error
}

func (e *StorageError) Error() string {
	if e.Partial {
		return fmt.Sprintf("storage error after partial commit (message %s): %v", e.MessageID, e.Err)
	}
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// allowedMediaTypes is the attachment allow-list: image formats only
var allowedMediaTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Ingestor validates inbound payloads and persists them through the
// message store and blob store collaborators.
type Ingestor struct {
	store MessageStore
	blobs storage.BlobStore
}

// NewIngestor creates an ingestor over the given collaborators
func NewIngestor(store MessageStore, blobs storage.BlobStore) *Ingestor {
	return &Ingestor{store: store, blobs: blobs}
}

// Ingest validates one inbound payload, persists it, and returns the
// canonical persisted form. Failures are *errors.APIError with a
// VALIDATION_ERROR code, or *StorageError.
func (in *Ingestor) Ingest(ctx context.Context, room Room, senderID string, frame *InboundFrame) (*PersistedMessage, error) {
	content := strings.TrimSpace(frame.Content)

	if err := in.validate(room, content, frame.Attachments); err != nil {
		return nil, err
	}

	stored, err := in.store.SaveMessage(ctx, room, senderID, content)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	locators := make([]string, 0, len(frame.Attachments))
	for _, att := range frame.Attachments {
		locator, err := in.blobs.Write(ctx, att.Data, att.Name)
		if err != nil {
			in.logPartialCommit(room, stored.ID, att.Name, err)
			return nil, &StorageError{MessageID: stored.ID, Partial: true, Err: err}
		}
		if err := in.store.SaveAttachment(ctx, room, stored.ID, locator); err != nil {
			in.logPartialCommit(room, stored.ID, att.Name, err)
			return nil, &StorageError{MessageID: stored.ID, Partial: true, Err: err}
		}
		locators = append(locators, locator)
	}

	return &PersistedMessage{
		ID:                 stored.ID,
		Room:               room,
		SenderID:           senderID,
		Content:            content,
		CreatedAt:          stored.CreatedAt,
		AttachmentLocators: locators,
	}, nil
}

func (in *Ingestor) validate(room Room, content string, attachments []Attachment) error {
	if content == "" && len(attachments) == 0 {
		return apierrors.ValidationError("content", "message must contain text or at least one attachment")
	}

	if len(attachments) > 0 && !room.AllowsAttachments() {
		return apierrors.ValidationError("attachments", "attachments are not supported in comment threads")
	}

	for _, att := range attachments {
		if len(att.Data) == 0 {
			return apierrors.ValidationError("attachments", fmt.Sprintf("attachment %q is empty", att.Name))
		}
		mediaType := att.MediaType
		if mediaType == "" {
			mediaType = storage.ContentTypeForName(att.Name)
		}
		if !allowedMediaTypes[mediaType] {
			return apierrors.ValidationError("attachments",
				fmt.Sprintf("media type %q is not allowed for attachment %q", mediaType, att.Name))
		}
	}

	return nil
}

// logPartialCommit flags a committed message row that is missing
// attachment data, for operator follow-up.
func (in *Ingestor) logPartialCommit(room Room, messageID, attachment string, err error) {
	logger.Warn("message committed with missing attachments",
		logger.WithRoomID(room.String()),
		zap.String("message_id", messageID),
		zap.String("attachment", attachment),
		zap.Error(err),
	)
}
