package realtime

import (
	"context"
	"fmt"

	"github.com/openforum/backend/internal/repository"
)

// gormStore persists realtime payloads through the relational layer.
// Chat rooms write messages, post rooms write comments.
type gormStore struct {
	repo *repository.Repository
}

// NewGormStore adapts the repository to the realtime MessageStore
func NewGormStore(repo *repository.Repository) MessageStore {
	return &gormStore{repo: repo}
}

func (g *gormStore) SaveMessage(ctx context.Context, room Room, senderID, content string) (*StoredMessage, error) {
	switch room.Kind {
	case RoomChat:
		msg, err := g.repo.SaveChatMessage(ctx, room.Ref, senderID, content)
		if err != nil {
			return nil, err
		}
		return &StoredMessage{ID: msg.ID, CreatedAt: msg.CreatedAt}, nil
	case RoomPost:
		comment, err := g.repo.SaveComment(ctx, room.Ref, senderID, content, nil)
		if err != nil {
			return nil, err
		}
		return &StoredMessage{ID: comment.ID, CreatedAt: comment.CreatedAt}, nil
	default:
		return nil, fmt.Errorf("unsupported room kind %q", room.Kind)
	}
}

func (g *gormStore) SaveAttachment(ctx context.Context, room Room, messageID, locator string) error {
	if room.Kind != RoomChat {
		return fmt.Errorf("room kind %q does not support attachments", room.Kind)
	}
	return g.repo.SaveChatAttachment(ctx, messageID, locator)
}
