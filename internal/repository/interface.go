package repository

import (
	"context"

	"github.com/nayon117/custome-chat-server/internal/domain"
)

// MessageRepository is the durable append-only store of chat messages.
// Both list operations return messages ordered ascending by timestamp,
// ties broken by the store-assigned sequence.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) error
	ListByUser(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	ListAll(ctx context.Context) ([]domain.ChatMessage, error)
	Close() error
}
