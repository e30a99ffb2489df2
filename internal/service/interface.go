package service

import (
	"context"

	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/internal/hub"
)

// RelayService routes inbound chat events: persist first, then fan out to
// the rooms that should see the message.
type RelayService interface {
	HandleSendMessage(ctx context.Context, client *hub.Client, content string) error
	HandleAdminReply(ctx context.Context, client *hub.Client, userID, content string) error
	HandleGetHistory(ctx context.Context, client *hub.Client) error
	HandleGetAllMessages(ctx context.Context, client *hub.Client) error

	// REST-facing reads and writes share the same store and cache paths.
	HistoryForUser(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	AllMessagesGrouped(ctx context.Context) (map[string][]domain.ChatMessage, error)
	AppendMessage(ctx context.Context, userID, content string, origin domain.Origin) (*domain.ChatMessage, error)
}
