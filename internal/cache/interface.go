package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nayon117/custome-chat-server/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// HistoryCache is a read-through cache of per-user transcripts. Entries are
// invalidated whenever a new message for that user is persisted, so a hit
// is always the complete transcript.
type HistoryCache interface {
	Get(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	Set(ctx context.Context, userID string, messages []domain.ChatMessage, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}
