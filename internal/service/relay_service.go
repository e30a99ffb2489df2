package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nayon117/custome-chat-server/internal/audit"
	"github.com/nayon117/custome-chat-server/internal/auth"
	"github.com/nayon117/custome-chat-server/internal/cache"
	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/internal/hub"
	"github.com/nayon117/custome-chat-server/internal/repository"
	"github.com/nayon117/custome-chat-server/internal/transcript"
	"github.com/nayon117/custome-chat-server/pkg/log"
)

type relayService struct {
	hub      *hub.Hub
	repo     repository.MessageRepository
	cache    cache.HistoryCache // nil disables caching
	cacheTTL time.Duration
	sf       singleflight.Group

	// Per-user transcript generation, bumped on every append. A cache
	// fill whose generation moved while it ran may predate a persisted
	// message and must not survive.
	genMu sync.Mutex
	gen   map[string]uint64
}

func NewRelayService(h *hub.Hub, repo repository.MessageRepository, historyCache cache.HistoryCache, cacheTTL time.Duration) RelayService {
	return &relayService{
		hub:      h,
		repo:     repo,
		cache:    historyCache,
		cacheTTL: cacheTTL,
		gen:      make(map[string]uint64),
	}
}

func (s *relayService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen[userID]
}

func (s *relayService) bumpGeneration(userID string) {
	s.genMu.Lock()
	s.gen[userID]++
	s.genMu.Unlock()
}

func (s *relayService) HandleSendMessage(ctx context.Context, c *hub.Client, content string) error {
	msg, err := s.AppendMessage(ctx, c.Identity, content, domain.OriginUser)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage("Failed to save message"))
		return err
	}

	audit.Log(ctx, audit.ActionSendMessage, c.Identity, "message relayed")

	s.hub.Deliver(c.Identity, &domain.ChatMessageOut{Type: domain.MsgTypeMessage, Message: *msg})
	s.hub.Deliver(domain.AdminIdentity, &domain.ChatMessageOut{Type: domain.MsgTypeNewMessage, Message: *msg})
	return nil
}

func (s *relayService) HandleAdminReply(ctx context.Context, c *hub.Client, userID, content string) error {
	if userID == "" {
		return c.SendMessage(domain.NewErrorMessage("Reply target user id is required"))
	}

	msg, err := s.AppendMessage(ctx, userID, content, domain.OriginAdmin)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage("Failed to save admin reply"))
		return err
	}

	audit.LogWithDetail(ctx, audit.ActionAdminReply, c.Identity, userID, "admin reply relayed")

	s.hub.Deliver(userID, &domain.ChatMessageOut{Type: domain.MsgTypeMessage, Message: *msg})
	// Other admin consoles stay in sync.
	s.hub.Deliver(domain.AdminIdentity, &domain.ChatMessageOut{Type: domain.MsgTypeNewMessage, Message: *msg})
	return nil
}

func (s *relayService) HandleGetHistory(ctx context.Context, c *hub.Client) error {
	messages, err := s.HistoryForUser(ctx, c.Identity)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage("Failed to fetch message history"))
		return err
	}

	audit.Log(ctx, audit.ActionGetHistory, c.Identity, "history sent")
	return c.SendMessage(&domain.HistoryOut{Type: domain.MsgTypeHistory, Messages: messages})
}

// HandleGetAllMessages answers only the admin identity. Anyone else is
// dropped without a response so the operation's existence is never
// confirmed to regular users.
func (s *relayService) HandleGetAllMessages(ctx context.Context, c *hub.Client) error {
	if !auth.IsAdmin(c.Identity) {
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldIdentity, c.Identity).Str(audit.FieldAction, audit.ActionDenied).Msg("getAllMessages from non-admin dropped")
		return nil
	}

	grouped, err := s.AllMessagesGrouped(ctx)
	if err != nil {
		c.SendMessage(domain.NewErrorMessage("Failed to fetch all messages"))
		return err
	}

	audit.Log(ctx, audit.ActionGetAllMessages, c.Identity, "all messages sent")
	return c.SendMessage(&domain.AllMessagesOut{Type: domain.MsgTypeAllMessages, Messages: grouped})
}

// AppendMessage persists one message and invalidates the user's cached
// transcript. Delivery never starts before this returns.
func (s *relayService) AppendMessage(ctx context.Context, userID, content string, origin domain.Origin) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		UserID:    userID,
		Content:   content,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	if s.cache != nil {
		s.bumpGeneration(userID)
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("cache invalidate error")
		}
	}

	return msg, nil
}

func (s *relayService) HistoryForUser(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	if s.cache == nil {
		return s.repo.ListByUser(ctx, userID)
	}

	// Singleflight collapses concurrent fills for the same user.
	result, err, _ := s.sf.Do(userID, func() (interface{}, error) {
		return s.fetchWithCache(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	messages, ok := result.([]domain.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return messages, nil
}

func (s *relayService) fetchWithCache(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	before := s.generation(userID)

	messages, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}

	if err := s.cache.Set(ctx, userID, messages, s.cacheTTL); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	} else if s.generation(userID) != before {
		// An append landed while we were filling; the entry we just
		// wrote may be missing it.
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("cache invalidate error")
		}
	}

	return messages, nil
}

func (s *relayService) AllMessagesGrouped(ctx context.Context) (map[string][]domain.ChatMessage, error) {
	messages, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list all messages: %w", err)
	}
	return transcript.GroupByUser(messages), nil
}
