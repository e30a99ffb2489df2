package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nayon117/custome-chat-server/internal/domain"
)

var ErrEmptyUserID = errors.New("message user id must not be empty")

const listOrder = "timestamp ASC, id ASC"

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) (*GormMessageRepository, error) {
	if err := db.AutoMigrate(&domain.ChatMessage{}); err != nil {
		return nil, fmt.Errorf("failed to migrate chat messages: %w", err)
	}
	return &GormMessageRepository{db: db}, nil
}

// Append persists a message. The timestamp is assigned here if the caller
// left it zero, so every stored row carries a valid ordering key.
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.UserID == "" {
		return ErrEmptyUserID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (r *GormMessageRepository) ListByUser(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(listOrder).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for user %s: %w", userID, err)
	}
	return messages, nil
}

func (r *GormMessageRepository) ListAll(ctx context.Context) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Order(listOrder).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *GormMessageRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
