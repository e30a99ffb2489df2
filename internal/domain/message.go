package domain

import "time"

// Origin identifies who authored a chat message.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAdmin Origin = "admin"
)

// AdminIdentity is the reserved identity of the operator console.
// Zero or more admin consoles may be connected under it at any time.
const AdminIdentity = "admin"

// ChatMessage is the persisted chat record. Messages are immutable once
// written; ID is the store-assigned sequence and breaks timestamp ties.
type ChatMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"index;not null" json:"userId"`
	Content   string    `gorm:"type:text" json:"content"`
	Origin    Origin    `gorm:"type:varchar(16);not null" json:"origin"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
