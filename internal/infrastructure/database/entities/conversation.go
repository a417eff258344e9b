package entities

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// Conversation is the archived form of a chat session.
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`

	PublicID     string         `gorm:"type:varchar(64);uniqueIndex;not null"`
	Mode         string         `gorm:"type:varchar(20);not null;default:'agent'"`
	StreamMode   string         `gorm:"type:varchar(20);not null;default:'stream'"`
	ThreadID     *string        `gorm:"type:varchar(128)"`
	MessageCount int            `gorm:"not null;default:0"`
	Messages     datatypes.JSON `gorm:"type:jsonb"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// NewSchemaConversation converts a domain record into its row.
func NewSchemaConversation(rec *chat.Record) (*Conversation, error) {
	messages := rec.Messages
	if messages == nil {
		messages = transcript.Transcript{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}

	var threadID *string
	if rec.ThreadID != "" {
		threadID = &rec.ThreadID
	}

	return &Conversation{
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
		PublicID:     rec.ID,
		Mode:         string(rec.Mode),
		StreamMode:   string(rec.StreamMode),
		ThreadID:     threadID,
		MessageCount: len(messages),
		Messages:     datatypes.JSON(raw),
	}, nil
}

// EtoD converts the row back into a domain record.
func (c *Conversation) EtoD() (*chat.Record, error) {
	var messages transcript.Transcript
	if len(c.Messages) > 0 {
		if err := json.Unmarshal(c.Messages, &messages); err != nil {
			return nil, fmt.Errorf("decode messages of %s: %w", c.PublicID, err)
		}
	}

	rec := &chat.Record{
		ID:         c.PublicID,
		Mode:       transcript.Mode(c.Mode),
		StreamMode: transcript.StreamMode(c.StreamMode),
		Messages:   messages,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.ThreadID != nil {
		rec.ThreadID = *c.ThreadID
	}
	return rec, nil
}
