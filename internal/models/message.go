package models

import "time"

// Message is a chat line inside a swap request thread.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SwapRequestID uint      `gorm:"not null;index:idx_messages_swap_created,priority:1" json:"swap_request_id"`
	SenderID      uint      `gorm:"not null;index" json:"sender_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	IsRead        bool      `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time `gorm:"index:idx_messages_swap_created,priority:2" json:"created_at"`

	SwapRequest *SwapRequest `gorm:"foreignKey:SwapRequestID;constraint:OnDelete:CASCADE" json:"-"`
	Sender      User         `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// MessageWithSender is a message joined with its author.
type MessageWithSender struct {
	ID            uint       `json:"id"`
	SwapRequestID uint       `json:"swap_request_id"`
	Content       string     `json:"content"`
	IsRead        bool       `json:"is_read"`
	Sender        PublicUser `json:"sender"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WithSender converts a preloaded Message into its API shape.
func (m *Message) WithSender() MessageWithSender {
	return MessageWithSender{
		ID:            m.ID,
		SwapRequestID: m.SwapRequestID,
		Content:       m.Content,
		IsRead:        m.IsRead,
		Sender:        m.Sender.Public(),
		CreatedAt:     m.CreatedAt,
	}
}
