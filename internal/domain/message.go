package domain

import "time"

// MessageType 站内信类型
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageImage  MessageType = "IMAGE"
	MessageFile   MessageType = "FILE"
	MessageSystem MessageType = "SYSTEM"
)

// Valid 是否为已知消息类型
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// Message 定向站内信（对应 messages 表）
// 发送许可由 policy.CanMessage 决定，存储层不做权限判断
type Message struct {
	MessageID   string      `db:"message_id"`
	SenderID    string      `db:"sender_id"`    // NOT NULL FK users
	RecipientID string      `db:"recipient_id"` // NOT NULL FK users
	Content     string      `db:"content"`      // NOT NULL
	MessageType MessageType `db:"message_type"` // default TEXT
	IsRead      bool        `db:"is_read"`      // default false
	CreatedAt   time.Time   `db:"created_at"`
}

// ChatMessage 全员聊天消息（对应 chat_messages 表，只追加）
type ChatMessage struct {
	ChatMessageID string    `db:"chat_message_id"`
	SenderID      string    `db:"sender_id"` // NOT NULL FK users
	Content       string    `db:"content"`   // NOT NULL
	CreatedAt     time.Time `db:"created_at"`
}
