package repository

import (
	"context"

	"smartfarm-backend/internal/domain"
)

// MessagesRepository 站内信 Repository 接口
type MessagesRepository interface {
	CreateMessage(ctx context.Context, msg *domain.Message) (string, error)
	// ListConversation 双向取两人会话（时间升序）
	ListConversation(ctx context.Context, userA, userB string) ([]*domain.Message, error)
	// MarkConversationRead 把 sender→recipient 的未读全部置已读
	MarkConversationRead(ctx context.Context, senderID, recipientID string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// ListLatestPeers 与我有往来的对端及各自最后一条消息
	ListLatestPeers(ctx context.Context, userID string) ([]*domain.Message, error)
}

// ChatRepository 全员聊天 Repository 接口
type ChatRepository interface {
	CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) (string, error)
	ListRecentChat(ctx context.Context, limit int) ([]*domain.ChatMessage, error)
}
