package service

import (
	"context"
	"errors"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// defaultChatHistory 默认拉取的聊天条数
const defaultChatHistory = 100

// ChatMessageView 全员聊天消息视图
type ChatMessageView struct {
	ChatMessageID string `json:"chat_message_id"`
	SenderID      string `json:"sender_id"`
	SenderName    string `json:"sender_name"`
	SenderRole    string `json:"sender_role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
}

// ChatService 全员聊天室（所有角色可见、只追加）
type ChatService struct {
	chat   repository.ChatRepository
	users  repository.UsersRepository
	logger *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(chat repository.ChatRepository, users repository.UsersRepository, logger *zap.Logger) *ChatService {
	return &ChatService{
		chat:   chat,
		users:  users,
		logger: logger,
	}
}

// PostChatRequest 发言请求
type PostChatRequest struct {
	Content string `json:"content"`
}

// PostChat 发一条全员消息
func (s *ChatService) PostChat(ctx context.Context, actorID string, req *PostChatRequest) (*ChatMessageView, error) {
	if req.Content == "" {
		return nil, domain.Validation("content is required")
	}
	sender, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		SenderID: actorID,
		Content:  req.Content,
	}
	chatMessageID, err := s.chat.CreateChatMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	return &ChatMessageView{
		ChatMessageID: chatMessageID,
		SenderID:      actorID,
		SenderName:    sender.FullName(),
		SenderRole:    string(sender.Role),
		Content:       req.Content,
		CreatedAt:     time.Now().Format(time.RFC3339),
	}, nil
}

// ChatHistoryResponse 聊天历史响应
type ChatHistoryResponse struct {
	Messages []*ChatMessageView `json:"messages"`
}

// ChatHistory 最近的聊天历史（时间升序）
func (s *ChatService) ChatHistory(ctx context.Context, limit int) (*ChatHistoryResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultChatHistory
	}
	messages, err := s.chat.ListRecentChat(ctx, limit)
	if err != nil {
		return nil, err
	}

	// 发送人信息小缓存，避免同一人重复查询
	senders := map[string]*domain.User{}
	views := make([]*ChatMessageView, 0, len(messages))
	for _, m := range messages {
		sender, ok := senders[m.SenderID]
		if !ok {
			u, err := s.users.GetUser(ctx, m.SenderID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, err
			}
			sender = u
			senders[m.SenderID] = u
		}
		views = append(views, &ChatMessageView{
			ChatMessageID: m.ChatMessageID,
			SenderID:      m.SenderID,
			SenderName:    sender.FullName(),
			SenderRole:    string(sender.Role),
			Content:       m.Content,
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		})
	}
	return &ChatHistoryResponse{Messages: views}, nil
}
