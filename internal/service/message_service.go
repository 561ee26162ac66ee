package service

import (
	"context"
	"errors"
	"time"

	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/policy"
	"smartfarm-backend/internal/repository"

	"go.uber.org/zap"
)

// MessageView 对外消息视图
type MessageView struct {
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at"`
}

// newMessageView 构造消息视图
func newMessageView(m *domain.Message) *MessageView {
	return &MessageView{
		MessageID:   m.MessageID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		MessageType: string(m.MessageType),
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
}

// newMessageViews 批量构造消息视图
func newMessageViews(messages []*domain.Message) []*MessageView {
	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, newMessageView(m))
	}
	return views
}

// MessageService 定向站内信
type MessageService struct {
	messages repository.MessagesRepository
	users    repository.UsersRepository
	resolver *ActorResolver
	logger   *zap.Logger
}

// NewMessageService 创建消息服务
func NewMessageService(
	messages repository.MessagesRepository,
	users repository.UsersRepository,
	resolver *ActorResolver,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		resolver: resolver,
		logger:   logger,
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// SendMessage 按角色关系边发送定向消息
func (s *MessageService) SendMessage(ctx context.Context, actorID string, req *SendMessageRequest) (*MessageView, error) {
	if req.Content == "" {
		return nil, domain.Validation("content is required")
	}
	if req.RecipientID == "" {
		return nil, domain.Validation("recipient_id is required")
	}

	_, sender, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	recipientUser, err := s.users.GetUser(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.resolver.ActorFor(ctx, recipientUser)
	if err != nil {
		return nil, err
	}
	if !policy.CanMessage(sender, recipient) {
		return nil, domain.ErrPermissionDenied
	}

	msgType := domain.MessageText
	if req.MessageType != "" {
		msgType = domain.MessageType(req.MessageType)
		if !msgType.Valid() {
			return nil, domain.Validation("unknown message type")
		}
	}

	msg := &domain.Message{
		SenderID:    actorID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
		MessageType: msgType,
	}
	messageID, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.MessageID = messageID
	msg.CreatedAt = time.Now()

	s.logger.Info("Message sent",
		zap.String("message_id", messageID),
		zap.String("sender_id", actorID),
		zap.String("recipient_id", req.RecipientID),
	)
	return newMessageView(msg), nil
}

// ConversationResponse 会话历史响应
type ConversationResponse struct {
	Messages []*MessageView `json:"messages"`
}

// Conversation 读取与某用户的会话历史，并把对方发来的未读置已读
func (s *MessageService) Conversation(ctx context.Context, actorID, peerID string) (*ConversationResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	peerUser, err := s.users.GetUser(ctx, peerID)
	if err != nil {
		return nil, err
	}
	peer, err := s.resolver.ActorFor(ctx, peerUser)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewConversation(actor, peer) {
		return nil, domain.ErrPermissionDenied
	}

	messages, err := s.messages.ListConversation(ctx, actorID, peerID)
	if err != nil {
		return nil, err
	}
	if err := s.messages.MarkConversationRead(ctx, peerID, actorID); err != nil {
		s.logger.Warn("Failed to mark conversation read", zap.Error(err))
	}
	return &ConversationResponse{Messages: newMessageViews(messages)}, nil
}

// ContactView 可发信联系人
type ContactView struct {
	User        *UserView `json:"user"`
	LastMessage string    `json:"last_message,omitempty"`
	LastAt      string    `json:"last_at,omitempty"`
	Unread      bool      `json:"unread,omitempty"`
}

// ContactsResponse 联系人列表响应
type ContactsResponse struct {
	Contacts []*ContactView `json:"contacts"`
}

// Contacts 按角色关系边枚举当前用户可发信的对象
func (s *MessageService) Contacts(ctx context.Context, actorID string) (*ContactsResponse, error) {
	_, actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}

	// 候选集按角色圈定后再逐一过 CanMessage 过滤
	var candidates []*domain.User
	switch actor.Role {
	case domain.RoleSystemAdmin:
		candidates, err = s.users.ListUsers(ctx, repository.UserFilters{
			Role: domain.RoleFarmOwner, ActiveOnly: true,
		})
	case domain.RoleFarmOwner:
		admins, aerr := s.users.ListUsers(ctx, repository.UserFilters{
			Role: domain.RoleSystemAdmin, ActiveOnly: true,
		})
		if aerr != nil {
			return nil, aerr
		}
		var sups []*domain.User
		if len(actor.OwnedFarmIDs) > 0 {
			sups, err = s.users.ListUsers(ctx, repository.UserFilters{
				Role: domain.RoleSupervisor, FarmIDs: actor.OwnedFarmIDs, ActiveOnly: true,
			})
			if err != nil {
				return nil, err
			}
		}
		candidates = append(admins, sups...)
	case domain.RoleSupervisor:
		// 通信边只沿归属农场展开，负责中的其他农场不在候选集里
		if actor.AssignedFarmID != "" {
			workers, werr := s.users.ListUsers(ctx, repository.UserFilters{
				Role: domain.RoleWorker, FarmIDs: []string{actor.AssignedFarmID}, ActiveOnly: true,
			})
			if werr != nil {
				return nil, werr
			}
			candidates = workers
			farm, ferr := s.resolver.farms.GetFarm(ctx, actor.AssignedFarmID)
			if ferr == nil && farm.OwnerID.Valid {
				owner, oerr := s.users.GetUser(ctx, farm.OwnerID.String)
				if oerr == nil {
					candidates = append(candidates, owner)
				}
			}
		}
	case domain.RoleWorker:
		if actor.AssignedFarmID != "" {
			supIDs, serr := s.resolver.assignments.ListSupervisorIDsByFarm(ctx, actor.AssignedFarmID)
			if serr != nil {
				return nil, serr
			}
			for _, id := range supIDs {
				sup, gerr := s.users.GetUser(ctx, id)
				if gerr == nil {
					candidates = append(candidates, sup)
				}
			}
		}
	}
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	contacts := make([]*ContactView, 0, len(candidates))
	for _, u := range candidates {
		if u.UserID == actorID || seen[u.UserID] {
			continue
		}
		candidateActor, aerr := s.resolver.ActorFor(ctx, u)
		if aerr != nil {
			return nil, aerr
		}
		if !policy.CanMessage(actor, candidateActor) {
			continue
		}
		seen[u.UserID] = true
		contacts = append(contacts, &ContactView{User: newUserView(u)})
	}
	return &ContactsResponse{Contacts: contacts}, nil
}

// ConversationsResponse 最近会话列表响应
type ConversationsResponse struct {
	Conversations []*ContactView `json:"conversations"`
}

// Conversations 最近会话（每个对端取最后一条消息）
func (s *MessageService) Conversations(ctx context.Context, actorID string) (*ConversationsResponse, error) {
	latest, err := s.messages.ListLatestPeers(ctx, actorID)
	if err != nil {
		return nil, err
	}

	conversations := make([]*ContactView, 0, len(latest))
	for _, m := range latest {
		peerID := m.SenderID
		if peerID == actorID {
			peerID = m.RecipientID
		}
		peer, err := s.users.GetUser(ctx, peerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		conversations = append(conversations, &ContactView{
			User:        newUserView(peer),
			LastMessage: m.Content,
			LastAt:      m.CreatedAt.Format(time.RFC3339),
			Unread:      m.RecipientID == actorID && !m.IsRead,
		})
	}
	return &ConversationsResponse{Conversations: conversations}, nil
}

// UnreadCountResponse 未读数响应
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// UnreadCount 当前用户未读消息数
func (s *MessageService) UnreadCount(ctx context.Context, actorID string) (*UnreadCountResponse, error) {
	n, err := s.messages.CountUnread(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return &UnreadCountResponse{Unread: n}, nil
}
