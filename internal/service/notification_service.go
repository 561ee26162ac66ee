package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"
	"smartfarm-backend/internal/repository"
	"smartfarm-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notificationHistoryLen 每个用户保留的通知条数
const notificationHistoryLen = 50

// Notification 站内通知（Redis 滚动窗口，不落库）
type Notification struct {
	NotificationID string `json:"notification_id"`

	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	RefID     string `json:"ref_id,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at"`
}

// NotificationService 轻量通知流 + 人工触发的 email/sms 广播
type NotificationService struct {
	kv     store.KV
	users  repository.UsersRepository
	mail   *MailClient
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewNotificationService 创建通知服务
func NewNotificationService(
	kv store.KV,
	users repository.UsersRepository,
	mail *MailClient,
	cfg config.MailConfig,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		kv:     kv,
		users:  users,
		mail:   mail,
		cfg:    cfg,
		logger: logger,
	}
}

// userKey 用户通知列表的键
func userKey(userID string) string {
	return fmt.Sprintf("smartfarm:notify:%s", userID)
}

// Push 给某用户追加一条通知（失败只记日志）
func (s *NotificationService) Push(ctx context.Context, userID string, n *Notification) {
	// 不落库，ID 由服务端生成（前端用于去重与已读定位）
	n.NotificationID = uuid.NewString()
	n.CreatedAt = time.Now().Format(time.RFC3339)
	raw, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("Failed to marshal notification", zap.Error(err))
		return
	}
	if err := s.kv.PushList(ctx, userKey(userID), string(raw), notificationHistoryLen); err != nil {
		s.logger.Warn("Failed to push notification",
			zap.Error(err),
			zap.String("user_id", userID),
		)
	}
}

// History 读取某用户最近的通知
func (s *NotificationService) History(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > notificationHistoryLen {
		limit = notificationHistoryLen
	}
	raws, err := s.kv.RangeList(ctx, userKey(userID), 0, int64(limit-1))
	if err != nil {
		if err == store.ErrMiss {
			return []*Notification{}, nil
		}
		return nil, err
	}

	notifications := make([]*Notification, 0, len(raws))
	for _, raw := range raws {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			// 坏记录跳过，不影响其余历史
			continue
		}
		notifications = append(notifications, &n)
	}
	return notifications, nil
}

// Clear 清空某用户的通知历史
func (s *NotificationService) Clear(ctx context.Context, userID string) error {
	return s.kv.Del(ctx, userKey(userID))
}

// SendNotificationRequest 人工通知请求
// Type: email / sms / both；sms 只记日志，不接真实网关
type SendNotificationRequest struct {
	Type         string   `json:"type"`
	RecipientIDs []string `json:"recipient_ids"`
	Subject      string   `json:"subject"`
	Message      string   `json:"message"`
	Priority     string   `json:"priority"`
	Category     string   `json:"category"`
}

// Send 给一组用户发送人工通知（ADMIN / SUPERVISOR）：
// 按 type 投递 email/sms，并写入每个收件人的站内通知流
func (s *NotificationService) Send(ctx context.Context, actorID string, req *SendNotificationRequest) error {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleSystemAdmin && actor.Role != domain.RoleSupervisor {
		return domain.ErrPermissionDenied
	}

	kind := strings.ToLower(strings.TrimSpace(req.Type))
	switch kind {
	case "email", "sms", "both":
	default:
		return domain.Validation("type must be one of email, sms, both")
	}
	if len(req.RecipientIDs) == 0 {
		return domain.Validation("at least one recipient is required")
	}
	if req.Subject == "" || req.Message == "" {
		return domain.Validation("subject and message are required")
	}

	for _, recipientID := range req.RecipientIDs {
		recipient, err := s.users.GetUser(ctx, recipientID)
		if err != nil {
			return fmt.Errorf("failed to resolve recipient %s: %w", recipientID, err)
		}

		if kind == "email" || kind == "both" {
			s.mail.SendPlainNotice(recipient.Email, recipient.FullName(), req.Subject, req.Message)
		}
		if kind == "sms" || kind == "both" {
			// 短信不接真实网关，只落审计日志
			s.logger.Info("SMS notification dispatched",
				zap.String("user_id", recipient.UserID),
				zap.String("message", req.Message),
			)
		}

		s.Push(ctx, recipient.UserID, &Notification{
			Type:     kind,
			Title:    req.Subject,
			Body:     req.Message,
			Priority: req.Priority,
			Category: req.Category,
		})
	}

	s.logger.Info("Notification sent",
		zap.String("sent_by", actorID),
		zap.String("type", kind),
		zap.Int("recipients", len(req.RecipientIDs)),
	)
	return nil
}

// NotificationConfig 通知通道配置（只读回显，sms 为占位通道）
type NotificationConfig struct {
	EmailEnabled bool   `json:"email_enabled"`
	SmsEnabled   bool   `json:"sms_enabled"`
	FromAddress  string `json:"from_address"`
	FromName     string `json:"from_name"`
	Gateway      string `json:"gateway"`
}

// Config 返回当前通知配置（仅 ADMIN）
func (s *NotificationService) Config(ctx context.Context, actorID string) (*NotificationConfig, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return &NotificationConfig{
		EmailEnabled: s.cfg.Enabled,
		SmsEnabled:   false,
		FromAddress:  s.cfg.FromAddress,
		FromName:     s.cfg.FromName,
		Gateway:      s.cfg.BaseURL,
	}, nil
}

// UpdateConfig 通知配置由部署环境变量管理，在线修改不落地，
// 只记录操作日志（仅 ADMIN）
func (s *NotificationService) UpdateConfig(ctx context.Context, actorID string, raw json.RawMessage) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	s.logger.Info("Notification config update requested",
		zap.String("requested_by", actorID),
		zap.Int("payload_bytes", len(raw)),
	)
	return nil
}

// requireAdmin 配置读写仅 SYSTEM_ADMIN
func (s *NotificationService) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleSystemAdmin {
		return domain.ErrPermissionDenied
	}
	return nil
}
