package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartfarm-backend/internal/domain"
)

// PostgresMessagesRepository 站内信 Repository 实现
type PostgresMessagesRepository struct {
	db *sql.DB
}

// NewPostgresMessagesRepository 创建站内信 Repository
func NewPostgresMessagesRepository(db *sql.DB) *PostgresMessagesRepository {
	return &PostgresMessagesRepository{db: db}
}

var _ MessagesRepository = (*PostgresMessagesRepository)(nil)

const messageColumns = `
	message_id::text,
	sender_id::text,
	recipient_id::text,
	content,
	message_type,
	is_read,
	created_at
`

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.MessageID,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Content,
		&msg.MessageType,
		&msg.IsRead,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateMessage 写入站内信
func (r *PostgresMessagesRepository) CreateMessage(ctx context.Context, msg *domain.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("message is required")
	}
	if msg.SenderID == "" || msg.RecipientID == "" {
		return "", fmt.Errorf("sender_id and recipient_id are required")
	}
	if msg.Content == "" {
		return "", fmt.Errorf("content is required")
	}

	messageType := msg.MessageType
	if messageType == "" {
		messageType = domain.MessageText
	}

	var messageID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, message_type)
		VALUES ($1, $2, $3, $4)
		RETURNING message_id::text
	`, msg.SenderID, msg.RecipientID, msg.Content, messageType).Scan(&messageID)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return messageID, nil
}

// ListConversation 双向取两人会话（时间升序）
func (r *PostgresMessagesRepository) ListConversation(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at ASC`,
		userA, userB,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkConversationRead 置已读
func (r *PostgresMessagesRepository) MarkConversationRead(ctx context.Context, senderID, recipientID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
		 WHERE sender_id = $1 AND recipient_id = $2 AND is_read = FALSE`,
		senderID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

// CountUnread 未读总数
func (r *PostgresMessagesRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID,
	).Scan(&count)
	return count, err
}

// ListLatestPeers 每个会话对端的最后一条消息（时间降序）
func (r *PostgresMessagesRepository) ListLatestPeers(ctx context.Context, userID string) ([]*domain.Message, error) {
	// DISTINCT ON 取每个对端最新一条
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (peer) `+messageColumns+` FROM (
			SELECT *,
			       CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS peer
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
		) m
		ORDER BY peer, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// PostgresChatRepository 全员聊天 Repository 实现
type PostgresChatRepository struct {
	db *sql.DB
}

// NewPostgresChatRepository 创建聊天 Repository
func NewPostgresChatRepository(db *sql.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

var _ ChatRepository = (*PostgresChatRepository)(nil)

// CreateChatMessage 追加聊天消息
func (r *PostgresChatRepository) CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) (string, error) {
	if msg == nil || msg.SenderID == "" || msg.Content == "" {
		return "", fmt.Errorf("sender_id and content are required")
	}
	var chatMessageID string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (sender_id, content)
		VALUES ($1, $2)
		RETURNING chat_message_id::text
	`, msg.SenderID, msg.Content).Scan(&chatMessageID)
	if err != nil {
		return "", fmt.Errorf("failed to insert chat message: %w", err)
	}
	return chatMessageID, nil
}

// ListRecentChat 最近 N 条（时间升序返回，便于直接渲染）
func (r *PostgresChatRepository) ListRecentChat(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT chat_message_id::text, sender_id::text, content, created_at FROM (
			SELECT * FROM chat_messages ORDER BY created_at DESC LIMIT $1
		) recent
		ORDER BY created_at ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.ChatMessage{}
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.ChatMessageID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
