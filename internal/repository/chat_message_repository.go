package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mylo-ta-api/internal/models"
)

// ChatMessageRepository persists the conversational log.
type ChatMessageRepository struct {
	db *sqlx.DB
}

// NewChatMessageRepository constructs the repository.
func NewChatMessageRepository(db *sqlx.DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

// ListByThread returns the last limit messages of a thread in chronological order.
func (r *ChatMessageRepository) ListByThread(ctx context.Context, threadID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, thread_id, user_id, message, response, intent, created_at FROM (
            SELECT id, thread_id, user_id, message, response, intent, created_at
            FROM chat_messages
            WHERE thread_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent ORDER BY created_at ASC, id ASC`
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, threadID, limit); err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	return messages, nil
}

// Create appends a message to the log.
func (r *ChatMessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO chat_messages (id, thread_id, user_id, message, response, intent, created_at)
        VALUES (:id, :thread_id, :user_id, :message, :response, :intent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}
