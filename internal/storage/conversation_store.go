package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists conversation summaries for the list view.
type ConversationStore interface {
	List(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	Upsert(ctx context.Context, userID string, summary models.ConversationSummary) error
	Get(ctx context.Context, conversationID string) (models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationStore.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// List returns conversation summaries for the user, most recent first.
func (r *ConversationRepo) List(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.title, COALESCE(c.last_message_id, '') AS last_message_id, c.unread_count, c.updated_at
        FROM conversations c
        JOIN conversation_members m ON m.conversation_id = c.id
        WHERE m.user_id=$1
        ORDER BY c.updated_at DESC`
	var out []models.ConversationSummary
	err := r.db.SelectContext(ctx, &out, query, userID)
	return out, err
}

// Upsert stores a conversation summary and ensures membership for the user.
func (r *ConversationRepo) Upsert(ctx context.Context, userID string, summary models.ConversationSummary) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO conversations (id, title, last_message_id, unread_count, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            last_message_id = EXCLUDED.last_message_id,
            unread_count = EXCLUDED.unread_count,
            updated_at = EXCLUDED.updated_at`,
		summary.ConversationID, summary.Title, summary.LastMessageID, summary.UnreadCount, summary.UpdatedAt); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)
        ON CONFLICT (conversation_id, user_id) DO NOTHING`, summary.ConversationID, userID)
	return err
}

// Get fetches a single conversation summary.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.ConversationSummary, error) {
	var summary models.ConversationSummary
	err := r.db.GetContext(ctx, &summary, `SELECT id, title, COALESCE(last_message_id, '') AS last_message_id, unread_count, updated_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConversationSummary{}, ErrConversationNotFound
	}
	return summary, err
}
