package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-sync/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageStore is the durable per-conversation paged cache of message
// records. Implementations must isolate conversations by conversation id
// and tolerate concurrent access across conversations.
type MessageStore interface {
	GetPage(ctx context.Context, conversationID string, cursor string, limit int) ([]models.Message, bool, error)
	Upsert(ctx context.Context, msg models.Message) error
	UpsertStatus(ctx context.Context, messageID string, status models.Status) error
	ReplaceID(ctx context.Context, oldID string, msg models.Message) error
	Remove(ctx context.Context, messageID string) error
}

// MessageRepo is a sqlx-backed MessageStore.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, type, content, metadata, status, COALESCE(reply_to_id, '') AS reply_to_id, created_at`

// GetPage returns up to limit messages newest-first. An empty cursor reads
// from the newest message; otherwise only messages older than the cursor
// message are returned. The second result reports whether more history
// remains beyond the returned page.
func (r *MessageRepo) GetPage(ctx context.Context, conversationID string, cursor string, limit int) ([]models.Message, bool, error) {
	var msgs []models.Message
	var err error
	if cursor == "" {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE conversation_id=$1
            ORDER BY created_at DESC, id DESC
            LIMIT $2`
		err = r.db.SelectContext(ctx, &msgs, query, conversationID, limit+1)
	} else {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE conversation_id=$1
            AND created_at < (SELECT created_at FROM messages WHERE id=$2)
            ORDER BY created_at DESC, id DESC
            LIMIT $3`
		err = r.db.SelectContext(ctx, &msgs, query, conversationID, cursor, limit+1)
	}
	if err != nil {
		return nil, false, err
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return msgs, hasMore, nil
}

// Upsert inserts or replaces a message record by identity.
func (r *MessageRepo) Upsert(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, type, content, metadata, status, reply_to_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
        ON CONFLICT (id) DO UPDATE SET
            content = EXCLUDED.content,
            metadata = EXCLUDED.metadata,
            status = EXCLUDED.status,
            reply_to_id = EXCLUDED.reply_to_id`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content, msg.Metadata, msg.Status, msg.ReplyToID, msg.CreatedAt)
	return err
}

// UpsertStatus updates only the status column, preserving the record's
// position in the recency order.
func (r *MessageRepo) UpsertStatus(ctx context.Context, messageID string, status models.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$2 WHERE id=$1`, messageID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ReplaceID swaps a provisional identity for the server-confirmed record
// in one statement so no reader observes both.
func (r *MessageRepo) ReplaceID(ctx context.Context, oldID string, msg models.Message) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, oldID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO messages (id, conversation_id, sender_id, type, content, metadata, status, reply_to_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
        ON CONFLICT (id) DO UPDATE SET
            content = EXCLUDED.content,
            metadata = EXCLUDED.metadata,
            status = EXCLUDED.status`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Type, msg.Content, msg.Metadata, msg.Status, msg.ReplyToID, msg.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove deletes a message record.
func (r *MessageRepo) Remove(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
