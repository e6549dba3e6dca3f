package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/domain"
)

const messageColumns = "id, conversation_id, sender_id, text, attachment_url, edited, edited_at, created_at"

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message, preview string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text, attachment_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.AttachmentURL, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE conversations SET last_message = $1, updated_at = $2 WHERE id = $3`,
		preview, msg.CreatedAt, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation preview: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id)
	return scanMessage(row)
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	query := `UPDATE messages SET text = $1, edited = $2, edited_at = $3 WHERE id = $4`
	_, err := r.pool.Exec(ctx, query, msg.Text, msg.Edited, msg.EditedAt, msg.ID)
	return err
}

// Delete removes the row. A conversation pinning it falls back to no pin
// through the foreign key.
func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text,
		&msg.AttachmentURL, &msg.Edited, &msg.EditedAt, &msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
