package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/relay/internal/domain"
)

const conversationColumns = "id, user1_id, user2_id, last_message, pinned_message_id, created_at, updated_at"

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Create inserts conv. Participants must already be in canonical order; a
// second conversation for the same pair fails with repository.ErrConflict.
func (r *ConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user1_id, user2_id, last_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		conv.ID, conv.Participants[0], conv.Participants[1],
		conv.LastMessage, conv.CreatedAt, conv.UpdatedAt,
	)
	return mapWriteErr(err)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id)
	return scanConversation(row)
}

func (r *ConversationRepo) GetByParticipants(ctx context.Context, pair [2]uuid.UUID) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE user1_id = $1 AND user2_id = $2",
		pair[0], pair[1],
	)
	return scanConversation(row)
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY updated_at DESC, id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) SetPinned(ctx context.Context, id uuid.UUID, messageID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET pinned_message_id = $1 WHERE id = $2`, messageID, id)
	return err
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := row.Scan(
		&conv.ID, &conv.Participants[0], &conv.Participants[1],
		&conv.LastMessage, &conv.PinnedMessageID, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
