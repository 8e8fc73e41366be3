package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
)

type ReactionRepo struct {
	pool *pgxpool.Pool
}

func NewReactionRepo(pool *pgxpool.Pool) *ReactionRepo {
	return &ReactionRepo{pool: pool}
}

func (r *ReactionRepo) Add(ctx context.Context, reaction *domain.Reaction) error {
	query := `
		INSERT INTO reactions (message_id, staff_id, emoji, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, staff_id, emoji) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, reaction.MessageID, reaction.StaffID, reaction.Emoji, reaction.CreatedAt)
	return err
}

func (r *ReactionRepo) Remove(ctx context.Context, messageID, staffID uuid.UUID, emoji string) error {
	query := `DELETE FROM reactions WHERE message_id = $1 AND staff_id = $2 AND emoji = $3`
	_, err := r.pool.Exec(ctx, query, messageID, staffID, emoji)
	return err
}

func (r *ReactionRepo) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT message_id, staff_id, emoji, created_at
		FROM reactions WHERE message_id = ANY($1) ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reactions []domain.Reaction
	for rows.Next() {
		var reaction domain.Reaction
		if err := rows.Scan(&reaction.MessageID, &reaction.StaffID, &reaction.Emoji, &reaction.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, reaction)
	}
	return reactions, rows.Err()
}
