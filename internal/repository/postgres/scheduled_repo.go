package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
)

type ScheduledMessageRepo struct {
	pool *pgxpool.Pool
}

func NewScheduledMessageRepo(pool *pgxpool.Pool) *ScheduledMessageRepo {
	return &ScheduledMessageRepo{pool: pool}
}

const scheduledColumns = `id, room_id, sender_id, content, scheduled_at, status, fail_reason, created_at, sent_at`

func (r *ScheduledMessageRepo) Create(ctx context.Context, m *domain.ScheduledMessage) error {
	query := `
		INSERT INTO scheduled_messages (id, room_id, sender_id, content, scheduled_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, m.ID, m.RoomID, m.SenderID, m.Content, m.ScheduledAt, m.Status, m.CreatedAt)
	return err
}

func (r *ScheduledMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledMessage, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_messages WHERE id = $1`
	var m domain.ScheduledMessage
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.ScheduledAt, &m.Status, &m.FailReason, &m.CreatedAt, &m.SentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ScheduledMessageRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error) {
	query := `
		SELECT ` + scheduledColumns + `
		FROM scheduled_messages
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.ScheduledMessage
	for rows.Next() {
		var m domain.ScheduledMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.ScheduledAt, &m.Status, &m.FailReason, &m.CreatedAt, &m.SentAt); err != nil {
			return nil, err
		}
		due = append(due, m)
	}
	return due, rows.Err()
}

// Status transitions below are guarded on pending so dispatching the same row
// twice cannot re-send or clobber a terminal state.

func (r *ScheduledMessageRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE scheduled_messages SET status = 'sent', sent_at = $1 WHERE id = $2 AND status = 'pending'`
	_, err := r.pool.Exec(ctx, query, at, id)
	return err
}

func (r *ScheduledMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE scheduled_messages SET status = 'failed', fail_reason = $1 WHERE id = $2 AND status = 'pending'`
	_, err := r.pool.Exec(ctx, query, reason, id)
	return err
}

func (r *ScheduledMessageRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE scheduled_messages SET status = 'cancelled' WHERE id = $1 AND status = 'pending'`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
