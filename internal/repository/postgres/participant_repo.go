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

type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func (r *ParticipantRepo) Get(ctx context.Context, roomID, staffID uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT room_id, staff_id, role, joined_at, last_read_at, is_pinned, is_muted
		FROM participants WHERE room_id = $1 AND staff_id = $2`
	var p domain.Participant
	err := r.pool.QueryRow(ctx, query, roomID, staffID).Scan(
		&p.RoomID, &p.StaffID, &p.Role, &p.JoinedAt, &p.LastReadAt, &p.IsPinned, &p.IsMuted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	query := `
		SELECT room_id, staff_id, role, joined_at, last_read_at, is_pinned, is_muted
		FROM participants WHERE room_id = $1 ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.RoomID, &p.StaffID, &p.Role, &p.JoinedAt, &p.LastReadAt, &p.IsPinned, &p.IsMuted); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *ParticipantRepo) Add(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (room_id, staff_id, role, joined_at, is_pinned, is_muted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, staff_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, p.RoomID, p.StaffID, p.Role, p.JoinedAt, p.IsPinned, p.IsMuted)
	return err
}

func (r *ParticipantRepo) Remove(ctx context.Context, roomID, staffID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE room_id = $1 AND staff_id = $2`, roomID, staffID)
	return err
}

func (r *ParticipantRepo) UpdateRole(ctx context.Context, roomID, staffID uuid.UUID, role domain.ParticipantRole) error {
	query := `UPDATE participants SET role = $1 WHERE room_id = $2 AND staff_id = $3`
	_, err := r.pool.Exec(ctx, query, role, roomID, staffID)
	return err
}

func (r *ParticipantRepo) UpdateLastRead(ctx context.Context, roomID, staffID uuid.UUID, at time.Time) error {
	query := `UPDATE participants SET last_read_at = $1 WHERE room_id = $2 AND staff_id = $3`
	_, err := r.pool.Exec(ctx, query, at, roomID, staffID)
	return err
}
