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

type RoomRepo struct {
	pool *pgxpool.Pool
}

func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

const roomColumns = `id, type, name, client_id, is_locked, is_archived, is_deleted,
	created_by, created_at, last_message_at, last_message_preview`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	err := row.Scan(
		&r.ID, &r.Type, &r.Name, &r.ClientID, &r.IsLocked, &r.IsArchived,
		&r.IsDeleted, &r.CreatedBy, &r.CreatedAt, &r.LastMessageAt, &r.LastMessagePreview,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, type, name, client_id, is_locked, is_archived, is_deleted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		room.ID, room.Type, room.Name, room.ClientID, room.IsLocked,
		room.IsArchived, room.IsDeleted, room.CreatedBy, room.CreatedAt,
	)
	return err
}

func (r *RoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	return scanRoom(r.pool.QueryRow(ctx, query, id))
}

func (r *RoomRepo) GetDirect(ctx context.Context, staffA, staffB uuid.UUID) (*domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE type = 'direct' AND is_deleted = FALSE
			AND id IN (SELECT room_id FROM participants WHERE staff_id = $1)
			AND id IN (SELECT room_id FROM participants WHERE staff_id = $2)
		LIMIT 1`
	return scanRoom(r.pool.QueryRow(ctx, query, staffA, staffB))
}

func (r *RoomRepo) ListForStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE is_deleted = FALSE
			AND id IN (SELECT room_id FROM participants WHERE staff_id = $1)
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC`
	return r.queryRooms(ctx, query, staffID)
}

func (r *RoomRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE client_id = $1 AND is_deleted = FALSE`
	return r.queryRooms(ctx, query, clientID)
}

func (r *RoomRepo) Update(ctx context.Context, room *domain.Room) error {
	query := `UPDATE rooms SET name = $1 WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, room.Name, room.ID)
	return err
}

func (r *RoomRepo) SetLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE rooms SET is_locked = $1 WHERE id = $2`, locked, id)
	return err
}

func (r *RoomRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE rooms SET is_archived = $1 WHERE id = $2`, archived, id)
	return err
}

func (r *RoomRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE rooms SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

func (r *RoomRepo) SetLastMessage(ctx context.Context, id uuid.UUID, at time.Time, preview string) error {
	query := `UPDATE rooms SET last_message_at = $1, last_message_preview = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, at, preview, id)
	return err
}

func (r *RoomRepo) queryRooms(ctx context.Context, query string, args ...any) ([]domain.Room, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(
			&room.ID, &room.Type, &room.Name, &room.ClientID, &room.IsLocked,
			&room.IsArchived, &room.IsDeleted, &room.CreatedBy, &room.CreatedAt,
			&room.LastMessageAt, &room.LastMessagePreview,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
