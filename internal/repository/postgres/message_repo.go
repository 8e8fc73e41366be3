package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `m.id, m.room_id, m.sender_id, m.content, m.type, m.is_encrypted,
	m.key_version, m.reply_to_id, m.edited_at, m.edited_by, m.deleted_at, m.deleted_by,
	m.is_pinned, m.pinned_at, m.pinned_by, m.forwarded_from_message_id,
	m.forwarded_from_room_id, m.forward_preview, m.created_at, s.display_name`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Type, &m.IsEncrypted,
		&m.KeyVersion, &m.ReplyToID, &m.EditedAt, &m.EditedBy, &m.DeletedAt, &m.DeletedBy,
		&m.IsPinned, &m.PinnedAt, &m.PinnedBy, &m.ForwardedFromMessageID,
		&m.ForwardedFromRoomID, &m.ForwardPreview, &m.CreatedAt, &m.SenderName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, room_id, sender_id, content, type, is_encrypted, key_version,
			reply_to_id, forwarded_from_message_id, forwarded_from_room_id, forward_preview, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Type, msg.IsEncrypted,
		msg.KeyVersion, msg.ReplyToID, msg.ForwardedFromMessageID,
		msg.ForwardedFromRoomID, msg.ForwardPreview, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m JOIN staff s ON m.sender_id = s.id WHERE m.id = $1`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

// ListByRoom pages backwards from the cursor. Rows older than visibleFrom are
// limited to the backfill count, which is how new joiners get a short
// back-context instead of full history.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID uuid.UUID, before *uuid.UUID, limit int, visibleFrom time.Time, backfill int) ([]domain.Message, error) {
	cursor := ""
	args := []any{roomID, visibleFrom}
	if before != nil {
		cursor = `AND m.created_at < (SELECT created_at FROM messages WHERE id = $3)`
		args = append(args, *before)
	}

	query := fmt.Sprintf(`
		WITH visible AS (
			SELECT * FROM messages m
			WHERE m.room_id = $1 AND m.deleted_at IS NULL AND m.created_at >= $2 %s
			UNION ALL
			SELECT * FROM (
				SELECT * FROM messages m
				WHERE m.room_id = $1 AND m.deleted_at IS NULL AND m.created_at < $2 %s
				ORDER BY m.created_at DESC
				LIMIT %d
			) older
		)
		SELECT %s FROM visible m
		JOIN staff s ON m.sender_id = s.id
		ORDER BY m.created_at DESC
		LIMIT %d`, cursor, cursor, backfill, messageColumns, limit)

	messages, err := r.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Oldest first; the query returns newest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, msg *domain.Message) error {
	query := `
		UPDATE messages
		SET content = $1, is_encrypted = $2, key_version = $3, edited_at = $4, edited_by = $5
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, query,
		msg.Content, msg.IsEncrypted, msg.KeyVersion, msg.EditedAt, msg.EditedBy, msg.ID,
	)
	return err
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id, actorID uuid.UUID, at time.Time) error {
	query := `UPDATE messages SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, query, at, actorID, id)
	return err
}

func (r *MessageRepo) SetPinned(ctx context.Context, id uuid.UUID, pinned bool, actorID *uuid.UUID, at *time.Time) error {
	query := `UPDATE messages SET is_pinned = $1, pinned_at = $2, pinned_by = $3 WHERE id = $4`
	_, err := r.pool.Exec(ctx, query, pinned, at, actorID, id)
	return err
}

func (r *MessageRepo) ListPinned(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m JOIN staff s ON m.sender_id = s.id
		WHERE m.room_id = $1 AND m.is_pinned = TRUE AND m.deleted_at IS NULL
		ORDER BY m.pinned_at DESC`
	return r.queryMessages(ctx, query, roomID)
}

func (r *MessageRepo) Search(ctx context.Context, roomID uuid.UUID, filter repository.MessageFilter) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m JOIN staff s ON m.sender_id = s.id
		WHERE m.room_id = $1 AND m.deleted_at IS NULL`
	args := []any{roomID}

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(` AND m.is_encrypted = FALSE AND m.content ILIKE $%d`, len(args))
	}
	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		query += fmt.Sprintf(` AND m.sender_id = $%d`, len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(` AND m.type = $%d`, len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(` AND m.created_at >= $%d`, len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += fmt.Sprintf(` AND m.created_at <= $%d`, len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query += fmt.Sprintf(` ORDER BY m.created_at DESC LIMIT %d`, limit)

	return r.queryMessages(ctx, query, args...)
}

func (r *MessageRepo) queryMessages(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Type, &m.IsEncrypted,
			&m.KeyVersion, &m.ReplyToID, &m.EditedAt, &m.EditedBy, &m.DeletedAt, &m.DeletedBy,
			&m.IsPinned, &m.PinnedAt, &m.PinnedBy, &m.ForwardedFromMessageID,
			&m.ForwardedFromRoomID, &m.ForwardPreview, &m.CreatedAt, &m.SenderName,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
