package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
)

type AttachmentRepo struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepo(pool *pgxpool.Pool) *AttachmentRepo {
	return &AttachmentRepo{pool: pool}
}

const attachmentColumns = `id, message_id, type, storage_key, size_bytes, mime_type,
	created_at, expires_at, is_expired, expired_reason`

func (r *AttachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	query := `
		INSERT INTO attachments (id, message_id, type, storage_key, size_bytes, mime_type, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.MessageID, a.Type, a.StorageKey, a.SizeBytes, a.MimeType, a.CreatedAt, a.ExpiresAt,
	)
	return err
}

func (r *AttachmentRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE message_id = $1 ORDER BY created_at`
	return r.queryAttachments(ctx, query, messageID)
}

// MarkExpired is guarded on is_expired so re-running the sweep over the same
// row is a no-op.
func (r *AttachmentRepo) MarkExpired(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE attachments
		SET is_expired = TRUE, storage_key = NULL, expired_reason = $1
		WHERE id = $2 AND is_expired = FALSE`
	_, err := r.pool.Exec(ctx, query, reason, id)
	return err
}

func (r *AttachmentRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Attachment, error) {
	query := `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE expires_at <= $1 AND is_expired = FALSE
		ORDER BY expires_at
		LIMIT $2`
	return r.queryAttachments(ctx, query, now, limit)
}

func (r *AttachmentRepo) ListExpiringSoon(ctx context.Context, now time.Time, within time.Duration) ([]domain.Attachment, error) {
	query := `
		SELECT ` + attachmentColumns + `
		FROM attachments
		WHERE is_expired = FALSE AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at`
	return r.queryAttachments(ctx, query, now, now.Add(within))
}

func (r *AttachmentRepo) queryAttachments(ctx context.Context, query string, args ...any) ([]domain.Attachment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(
			&a.ID, &a.MessageID, &a.Type, &a.StorageKey, &a.SizeBytes,
			&a.MimeType, &a.CreatedAt, &a.ExpiresAt, &a.IsExpired, &a.ExpiredReason,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}
