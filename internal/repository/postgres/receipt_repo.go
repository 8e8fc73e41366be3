package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
)

type ReceiptRepo struct {
	pool *pgxpool.Pool
}

func NewReceiptRepo(pool *pgxpool.Pool) *ReceiptRepo {
	return &ReceiptRepo{pool: pool}
}

func (r *ReceiptRepo) Mark(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		INSERT INTO receipts (message_id, staff_id, kind, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, staff_id, kind) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, receipt.MessageID, receipt.StaffID, receipt.Kind, receipt.CreatedAt)
	return err
}

func (r *ReceiptRepo) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Receipt, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT message_id, staff_id, kind, created_at
		FROM receipts WHERE message_id = ANY($1) ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []domain.Receipt
	for rows.Next() {
		var receipt domain.Receipt
		if err := rows.Scan(&receipt.MessageID, &receipt.StaffID, &receipt.Kind, &receipt.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}
