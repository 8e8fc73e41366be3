package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpavic/casechat/internal/domain"
)

// StaffRepo reads identity records owned by the surrounding case-management
// app; the chat core never writes them.
type StaffRepo struct {
	pool *pgxpool.Pool
}

func NewStaffRepo(pool *pgxpool.Pool) *StaffRepo {
	return &StaffRepo{pool: pool}
}

func (r *StaffRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Staff, error) {
	query := `SELECT id, display_name, role, created_at FROM staff WHERE id = $1`
	var s domain.Staff
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.DisplayName, &s.Role, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StaffRepo) ListAssignedToClient(ctx context.Context, clientID uuid.UUID) ([]domain.Staff, error) {
	query := `
		SELECT st.id, st.display_name, st.role, st.created_at
		FROM staff st
		JOIN client_assignments ca ON ca.staff_id = st.id
		WHERE ca.client_id = $1`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []domain.Staff
	for rows.Next() {
		var s domain.Staff
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.Role, &s.CreatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}
