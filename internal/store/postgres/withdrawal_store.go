package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// WithdrawalStore implements domain.WithdrawalStore using PostgreSQL.
type WithdrawalStore struct {
	pool *pgxpool.Pool
}

// NewWithdrawalStore creates a WithdrawalStore backed by the given pool.
func NewWithdrawalStore(pool *pgxpool.Pool) *WithdrawalStore {
	return &WithdrawalStore{pool: pool}
}

const withdrawalSelectCols = `id, identity, token, amount, destination, status, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (domain.PendingWithdrawal, error) {
	var w domain.PendingWithdrawal
	err := row.Scan(
		&w.ID, &w.Identity, &w.Token, &w.Amount,
		&w.Destination, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

// Insert persists a new withdrawal record.
func (s *WithdrawalStore) Insert(ctx context.Context, w domain.PendingWithdrawal) error {
	const query = `
		INSERT INTO withdrawals (id, identity, token, amount, destination, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.Identity, w.Token, w.Amount,
		w.Destination, w.Status, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert withdrawal %s: %w", w.ID, err)
	}
	return nil
}

// Get returns one withdrawal by ID, or domain.ErrNotFound.
func (s *WithdrawalStore) Get(ctx context.Context, id string) (domain.PendingWithdrawal, error) {
	query := `SELECT ` + withdrawalSelectCols + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingWithdrawal{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PendingWithdrawal{}, fmt.Errorf("postgres: get withdrawal %s: %w", id, err)
	}
	return w, nil
}

// ListByIdentity returns the identity's withdrawals, newest first.
func (s *WithdrawalStore) ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.PendingWithdrawal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + withdrawalSelectCols + `
		FROM withdrawals WHERE identity = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list withdrawals %s: %w", identity, err)
	}
	defer rows.Close()

	var out []domain.PendingWithdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateStatus moves a pending record to sent or failed. Only pending
// records transition; anything else reports domain.ErrNotFound.
func (s *WithdrawalStore) UpdateStatus(ctx context.Context, id string, status domain.WithdrawalStatus) error {
	const query = `
		UPDATE withdrawals SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("postgres: update withdrawal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.WithdrawalStore = (*WithdrawalStore)(nil)
