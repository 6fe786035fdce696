package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
)

// GrantRepository handles execution grant rows
type GrantRepository struct {
	db *PostgresDB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *PostgresDB) *GrantRepository {
	return &GrantRepository{db: db}
}

// CreateGrant inserts a new execution grant
func (r *GrantRepository) CreateGrant(ctx context.Context, g *models.ExecutionGrant) error {
	query := `
		INSERT INTO execution_grants (id, user_id, billing_account_id, scopes, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		g.ID, g.UserID, g.BillingAccountID, g.Scopes, g.ExpiresAt, g.RevokedAt, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution grant: %w", err)
	}
	return nil
}

// GetGrant retrieves a grant by ID, nil when not found
func (r *GrantRepository) GetGrant(ctx context.Context, grantID string) (*models.ExecutionGrant, error) {
	query := `
		SELECT id, user_id, billing_account_id, scopes, expires_at, revoked_at, created_at
		FROM execution_grants
		WHERE id = $1
	`

	var g models.ExecutionGrant
	err := r.db.Pool().QueryRow(ctx, query, grantID).Scan(
		&g.ID, &g.UserID, &g.BillingAccountID, &g.Scopes, &g.ExpiresAt, &g.RevokedAt, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution grant: %w", err)
	}
	return &g, nil
}

// RevokeGrant stamps revokedAt on a grant, keeping the row for audit
func (r *GrantRepository) RevokeGrant(ctx context.Context, grantID string) error {
	query := `
		UPDATE execution_grants
		SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`

	_, err := r.db.Pool().Exec(ctx, query, grantID)
	if err != nil {
		return fmt.Errorf("failed to revoke execution grant: %w", err)
	}
	return nil
}

// DeleteGrant removes a grant row outright
func (r *GrantRepository) DeleteGrant(ctx context.Context, grantID string) error {
	query := `DELETE FROM execution_grants WHERE id = $1`

	_, err := r.db.Pool().Exec(ctx, query, grantID)
	if err != nil {
		return fmt.Errorf("failed to delete execution grant: %w", err)
	}
	return nil
}
