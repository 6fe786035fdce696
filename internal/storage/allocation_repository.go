package storage

import (
	"context"
	"fmt"

	"github.com/epoch-ledger/internal/models"
)

// AllocationRepository handles allocation rows
type AllocationRepository struct {
	db *PostgresDB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *PostgresDB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// InsertAllocations writes proposed allocations for an epoch. Re-proposing
// refreshes proposed units but leaves any final override alone.
func (r *AllocationRepository) InsertAllocations(ctx context.Context, allocations []models.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}

	query := `
		INSERT INTO allocations (epoch_id, user_id, proposed_units, final_units, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (epoch_id, user_id)
		DO UPDATE SET
			proposed_units = EXCLUDED.proposed_units,
			updated_at = EXCLUDED.updated_at
	`

	for _, a := range allocations {
		_, err := r.db.Pool().Exec(ctx, query,
			a.EpochID, a.UserID, a.ProposedUnits, a.FinalUnits, a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert allocation for user %s: %w", a.UserID, err)
		}
	}
	return nil
}

// UpdateAllocationFinalUnits sets the final override for one user's allocation
func (r *AllocationRepository) UpdateAllocationFinalUnits(ctx context.Context, epochID, userID string, finalUnits int64) error {
	query := `
		UPDATE allocations
		SET final_units = $3, updated_at = now()
		WHERE epoch_id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, epochID, userID, finalUnits)
	if err != nil {
		return fmt.Errorf("failed to update allocation final units: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no allocation found for epoch %s user %s", epochID, userID)
	}
	return nil
}

// ListAllocations retrieves all allocations for an epoch ordered by user
func (r *AllocationRepository) ListAllocations(ctx context.Context, epochID string) ([]*models.Allocation, error) {
	query := `
		SELECT epoch_id, user_id, proposed_units, final_units, created_at, updated_at
		FROM allocations
		WHERE epoch_id = $1
		ORDER BY user_id
	`

	rows, err := r.db.Pool().Query(ctx, query, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*models.Allocation
	for rows.Next() {
		var a models.Allocation
		err := rows.Scan(&a.EpochID, &a.UserID, &a.ProposedUnits, &a.FinalUnits, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return allocations, nil
}
