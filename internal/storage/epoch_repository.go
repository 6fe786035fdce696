package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// EpochRepository handles epoch and pool component persistence. The schema
// carries the structural invariants: one open epoch per (node, scope) via a
// partial unique index, and a unique window per (node, scope).
type EpochRepository struct {
	db *PostgresDB
}

// NewEpochRepository creates a new epoch repository
func NewEpochRepository(db *PostgresDB) *EpochRepository {
	return &EpochRepository{db: db}
}

// CreateEpoch creates a new epoch record
func (r *EpochRepository) CreateEpoch(ctx context.Context, e *models.Epoch) error {
	query := `
		INSERT INTO epochs (
			id, node_id, scope_id, status, period_start, period_end,
			weight_config, opened_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		e.ID, e.NodeID, e.ScopeID, e.Status, e.PeriodStart, e.PeriodEnd,
		e.WeightConfig, e.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create epoch: %w", err)
	}
	return nil
}

// GetEpoch retrieves an epoch by ID, or nil when absent
func (r *EpochRepository) GetEpoch(ctx context.Context, epochID string) (*models.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT id, node_id, scope_id, status, period_start, period_end,
		       weight_config, pool_total_credits, opened_at, closed_at
		FROM epochs
		WHERE id = $1
	`, epochID)
}

// GetEpochByWindow retrieves the epoch for an exact window, or nil
func (r *EpochRepository) GetEpochByWindow(ctx context.Context, nodeID, scopeID string, periodStart, periodEnd time.Time) (*models.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT id, node_id, scope_id, status, period_start, period_end,
		       weight_config, pool_total_credits, opened_at, closed_at
		FROM epochs
		WHERE node_id = $1 AND scope_id = $2 AND period_start = $3 AND period_end = $4
	`, nodeID, scopeID, periodStart, periodEnd)
}

// GetOpenEpoch retrieves the single open epoch for a (node, scope), or nil
func (r *EpochRepository) GetOpenEpoch(ctx context.Context, nodeID, scopeID string) (*models.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT id, node_id, scope_id, status, period_start, period_end,
		       weight_config, pool_total_credits, opened_at, closed_at
		FROM epochs
		WHERE node_id = $1 AND scope_id = $2 AND status = $3
	`, nodeID, scopeID, types.EpochOpen)
}

// CloseEpoch flips an open epoch to closed with its pool total. The status
// condition makes the close race-safe: a second closer affects zero rows
// and gets false back.
func (r *EpochRepository) CloseEpoch(ctx context.Context, epochID string, poolTotalCredits int64, closedAt time.Time) (bool, error) {
	query := `
		UPDATE epochs
		SET status = $2, pool_total_credits = $3, closed_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.Pool().Exec(ctx, query, epochID, types.EpochClosed, poolTotalCredits, closedAt, types.EpochOpen)
	if err != nil {
		return false, fmt.Errorf("failed to close epoch: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// InsertPoolComponent records one credit contribution to an epoch's pool
func (r *EpochRepository) InsertPoolComponent(ctx context.Context, c *models.PoolComponent) error {
	query := `
		INSERT INTO pool_components (
			id, epoch_id, component_id, algorithm_version, amount_credits,
			inputs_json, evidence_ref, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.ID, c.EpochID, c.ComponentID, c.AlgorithmVersion, c.AmountCredits,
		c.InputsJSON, c.EvidenceRef, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pool component: %w", err)
	}
	return nil
}

// ListPoolComponents retrieves all pool components for an epoch
func (r *EpochRepository) ListPoolComponents(ctx context.Context, epochID string) ([]*models.PoolComponent, error) {
	query := `
		SELECT id, epoch_id, component_id, algorithm_version, amount_credits,
		       inputs_json, evidence_ref, created_at
		FROM pool_components
		WHERE epoch_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool components: %w", err)
	}
	defer rows.Close()

	var components []*models.PoolComponent
	for rows.Next() {
		var c models.PoolComponent
		err := rows.Scan(
			&c.ID, &c.EpochID, &c.ComponentID, &c.AlgorithmVersion, &c.AmountCredits,
			&c.InputsJSON, &c.EvidenceRef, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool component: %w", err)
		}
		components = append(components, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pool components: %w", err)
	}
	return components, nil
}

func (r *EpochRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*models.Epoch, error) {
	var e models.Epoch
	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&e.ID, &e.NodeID, &e.ScopeID, &e.Status, &e.PeriodStart, &e.PeriodEnd,
		&e.WeightConfig, &e.PoolTotalCredits, &e.OpenedAt, &e.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get epoch: %w", err)
	}
	return &e, nil
}
