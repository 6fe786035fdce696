package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
)

// CursorRepository handles source cursor persistence
type CursorRepository struct {
	db *PostgresDB
}

// NewCursorRepository creates a new cursor repository
func NewCursorRepository(db *PostgresDB) *CursorRepository {
	return &CursorRepository{db: db}
}

// GetCursor retrieves the stored cursor for a stream, nil when none exists
func (r *CursorRepository) GetCursor(ctx context.Context, nodeID, scopeID, source, stream, sourceRef string) (*models.SourceCursor, error) {
	query := `
		SELECT node_id, scope_id, source, stream, source_ref, value, updated_at
		FROM source_cursors
		WHERE node_id = $1 AND scope_id = $2 AND source = $3 AND stream = $4 AND source_ref = $5
	`

	var c models.SourceCursor
	err := r.db.Pool().QueryRow(ctx, query, nodeID, scopeID, source, stream, sourceRef).Scan(
		&c.NodeID, &c.ScopeID, &c.Source, &c.Stream, &c.SourceRef, &c.Value, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	return &c, nil
}

// UpsertCursor writes a cursor position. GREATEST keeps the stored value
// monotonic even if two workers race with out-of-order positions.
func (r *CursorRepository) UpsertCursor(ctx context.Context, c *models.SourceCursor) error {
	query := `
		INSERT INTO source_cursors (node_id, scope_id, source, stream, source_ref, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (node_id, scope_id, source, stream, source_ref)
		DO UPDATE SET
			value = GREATEST(source_cursors.value, EXCLUDED.value),
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.NodeID, c.ScopeID, c.Source, c.Stream, c.SourceRef, c.Value, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cursor: %w", err)
	}
	return nil
}
