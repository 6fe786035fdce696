package storage

import (
	"context"
	"fmt"

	"github.com/epoch-ledger/internal/models"
)

// CurationRepository handles curation rows. The write shapes carry the
// concurrency guarantees the resolver relies on: insert-on-conflict-do-
// nothing for creation races, and update-where-null so a manually set user
// is never overwritten.
type CurationRepository struct {
	db *PostgresDB
}

// NewCurationRepository creates a new curation repository
func NewCurationRepository(db *PostgresDB) *CurationRepository {
	return &CurationRepository{db: db}
}

// InsertCurationDoNothing inserts a curation row; a concurrent insert for
// the same (epoch, event) wins silently.
func (r *CurationRepository) InsertCurationDoNothing(ctx context.Context, c *models.Curation) error {
	query := `
		INSERT INTO curations (
			epoch_id, event_id, user_id, included, weight_override_milli,
			note, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (epoch_id, event_id) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.EpochID, c.EventID, c.UserID, c.Included, c.WeightOverrideMilli,
		c.Note, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert curation: %w", err)
	}
	return nil
}

// UpdateCurationUserID sets the resolved user on a curation row, but only
// while the stored user is still null. Reports whether a row changed.
func (r *CurationRepository) UpdateCurationUserID(ctx context.Context, epochID, eventID, userID string) (bool, error) {
	query := `
		UPDATE curations
		SET user_id = $3, updated_at = now()
		WHERE epoch_id = $1 AND event_id = $2 AND user_id IS NULL
	`

	result, err := r.db.Pool().Exec(ctx, query, epochID, eventID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update curation user: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// UpsertCuration writes an admin's curation decision, replacing any prior
// row for the (epoch, event).
func (r *CurationRepository) UpsertCuration(ctx context.Context, c *models.Curation) error {
	query := `
		INSERT INTO curations (
			epoch_id, event_id, user_id, included, weight_override_milli,
			note, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (epoch_id, event_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			included = EXCLUDED.included,
			weight_override_milli = EXCLUDED.weight_override_milli,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		c.EpochID, c.EventID, c.UserID, c.Included, c.WeightOverrideMilli,
		c.Note, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert curation: %w", err)
	}
	return nil
}

// GetResolvedCurations retrieves included curations with a resolved user
func (r *CurationRepository) GetResolvedCurations(ctx context.Context, epochID string) ([]*models.Curation, error) {
	query := `
		SELECT epoch_id, event_id, user_id, included, weight_override_milli,
		       note, created_at, updated_at
		FROM curations
		WHERE epoch_id = $1 AND included = true AND user_id IS NOT NULL
		ORDER BY event_id
	`

	rows, err := r.db.Pool().Query(ctx, query, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolved curations: %w", err)
	}
	defer rows.Close()

	var curations []*models.Curation
	for rows.Next() {
		var c models.Curation
		err := rows.Scan(
			&c.EpochID, &c.EventID, &c.UserID, &c.Included, &c.WeightOverrideMilli,
			&c.Note, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan curation: %w", err)
		}
		curations = append(curations, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating curations: %w", err)
	}
	return curations, nil
}
