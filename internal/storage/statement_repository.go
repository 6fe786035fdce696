package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/models"
)

// StatementRepository handles payout statements and their signatures.
// Statements are append-only: corrections insert a superseding row.
type StatementRepository struct {
	db *PostgresDB
}

// NewStatementRepository creates a new statement repository
func NewStatementRepository(db *PostgresDB) *StatementRepository {
	return &StatementRepository{db: db}
}

// InsertPayoutStatement appends a statement row
func (r *StatementRepository) InsertPayoutStatement(ctx context.Context, stmt *models.PayoutStatement) error {
	query := `
		INSERT INTO payout_statements (
			id, epoch_id, allocation_set_hash, pool_total_credits,
			payouts_json, supersedes_statement_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		stmt.ID, stmt.EpochID, stmt.AllocationSetHash, stmt.PoolTotalCredits,
		stmt.PayoutsJSON, stmt.SupersedesStatementID, stmt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payout statement: %w", err)
	}
	return nil
}

// GetStatementForEpoch retrieves the latest statement for an epoch, nil when
// none exists. The latest row is the canonical one; older rows are history.
func (r *StatementRepository) GetStatementForEpoch(ctx context.Context, epochID string) (*models.PayoutStatement, error) {
	query := `
		SELECT id, epoch_id, allocation_set_hash, pool_total_credits,
		       payouts_json, supersedes_statement_id, created_at
		FROM payout_statements
		WHERE epoch_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanOne(r.db.Pool().QueryRow(ctx, query, epochID))
}

// GetStatement retrieves a statement by ID, nil when not found
func (r *StatementRepository) GetStatement(ctx context.Context, statementID string) (*models.PayoutStatement, error) {
	query := `
		SELECT id, epoch_id, allocation_set_hash, pool_total_credits,
		       payouts_json, supersedes_statement_id, created_at
		FROM payout_statements
		WHERE id = $1
	`

	return r.scanOne(r.db.Pool().QueryRow(ctx, query, statementID))
}

func (r *StatementRepository) scanOne(row pgx.Row) (*models.PayoutStatement, error) {
	var stmt models.PayoutStatement
	err := row.Scan(
		&stmt.ID, &stmt.EpochID, &stmt.AllocationSetHash, &stmt.PoolTotalCredits,
		&stmt.PayoutsJSON, &stmt.SupersedesStatementID, &stmt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payout statement: %w", err)
	}
	return &stmt, nil
}

// InsertStatementSignature appends one signer's attestation
func (r *StatementRepository) InsertStatementSignature(ctx context.Context, sig *models.StatementSignature) error {
	query := `
		INSERT INTO statement_signatures (id, statement_id, signer, signature, signed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query, sig.ID, sig.StatementID, sig.Signer, sig.Signature, sig.SignedAt)
	if err != nil {
		return fmt.Errorf("failed to insert statement signature: %w", err)
	}
	return nil
}

// ListStatementSignatures retrieves all signatures over a statement
func (r *StatementRepository) ListStatementSignatures(ctx context.Context, statementID string) ([]*models.StatementSignature, error) {
	query := `
		SELECT id, statement_id, signer, signature, signed_at
		FROM statement_signatures
		WHERE statement_id = $1
		ORDER BY signed_at
	`

	rows, err := r.db.Pool().Query(ctx, query, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement signatures: %w", err)
	}
	defer rows.Close()

	var sigs []*models.StatementSignature
	for rows.Next() {
		var s models.StatementSignature
		if err := rows.Scan(&s.ID, &s.StatementID, &s.Signer, &s.Signature, &s.SignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statement signature: %w", err)
		}
		sigs = append(sigs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statement signatures: %w", err)
	}
	return sigs, nil
}
