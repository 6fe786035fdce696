package payout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// StatementStore is the persistence surface the statement builder needs.
type StatementStore interface {
	// GetStatementForEpoch returns the canonical (latest) statement for an
	// epoch, or nil when none exists.
	GetStatementForEpoch(ctx context.Context, epochID string) (*models.PayoutStatement, error)
	InsertPayoutStatement(ctx context.Context, stmt *models.PayoutStatement) error
	GetStatement(ctx context.Context, statementID string) (*models.PayoutStatement, error)
	InsertStatementSignature(ctx context.Context, sig *models.StatementSignature) error
}

// StatementBuilder freezes payout computations into immutable statements.
type StatementBuilder struct {
	store StatementStore
}

// NewStatementBuilder creates a statement builder over the given store.
func NewStatementBuilder(store StatementStore) *StatementBuilder {
	return &StatementBuilder{store: store}
}

// BuildStatement computes payouts for the allocation set and persists them
// as the epoch's statement.
//
// Re-running with an identical allocation set and pool is a no-op that
// returns the existing statement. A re-run that would change the result
// writes a new statement with SupersedesStatementID pointing at the old one;
// the old row is never touched.
func (b *StatementBuilder) BuildStatement(ctx context.Context, epochID string, allocations []AllocationInput, poolTotalCredits int64) (*models.PayoutStatement, error) {
	items, err := ComputePayouts(allocations, poolTotalCredits)
	if err != nil {
		return nil, err
	}

	hash := AllocationSetHash(allocations)

	payoutsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payouts: %w", err)
	}

	existing, err := b.store.GetStatementForEpoch(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statement for epoch %s: %w", epochID, err)
	}

	if existing != nil && existing.AllocationSetHash == hash && existing.PoolTotalCredits == poolTotalCredits {
		return existing, nil
	}

	stmt := &models.PayoutStatement{
		ID:                uuid.New().String(),
		EpochID:           epochID,
		AllocationSetHash: hash,
		PoolTotalCredits:  poolTotalCredits,
		PayoutsJSON:       payoutsJSON,
		CreatedAt:         time.Now().UTC(),
	}
	if existing != nil {
		stmt.SupersedesStatementID = &existing.ID
	}

	if err := b.store.InsertPayoutStatement(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to insert payout statement: %w", err)
	}

	return stmt, nil
}

// AddSignature appends one party's attestation to a statement. Signatures
// accumulate independently and never modify the statement itself.
func (b *StatementBuilder) AddSignature(ctx context.Context, statementID, signer, signature string) (*models.StatementSignature, error) {
	stmt, err := b.store.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statement %s: %w", statementID, err)
	}
	if stmt == nil {
		return nil, types.NewErrorf(types.KindNotFound, types.CodeStatementNotFound,
			"statement %s not found", statementID)
	}

	sig := &models.StatementSignature{
		ID:          uuid.New().String(),
		StatementID: statementID,
		Signer:      signer,
		Signature:   signature,
		SignedAt:    time.Now().UTC(),
	}
	if err := b.store.InsertStatementSignature(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to insert statement signature: %w", err)
	}
	return sig, nil
}

// AllocationSetHash produces the canonical SHA-256 digest of an allocation
// set: rows summed per user, sorted by user ID, fixed field order. Equal
// sets hash identically regardless of input ordering.
func AllocationSetHash(allocations []AllocationInput) string {
	unitsByUser := make(map[string]int64)
	for _, a := range allocations {
		unitsByUser[a.UserID] += a.ValuationUnits
	}
	userIDs := make([]string, 0, len(unitsByUser))
	for id := range unitsByUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	h := sha256.New()
	for _, id := range userIDs {
		fmt.Fprintf(h, "%s|%d\n", id, unitsByUser[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}
