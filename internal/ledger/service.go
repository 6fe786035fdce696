// Package ledger owns the epoch lifecycle: pool components accumulate while
// an epoch is open, curations roll up into allocations, and closing the
// epoch freezes the pool and produces the payout statement.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/payout"
	"github.com/epoch-ledger/internal/types"
)

// defaultWeightMilli is the valuation weight of an included event with no
// admin override, in thousandths.
const defaultWeightMilli = 1000

// Store is the persistence surface the epoch lifecycle needs.
type Store interface {
	GetEpoch(ctx context.Context, epochID string) (*models.Epoch, error)
	// CloseEpoch flips an open epoch to closed with the pool total.
	// Reports false when the epoch was not open.
	CloseEpoch(ctx context.Context, epochID string, poolTotalCredits int64, closedAt time.Time) (bool, error)
	InsertPoolComponent(ctx context.Context, c *models.PoolComponent) error
	ListPoolComponents(ctx context.Context, epochID string) ([]*models.PoolComponent, error)
	// GetResolvedCurations returns included curations with a resolved user.
	GetResolvedCurations(ctx context.Context, epochID string) ([]*models.Curation, error)
	InsertAllocations(ctx context.Context, allocations []models.Allocation) error
	UpdateAllocationFinalUnits(ctx context.Context, epochID, userID string, finalUnits int64) error
	ListAllocations(ctx context.Context, epochID string) ([]*models.Allocation, error)
}

// Service coordinates epoch close and payout statement creation.
type Service struct {
	store     Store
	statement *payout.StatementBuilder
	logger    *logging.Logger
}

// NewService creates an epoch lifecycle service.
func NewService(store Store, statement *payout.StatementBuilder, logger *logging.Logger) *Service {
	return &Service{store: store, statement: statement, logger: logger}
}

// AddPoolComponent records one named credit contribution to an open epoch.
func (s *Service) AddPoolComponent(ctx context.Context, epochID, componentID, algorithmVersion string, amountCredits int64, inputsJSON []byte, evidenceRef *string) (*models.PoolComponent, error) {
	ep, err := s.openEpoch(ctx, epochID)
	if err != nil {
		return nil, err
	}

	comp := &models.PoolComponent{
		ID:               uuid.New().String(),
		EpochID:          ep.ID,
		ComponentID:      componentID,
		AlgorithmVersion: algorithmVersion,
		AmountCredits:    amountCredits,
		InputsJSON:       inputsJSON,
		EvidenceRef:      evidenceRef,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.InsertPoolComponent(ctx, comp); err != nil {
		return nil, fmt.Errorf("failed to insert pool component: %w", err)
	}
	return comp, nil
}

// ProposeAllocations rolls the epoch's resolved curations up into proposed
// per-user allocation units. Each included event contributes its weight
// override, or the default weight, in milli-units.
func (s *Service) ProposeAllocations(ctx context.Context, epochID string) ([]models.Allocation, error) {
	if _, err := s.openEpoch(ctx, epochID); err != nil {
		return nil, err
	}

	curations, err := s.store.GetResolvedCurations(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load resolved curations: %w", err)
	}

	unitsByUser := make(map[string]int64)
	for _, cur := range curations {
		weight := int64(defaultWeightMilli)
		if cur.WeightOverrideMilli != nil {
			weight = *cur.WeightOverrideMilli
		}
		unitsByUser[*cur.UserID] += weight
	}

	now := time.Now().UTC()
	allocations := make([]models.Allocation, 0, len(unitsByUser))
	for userID, units := range unitsByUser {
		allocations = append(allocations, models.Allocation{
			EpochID:       epochID,
			UserID:        userID,
			ProposedUnits: units,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if len(allocations) > 0 {
		if err := s.store.InsertAllocations(ctx, allocations); err != nil {
			return nil, fmt.Errorf("failed to insert allocations: %w", err)
		}
	}
	return allocations, nil
}

// FinalizeAllocation overrides one user's final units ahead of close.
func (s *Service) FinalizeAllocation(ctx context.Context, epochID, userID string, finalUnits int64) error {
	if finalUnits < 0 {
		return types.NewErrorf(types.KindDataIntegrity, types.CodeNegativeUnits,
			"final units for user %s cannot be negative (%d)", userID, finalUnits)
	}
	if _, err := s.openEpoch(ctx, epochID); err != nil {
		return err
	}
	if err := s.store.UpdateAllocationFinalUnits(ctx, epochID, userID, finalUnits); err != nil {
		return fmt.Errorf("failed to finalize allocation: %w", err)
	}
	return nil
}

// CloseEpoch irreversibly closes the epoch and freezes its payout.
//
// All required pool components must be present; their credits sum into the
// pool total. The close itself is a conditional update so a concurrent
// close loses cleanly, and the payout statement is built from the
// allocation snapshot at close time.
func (s *Service) CloseEpoch(ctx context.Context, epochID string, requiredComponents []string) (*models.PayoutStatement, error) {
	ep, err := s.openEpoch(ctx, epochID)
	if err != nil {
		return nil, err
	}

	components, err := s.store.ListPoolComponents(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool components: %w", err)
	}

	present := make(map[string]bool, len(components))
	var poolTotal int64
	for _, comp := range components {
		present[comp.ComponentID] = true
		poolTotal += comp.AmountCredits
	}
	for _, required := range requiredComponents {
		if !present[required] {
			return nil, types.NewErrorf(types.KindStateConflict, types.CodeEpochIncomplete,
				"epoch %s cannot close: pool component %s missing", epochID, required)
		}
	}

	closed, err := s.store.CloseEpoch(ctx, epochID, poolTotal, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to close epoch: %w", err)
	}
	if !closed {
		return nil, types.NewErrorf(types.KindStateConflict, types.CodeEpochClosed,
			"epoch %s is already closed", epochID)
	}

	allocations, err := s.store.ListAllocations(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	inputs := make([]payout.AllocationInput, 0, len(allocations))
	for _, a := range allocations {
		inputs = append(inputs, payout.AllocationInput{
			UserID:         a.UserID,
			ValuationUnits: a.ValuationUnits(),
		})
	}

	stmt, err := s.statement.BuildStatement(ctx, epochID, inputs, poolTotal)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"epochId":     epochID,
		"nodeId":      ep.NodeID,
		"scopeId":     ep.ScopeID,
		"poolTotal":   poolTotal,
		"statementId": stmt.ID,
	}).Info("epoch closed")
	return stmt, nil
}

func (s *Service) openEpoch(ctx context.Context, epochID string) (*models.Epoch, error) {
	ep, err := s.store.GetEpoch(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load epoch %s: %w", epochID, err)
	}
	if ep == nil {
		return nil, types.NewErrorf(types.KindNotFound, types.CodeEpochNotFound, "epoch %s not found", epochID)
	}
	if ep.Status != types.EpochOpen {
		return nil, types.NewErrorf(types.KindStateConflict, types.CodeEpochClosed,
			"epoch %s is already closed", epochID)
	}
	return ep, nil
}
