// Package payout computes deterministic credit distributions over finalized
// epoch allocations and freezes them into immutable statements.
package payout

import (
	"math/big"
	"sort"

	"github.com/epoch-ledger/internal/types"
)

// AllocationInput is one user's valuation for the payout computation.
// Multiple rows per user are allowed and are summed.
type AllocationInput struct {
	UserID         string `json:"userId"`
	ValuationUnits int64  `json:"valuationUnits"`
}

// LineItem is one user's computed payout.
type LineItem struct {
	UserID         string `json:"userId"`
	ValuationUnits int64  `json:"valuationUnits"`
	AmountCredits  int64  `json:"amountCredits"`
	Share          string `json:"share"`
}

var shareScale = big.NewInt(1_000_000)

// ComputePayouts distributes poolTotalCredits across allocations by the
// largest-remainder method. All arithmetic is arbitrary-precision integer;
// no floating point touches the computation.
//
// The result is empty when there is nothing to distribute (no allocations,
// non-positive pool, zero total units). Users whose summed units are zero
// receive nothing and are omitted from the result entirely; a statement
// lists recipients, not bystanders. Negative valuation units are a hard
// data-integrity rejection: the ledger they came from is append-only and
// cannot be corrected retroactively.
//
// For valid input the line items always sum exactly to poolTotalCredits and
// come back sorted by ascending user ID.
func ComputePayouts(allocations []AllocationInput, poolTotalCredits int64) ([]LineItem, error) {
	for _, a := range allocations {
		if a.ValuationUnits < 0 {
			return nil, types.NewErrorf(types.KindDataIntegrity, types.CodeNegativeUnits,
				"allocation for user %s has negative valuation units (%d)", a.UserID, a.ValuationUnits)
		}
	}

	if len(allocations) == 0 || poolTotalCredits <= 0 {
		return []LineItem{}, nil
	}

	unitsByUser := make(map[string]int64)
	for _, a := range allocations {
		unitsByUser[a.UserID] += a.ValuationUnits
	}

	userIDs := make([]string, 0, len(unitsByUser))
	var totalUnits int64
	for id, units := range unitsByUser {
		if units == 0 {
			continue
		}
		userIDs = append(userIDs, id)
		totalUnits += units
	}
	if totalUnits == 0 {
		return []LineItem{}, nil
	}
	sort.Strings(userIDs)

	pool := big.NewInt(poolTotalCredits)
	total := big.NewInt(totalUnits)

	items := make([]LineItem, len(userIDs))
	remainders := make([]*big.Int, len(userIDs))
	distributed := new(big.Int)

	for i, id := range userIDs {
		units := big.NewInt(unitsByUser[id])

		product := new(big.Int).Mul(units, pool)
		floor, rem := new(big.Int).QuoRem(product, total, new(big.Int))
		distributed.Add(distributed, floor)
		remainders[i] = rem

		items[i] = LineItem{
			UserID:         id,
			ValuationUnits: unitsByUser[id],
			AmountCredits:  floor.Int64(),
			Share:          formatShare(units, total),
		}
	}

	// Hand the leftover credits, one each, to the largest remainders.
	// items is already in ascending user-ID order, so a stable sort on the
	// remainder alone gives the required tie-break for free.
	residual := new(big.Int).Sub(pool, distributed).Int64()
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].Cmp(remainders[order[b]]) > 0
	})
	for i := int64(0); i < residual; i++ {
		items[order[i]].AmountCredits++
	}

	return items, nil
}

// formatShare renders units/total with exactly six fractional digits using
// integer scaling.
func formatShare(units, total *big.Int) string {
	scaled := new(big.Int).Mul(units, shareScale)
	scaled.Quo(scaled, total)

	whole, frac := new(big.Int).QuoRem(scaled, shareScale, new(big.Int))
	return whole.String() + "." + padFraction(frac)
}

func padFraction(frac *big.Int) string {
	s := frac.String()
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}
