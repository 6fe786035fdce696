package models

import "time"

// Curation records the inclusion decision for one event within one epoch.
// UserID stays null until resolution succeeds; once set (by the resolver or
// by an admin) it is never overwritten by a later resolution pass.
type Curation struct {
	EpochID             string    `json:"epochId"`
	EventID             string    `json:"eventId"`
	UserID              *string   `json:"userId,omitempty"`
	Included            bool      `json:"included"`
	WeightOverrideMilli *int64    `json:"weightOverrideMilli,omitempty"`
	Note                *string   `json:"note,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Allocation holds proposed and final valuation units for one user in one
// epoch. FinalUnits stays null until explicitly finalized or overridden.
type Allocation struct {
	EpochID       string    `json:"epochId"`
	UserID        string    `json:"userId"`
	ProposedUnits int64     `json:"proposedUnits"`
	FinalUnits    *int64    `json:"finalUnits,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ValuationUnits returns the units that count for payout: final when set,
// otherwise proposed.
func (a *Allocation) ValuationUnits() int64 {
	if a.FinalUnits != nil {
		return *a.FinalUnits
	}
	return a.ProposedUnits
}
