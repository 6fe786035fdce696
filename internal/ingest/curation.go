package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// UncuratedEvent is an activity event that still lacks a resolved identity:
// either no curation row exists yet, or the row's user is still null.
type UncuratedEvent struct {
	EventID        string
	Source         string
	PlatformUserID string
	HasCuration    bool
}

// CurationStore is the persistence surface the curation resolver needs. The
// conditional operations carry the concurrency guarantees: inserts are
// no-ops on conflict and the user-ID update only applies while the stored
// value is still null.
type CurationStore interface {
	GetEpoch(ctx context.Context, epochID string) (*models.Epoch, error)
	GetUncuratedEvents(ctx context.Context, epochID string) ([]UncuratedEvent, error)
	InsertCurationDoNothing(ctx context.Context, c *models.Curation) error
	UpdateCurationUserID(ctx context.Context, epochID, eventID, userID string) (bool, error)
}

// IdentityResolver maps platform user IDs to internal user IDs in one batch.
// Missing mappings are simply absent from the result.
type IdentityResolver interface {
	ResolveBatch(ctx context.Context, platform string, platformUserIDs []string) (map[string]string, error)
}

// CurationResult reports what one resolution pass did.
type CurationResult struct {
	TotalEvents  int `json:"totalEvents"`
	NewCurations int `json:"newCurations"`
	Resolved     int `json:"resolved"`
	Unresolved   int `json:"unresolved"`
}

// Resolver turns raw events into curation rows without ever clobbering an
// admin's edits.
type Resolver struct {
	store    CurationStore
	identity IdentityResolver
}

// NewResolver creates a curation resolver.
func NewResolver(store CurationStore, identity IdentityResolver) *Resolver {
	return &Resolver{store: store, identity: identity}
}

// CurateAndResolve creates curation rows for new events and fills in user
// IDs for rows that are still unresolved.
//
// A row whose user ID is already set is never touched, even if the resolver
// would now map it differently: the conditional update in the store only
// applies while the stored user is null, so a manually corrected row
// survives any later pass.
func (r *Resolver) CurateAndResolve(ctx context.Context, epochID string) (*CurationResult, error) {
	ep, err := r.store.GetEpoch(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load epoch %s: %w", epochID, err)
	}
	if ep == nil {
		return nil, types.NewErrorf(types.KindNotFound, types.CodeEpochNotFound, "epoch %s not found", epochID)
	}

	events, err := r.store.GetUncuratedEvents(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to load uncurated events: %w", err)
	}

	result := &CurationResult{TotalEvents: len(events)}
	if len(events) == 0 {
		return result, nil
	}

	resolvedIDs, err := r.resolveIdentities(ctx, events)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, ev := range events {
		userID, ok := resolvedIDs[identityKey(ev.Source, ev.PlatformUserID)]

		if !ev.HasCuration {
			cur := &models.Curation{
				EpochID:   epochID,
				EventID:   ev.EventID,
				Included:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if ok {
				cur.UserID = &userID
			}
			if err := r.store.InsertCurationDoNothing(ctx, cur); err != nil {
				return nil, fmt.Errorf("failed to insert curation for event %s: %w", ev.EventID, err)
			}
			result.NewCurations++
		} else if ok {
			if _, err := r.store.UpdateCurationUserID(ctx, epochID, ev.EventID, userID); err != nil {
				return nil, fmt.Errorf("failed to update curation for event %s: %w", ev.EventID, err)
			}
		}

		if ok {
			result.Resolved++
		} else {
			result.Unresolved++
		}
	}

	return result, nil
}

// resolveIdentities batches the platform lookups, one call per source.
func (r *Resolver) resolveIdentities(ctx context.Context, events []UncuratedEvent) (map[string]string, error) {
	bySource := make(map[string][]string)
	seen := make(map[string]bool)
	for _, ev := range events {
		key := identityKey(ev.Source, ev.PlatformUserID)
		if !seen[key] {
			seen[key] = true
			bySource[ev.Source] = append(bySource[ev.Source], ev.PlatformUserID)
		}
	}

	resolved := make(map[string]string)
	for src, platformIDs := range bySource {
		mapping, err := r.identity.ResolveBatch(ctx, src, platformIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve identities for source %s: %w", src, err)
		}
		for platformID, userID := range mapping {
			resolved[identityKey(src, platformID)] = userID
		}
	}
	return resolved, nil
}

func identityKey(source, platformUserID string) string {
	return source + "\x00" + platformUserID
}
