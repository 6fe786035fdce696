package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/types"
)

// GrantScopeWildcard authorizes execution of every graph.
const GrantScopeWildcard = "graph:execute:*"

// GrantScopeForGraph builds the scope string authorizing one graph.
func GrantScopeForGraph(graphID string) string {
	return "graph:execute:" + graphID
}

// GrantStore is the persistence surface for execution grants.
type GrantStore interface {
	CreateGrant(ctx context.Context, g *models.ExecutionGrant) error
	GetGrant(ctx context.Context, grantID string) (*models.ExecutionGrant, error)
	// RevokeGrant stamps revokedAt, preserving the row for audit history.
	RevokeGrant(ctx context.Context, grantID string) error
	// DeleteGrant removes the row outright. Only used to clean up a grant
	// whose schedule was never fully created.
	DeleteGrant(ctx context.Context, grantID string) error
}

// GrantValidator authorizes scheduled runs against scope-limited grants. A
// grant is checked before every scheduled execution; a user session is
// never an acceptable substitute.
type GrantValidator struct {
	store GrantStore
}

// NewGrantValidator creates a validator over the grant store.
func NewGrantValidator(store GrantStore) *GrantValidator {
	return &GrantValidator{store: store}
}

// ValidateForGraph checks that the grant exists, is not expired or revoked,
// and carries a scope covering graphID (exact or wildcard). Each failure
// mode surfaces as a distinct error so callers can tell "can't" from
// "won't".
func (v *GrantValidator) ValidateForGraph(ctx context.Context, grantID, graphID string) (*models.ExecutionGrant, error) {
	grant, err := v.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grant %s: %w", grantID, err)
	}
	if grant == nil {
		return nil, types.NewErrorf(types.KindNotFound, types.CodeGrantNotFound,
			"execution grant %s not found", grantID)
	}

	if grant.ExpiresAt != nil && time.Now().After(*grant.ExpiresAt) {
		return nil, types.NewErrorf(types.KindAuthorization, types.CodeGrantExpired,
			"execution grant %s expired at %s", grantID, grant.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if grant.RevokedAt != nil {
		return nil, types.NewErrorf(types.KindAuthorization, types.CodeGrantRevoked,
			"execution grant %s was revoked at %s", grantID, grant.RevokedAt.UTC().Format(time.RFC3339))
	}

	want := GrantScopeForGraph(graphID)
	for _, scope := range grant.Scopes {
		if scope == want || scope == GrantScopeWildcard {
			return grant, nil
		}
	}

	return nil, types.NewErrorf(types.KindAuthorization, types.CodeGrantScope,
		"execution grant %s does not cover graph %s", grantID, graphID).
		WithDetail("scopes", grant.Scopes)
}
