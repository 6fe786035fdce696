// Package identity resolves external platform accounts to internal users.
package identity

import (
	"context"
	"fmt"
	"time"
)

// Repository is the storage lookup for verified platform identities.
type Repository interface {
	GetUserIDsByPlatformIDs(ctx context.Context, platform string, platformUserIDs []string) (map[string]string, error)
}

// Cache is the subset of the redis cache the resolver uses. Get must return
// an error on a missing key.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedResolver resolves platform user IDs through a read-through cache.
// Only positive mappings are cached: an account verified after a miss is
// picked up on the next pass.
type CachedResolver struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewCachedResolver creates a resolver over the repository and cache. A nil
// cache disables caching.
func NewCachedResolver(repo Repository, cache Cache, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedResolver{repo: repo, cache: cache, ttl: ttl}
}

// ResolveBatch maps platform user IDs to internal user IDs. IDs with no
// verified mapping are absent from the result.
func (r *CachedResolver) ResolveBatch(ctx context.Context, platform string, platformUserIDs []string) (map[string]string, error) {
	resolved := make(map[string]string, len(platformUserIDs))
	var misses []string

	for _, pid := range platformUserIDs {
		if r.cache != nil {
			if userID, err := r.cache.Get(ctx, cacheKey(platform, pid)); err == nil && userID != "" {
				resolved[pid] = userID
				continue
			}
		}
		misses = append(misses, pid)
	}

	if len(misses) == 0 {
		return resolved, nil
	}

	fromRepo, err := r.repo.GetUserIDsByPlatformIDs(ctx, platform, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve platform identities: %w", err)
	}

	for pid, userID := range fromRepo {
		resolved[pid] = userID
		if r.cache != nil {
			// Cache write failures only cost a future lookup.
			_ = r.cache.Set(ctx, cacheKey(platform, pid), userID, r.ttl)
		}
	}

	return resolved, nil
}

func cacheKey(platform, platformUserID string) string {
	return fmt.Sprintf("identity:%s:%s", platform, platformUserID)
}
