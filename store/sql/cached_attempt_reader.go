package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-reveal/core"
)

const attemptCacheKeyPrefix = "reveal::attempt::v1"

// CachedAttemptReader serves Get through a read-through cache. Attempts
// are immutable once recorded, so entries leave the cache by TTL or when a
// Prune through this reader deletes rows. List always reads the base reader.
type CachedAttemptReader struct {
	base  core.AttemptReader
	cache repositorycache.CacheService
}

func NewCachedAttemptReader(base core.AttemptReader, cacheService repositorycache.CacheService) (*CachedAttemptReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base attempt reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: attempt cache service is required")
	}
	return &CachedAttemptReader{base: base, cache: cacheService}, nil
}

// AttemptCacheKey returns reveal::attempt::v1::<id> with the id URL-path
// escaped.
func AttemptCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: attempt id is required")
	}
	return attemptCacheKeyPrefix + "::" + url.PathEscape(id), nil
}

func (r *CachedAttemptReader) Get(ctx context.Context, id string) (core.Attempt, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.Attempt{}, fmt.Errorf("sqlstore: cached attempt reader is not configured")
	}
	id = strings.TrimSpace(id)
	cacheKey, err := AttemptCacheKey(id)
	if err != nil {
		return core.Attempt{}, err
	}
	attempt, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.Attempt, error) {
		return r.base.Get(ctx, id)
	})
	if err != nil {
		return core.Attempt{}, err
	}
	return cloneAttempt(attempt), nil
}

func (r *CachedAttemptReader) List(ctx context.Context, filter core.AttemptFilter) (core.AttemptPage, error) {
	if r == nil || r.base == nil {
		return core.AttemptPage{}, fmt.Errorf("sqlstore: cached attempt reader is not configured")
	}
	return r.base.List(ctx, filter)
}

// Prune runs the base pruner and drops every cached attempt when rows were
// deleted, so Get stops serving pruned attempts.
func (r *CachedAttemptReader) Prune(ctx context.Context, policy core.RetentionPolicy) (int, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached attempt reader is not configured")
	}
	pruner, ok := r.base.(core.AttemptPruner)
	if !ok {
		return 0, fmt.Errorf("sqlstore: base attempt reader does not prune")
	}
	deleted, err := pruner.Prune(ctx, policy)
	if deleted > 0 {
		if cacheErr := r.cache.DeleteByPrefix(ctx, attemptCacheKeyPrefix+"::"); cacheErr != nil {
			return deleted, fmt.Errorf("sqlstore: invalidate attempt cache: %w", cacheErr)
		}
	}
	return deleted, err
}

func cloneAttempt(attempt core.Attempt) core.Attempt {
	cloned := attempt
	cloned.IdentifierKinds = append([]string(nil), attempt.IdentifierKinds...)
	return cloned
}

var (
	_ core.AttemptReader = (*CachedAttemptReader)(nil)
	_ core.AttemptPruner = (*CachedAttemptReader)(nil)
)
