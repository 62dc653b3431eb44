package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"finreport/internal/cache"
	"finreport/internal/core"
)

// CachedBuilder memoizes reports per user and date range. Entries expire
// after the cache TTL; Invalidate drops a user's entries after writes.
type CachedBuilder struct {
	next  Builder
	cache cache.Cache[*Report]
}

func NewCachedBuilder(next Builder, c cache.Cache[*Report]) *CachedBuilder {
	return &CachedBuilder{next: next, cache: c}
}

func (b *CachedBuilder) BuildReport(ctx context.Context, userID string, from, to time.Time) (*Report, error) {
	period, err := core.NewPeriod(from, to)
	if err != nil {
		return b.next.BuildReport(ctx, userID, from, to)
	}
	key := cacheKey(userID, period)
	if rep, ok := b.cache.Get(key); ok {
		return rep, nil
	}
	rep, err := b.next.BuildReport(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	b.cache.Set(key, rep)
	return rep, nil
}

// Invalidate removes every cached report of userID.
func (b *CachedBuilder) Invalidate(userID string) int {
	return b.cache.DeletePrefix(userPrefix(userID))
}

func cacheKey(userID string, p core.Period) string {
	sum := sha256.Sum256([]byte(p.From.Format(time.RFC3339Nano) + "|" + p.To.Format(time.RFC3339Nano)))
	return userPrefix(userID) + hex.EncodeToString(sum[:8])
}

func userPrefix(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:8]) + "|"
}
