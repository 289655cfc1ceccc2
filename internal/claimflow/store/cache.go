package store

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/claimflow/internal/model"
	"github.com/kart-io/claimflow/pkg/utils/json"
)

const (
	cacheKeyPrefix = "claimflow:claim:"
	cacheTTL       = time.Hour
)

// CachedStore is a read-through cache decorator over a ClaimStore. Only
// fully processed claims are cached; they are immutable from that point,
// so staleness is not possible. Cache failures degrade to the database.
type CachedStore struct {
	ClaimStore
	rdb redis.UniversalClient
}

// NewCachedStore wraps a claim store with the redis cache.
func NewCachedStore(inner ClaimStore, rdb redis.UniversalClient) *CachedStore {
	return &CachedStore{ClaimStore: inner, rdb: rdb}
}

// Get returns the cached claim when present, otherwise reads the database
// and caches the result if the claim is fully processed.
func (s *CachedStore) Get(ctx context.Context, claimID string) (*model.Claim, error) {
	key := cacheKeyPrefix + claimID

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var claim model.Claim
		if err := json.Unmarshal(raw, &claim); err == nil {
			return &claim, nil
		}
		// Undecodable entries are evicted rather than served.
		s.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		logger.Warnw("claim cache read failed", "claim_id", claimID, "error", err.Error())
	}

	claim, err := s.ClaimStore.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if claim.ProcessingComplete {
		if raw, err := json.Marshal(claim); err == nil {
			if err := s.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
				logger.Warnw("claim cache write failed", "claim_id", claimID, "error", err.Error())
			}
		}
	}
	return claim, nil
}

// MarkFailed invalidates any cached copy along with the database write.
func (s *CachedStore) MarkFailed(ctx context.Context, claimID, reason string) error {
	if err := s.ClaimStore.MarkFailed(ctx, claimID, reason); err != nil {
		return err
	}
	s.rdb.Del(ctx, cacheKeyPrefix+claimID)
	return nil
}
