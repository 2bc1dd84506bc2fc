package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/storage"
	"github.com/token-gate/internal/types"
)

// CachedOracle fronts a BalanceOracle with a Redis cache. Chain reads
// are only a freshness hint for operators, so a short TTL keeps RPC
// traffic bounded without async invalidation.
type CachedOracle struct {
	next   BalanceOracle
	cache  *storage.RedisCache
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedOracle wraps next with a read-through cache.
func NewCachedOracle(next BalanceOracle, cache *storage.RedisCache, ttl time.Duration, logger *logging.Logger) *CachedOracle {
	return &CachedOracle{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// BalanceOf returns the cached balance when present and fresh,
// otherwise reads through to the chain oracle. Cache failures degrade
// to direct reads.
func (c *CachedOracle) BalanceOf(ctx context.Context, address string) (*types.WalletBalance, error) {
	key := cacheKey(address)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithField("address", address).WithError(err).Warn("Balance cache read failed")
	} else if found {
		var balance types.WalletBalance
		if err := json.Unmarshal([]byte(cached), &balance); err == nil {
			return &balance, nil
		}
		c.logger.WithField("address", address).Warn("Discarding corrupt balance cache entry")
	}

	balance, err := c.next.BalanceOf(ctx, address)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(balance); err == nil {
		if err := c.cache.Set(ctx, key, string(encoded), c.ttl); err != nil {
			c.logger.WithField("address", address).WithError(err).Warn("Balance cache write failed")
		}
	}

	return balance, nil
}

func cacheKey(address string) string {
	return fmt.Sprintf("oracle:balance:%s", strings.ToLower(address))
}
