package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/token-gate/internal/logging"
	"github.com/token-gate/internal/storage"
	"github.com/token-gate/internal/types"
)

type stubOracle struct {
	calls   int
	balance *types.WalletBalance
	err     error
}

func (s *stubOracle) BalanceOf(ctx context.Context, address string) (*types.WalletBalance, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.balance, nil
}

func newCacheFixture(t *testing.T, ttl time.Duration) (*CachedOracle, *stubOracle, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stub := &stubOracle{
		balance: &types.WalletBalance{
			Address:   "0xACb0A09414CEA1C879c67bB7A877E4e19480f022",
			ChainID:   56,
			Native:    decimal.RequireFromString("1.25"),
			FetchedAt: time.Now().UTC(),
		},
	}

	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	cached := NewCachedOracle(stub, storage.NewRedisCacheFromClient(client), ttl, logger)
	return cached, stub, mr
}

func TestCachedOracleReadThrough(t *testing.T) {
	cached, stub, _ := newCacheFixture(t, 15*time.Second)
	ctx := context.Background()

	first, err := cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.True(t, first.Native.Equal(decimal.RequireFromString("1.25")))

	// Second read within the TTL is served from the cache.
	second, err := cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.True(t, second.Native.Equal(first.Native))
}

func TestCachedOracleExpiry(t *testing.T) {
	cached, stub, mr := newCacheFixture(t, 15*time.Second)
	ctx := context.Background()

	_, err := cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)

	mr.FastForward(16 * time.Second)

	_, err = cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls, "expired entry should hit the oracle again")
}

func TestCachedOracleKeyIsCaseInsensitive(t *testing.T) {
	cached, stub, _ := newCacheFixture(t, 15*time.Second)
	ctx := context.Background()

	_, err := cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)
	_, err = cached.BalanceOf(ctx, "0xacb0a09414cea1c879c67bb7a877e4e19480f022")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls, "same address in different case should share one entry")
}

func TestCachedOracleDiscardsCorruptEntry(t *testing.T) {
	cached, stub, mr := newCacheFixture(t, 15*time.Second)
	ctx := context.Background()

	require.NoError(t, mr.Set(cacheKey("0xACb0A09414CEA1C879c67bB7A877E4e19480f022"), "not json"))

	balance, err := cached.BalanceOf(ctx, "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, int64(56), balance.ChainID)
}

func TestCachedOraclePropagatesUpstreamError(t *testing.T) {
	cached, stub, _ := newCacheFixture(t, 15*time.Second)
	stub.err = &types.ServiceError{Code: types.CodeUpstreamUnavailable, Message: "all RPC endpoints failed"}

	_, err := cached.BalanceOf(context.Background(), "0xACb0A09414CEA1C879c67bB7A877E4e19480f022")
	assert.True(t, types.IsCode(err, types.CodeUpstreamUnavailable))
}
