package cache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/model"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func TestNewReserveCacheRequiresClient(t *testing.T) {
	_, err := NewReserveCache(nil, "", 0)
	assert.Error(t, err)
}

func TestReserveCacheKeyIsLowercase(t *testing.T) {
	c, err := NewReserveCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", 0)
	require.NoError(t, err)
	pair := common.HexToAddress("0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD")
	assert.Equal(t, "farmzap:reserves:0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", c.key(pair))
}

func TestReserveCacheRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	c, err := NewReserveCache(client, "test:reserves:", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()
	pair := common.HexToAddress("0x2222222222222222222222222222222222222222")

	_, ok, err := c.Get(ctx, pair)
	require.NoError(t, err)
	assert.False(t, ok)

	fetched := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, c.Set(ctx, model.PoolReserves{
		Pair:        pair.Hex(),
		Reserve0:    big.NewInt(100),
		Reserve1:    big.NewInt(50_000),
		FeeBps:      30,
		BlockNumber: 42,
		FetchedAt:   fetched,
	}))

	got, ok, err := c.Get(ctx, pair)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.Reserve0.Int64())
	assert.Equal(t, uint64(42), got.BlockNumber)
	assert.True(t, got.FetchedAt.Equal(fetched))
	assert.Nil(t, got.TotalSupply)

	require.NoError(t, c.Delete(ctx, pair))
	_, ok, err = c.Get(ctx, pair)
	require.NoError(t, err)
	assert.False(t, ok)
}
