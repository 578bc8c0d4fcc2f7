package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"farmzap/internal/model"
)

const (
	DefaultPrefix = "farmzap:reserves:"
	DefaultTTL    = 30 * time.Second
)

// ReserveCache keeps pair snapshots in Redis so several processes share one
// chain read per staleness window.
type ReserveCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewReserveCache(client redis.Cmdable, prefix string, ttl time.Duration) (*ReserveCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ReserveCache{client: client, prefix: prefix, ttl: ttl}, nil
}

// Get returns the cached snapshot for pair. A miss is not an error.
func (c *ReserveCache) Get(ctx context.Context, pair common.Address) (model.PoolReserves, bool, error) {
	val, err := c.client.Get(ctx, c.key(pair)).Result()
	if err == redis.Nil {
		return model.PoolReserves{}, false, nil
	}
	if err != nil {
		return model.PoolReserves{}, false, fmt.Errorf("get reserves: %w", err)
	}

	var reserves model.PoolReserves
	if err := json.Unmarshal([]byte(val), &reserves); err != nil {
		return model.PoolReserves{}, false, fmt.Errorf("unmarshal reserves: %w", err)
	}
	return reserves, true, nil
}

func (c *ReserveCache) Set(ctx context.Context, reserves model.PoolReserves) error {
	if !common.IsHexAddress(reserves.Pair) {
		return fmt.Errorf("invalid pair address: %q", reserves.Pair)
	}
	b, err := json.Marshal(reserves)
	if err != nil {
		return fmt.Errorf("marshal reserves: %w", err)
	}
	if err := c.client.Set(ctx, c.key(common.HexToAddress(reserves.Pair)), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("set reserves: %w", err)
	}
	return nil
}

func (c *ReserveCache) Delete(ctx context.Context, pair common.Address) error {
	if err := c.client.Del(ctx, c.key(pair)).Err(); err != nil {
		return fmt.Errorf("delete reserves: %w", err)
	}
	return nil
}

func (c *ReserveCache) key(pair common.Address) string {
	return c.prefix + strings.ToLower(pair.Hex())
}
