package dex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmzap/internal/chain"
	"farmzap/internal/model"
)

const (
	DefaultMaxAge    = 15 * time.Second
	DefaultFeeBps    = 30
	defaultReadTries = 3
)

// SnapshotCache stores reserve snapshots shared between processes.
type SnapshotCache interface {
	Get(ctx context.Context, pair common.Address) (model.PoolReserves, bool, error)
	Set(ctx context.Context, reserves model.PoolReserves) error
}

// ReserveConfig configures a ReserveSource.
type ReserveConfig struct {
	WETH     common.Address
	FeeBps   uint16
	MaxAge   time.Duration
	MaxTries uint
}

// ReserveSource is a pull-based reserve reader. A snapshot younger than
// MaxAge is served from memory or the shared cache, otherwise it is re-read
// from chain.
type ReserveSource struct {
	caller chain.Caller
	cfg    ReserveConfig
	cache  SnapshotCache
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	local map[common.Address]model.PoolReserves
	metas *TokenMetaCache
}

func NewReserveSource(caller chain.Caller, cfg ReserveConfig, cache SnapshotCache, logger *zap.Logger) *ReserveSource {
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaultReadTries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReserveSource{
		caller: caller,
		cfg:    cfg,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		local:  make(map[common.Address]model.PoolReserves),
		metas:  NewTokenMetaCache(),
	}
}

// Get returns a snapshot of pair no older than the configured bound.
func (s *ReserveSource) Get(ctx context.Context, pair common.Address) (model.PoolReserves, error) {
	now := s.now()

	s.mu.RLock()
	snap, ok := s.local[pair]
	s.mu.RUnlock()
	if ok && snap.Age(now) <= s.cfg.MaxAge {
		return snap, nil
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, pair)
		if err != nil {
			s.logger.Warn("reserve cache read failed", zap.String("pair", pair.Hex()), zap.Error(err))
		} else if found && cached.Age(now) <= s.cfg.MaxAge {
			s.remember(pair, cached)
			return cached, nil
		}
	}

	fresh, err := s.Refresh(ctx, pair)
	if err != nil {
		return model.PoolReserves{}, err
	}
	return fresh, nil
}

// Refresh reads pair from chain regardless of cached state.
func (s *ReserveSource) Refresh(ctx context.Context, pair common.Address) (model.PoolReserves, error) {
	notify := func(err error, wait time.Duration) {
		s.logger.Info("retrying reserve read", zap.String("pair", pair.Hex()), zap.Error(err), zap.Duration("backoff", wait))
	}
	operation := func() (model.PoolReserves, error) {
		reserves, err := FetchReserves(ctx, s.caller, pair, s.cfg.WETH, s.cfg.FeeBps)
		if errors.Is(err, ErrNoWETHSide) {
			return reserves, backoff.Permanent(err)
		}
		return reserves, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	reserves, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.cfg.MaxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("fetch reserves %s: %w", pair.Hex(), err)
	}

	if block, err := s.blockNumber(ctx); err == nil {
		reserves.BlockNumber = block
	}
	reserves.FetchedAt = s.now().UTC()
	s.remember(pair, reserves)

	if s.cache != nil {
		if err := s.cache.Set(ctx, reserves); err != nil {
			s.logger.Warn("reserve cache write failed", zap.String("pair", pair.Hex()), zap.Error(err))
		}
	}
	return reserves, nil
}

// PairedToken returns the metadata of pair's non-weth token. Metadata never
// changes, so it is cached for the life of the source.
func (s *ReserveSource) PairedToken(ctx context.Context, pair common.Address) (model.TokenMeta, error) {
	reserves, err := s.Get(ctx, pair)
	if err != nil {
		return model.TokenMeta{}, err
	}
	if !common.IsHexAddress(reserves.Token) {
		return model.TokenMeta{}, fmt.Errorf("pair %s has no paired token", pair.Hex())
	}
	token := common.HexToAddress(reserves.Token)
	if meta, ok := s.metas.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, s.caller, token, s.logger)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("fetch token meta %s: %w", token.Hex(), err)
	}
	s.metas.Set(token, meta)
	return meta, nil
}

// Invalidate drops every cached snapshot of pair, including the shared one
// when the cache supports deletion.
func (s *ReserveSource) Invalidate(ctx context.Context, pair common.Address) {
	s.mu.Lock()
	delete(s.local, pair)
	s.mu.Unlock()

	deleter, ok := s.cache.(interface {
		Delete(ctx context.Context, pair common.Address) error
	})
	if !ok {
		return
	}
	if err := deleter.Delete(ctx, pair); err != nil {
		s.logger.Warn("reserve cache delete failed", zap.String("pair", pair.Hex()), zap.Error(err))
	}
}

func (s *ReserveSource) remember(pair common.Address, reserves model.PoolReserves) {
	s.mu.Lock()
	s.local[pair] = reserves
	s.mu.Unlock()
}

func (s *ReserveSource) blockNumber(ctx context.Context) (uint64, error) {
	reader, ok := s.caller.(interface {
		LatestBlockNumber(ctx context.Context) (uint64, error)
	})
	if !ok {
		return 0, fmt.Errorf("caller has no block reader")
	}
	return reader.LatestBlockNumber(ctx)
}
