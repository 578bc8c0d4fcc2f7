package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"farmzap/internal/cache"
	"farmzap/internal/chain"
	"farmzap/internal/config"
	"farmzap/internal/dex"
	"farmzap/internal/model"
	"farmzap/internal/storage"
	"farmzap/internal/txflow"
	"farmzap/internal/wallet"
)

// app holds the connections one command needs. close releases them in
// reverse order.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	chain    *chain.Client
	session  model.Session
	reserves *dex.ReserveSource
	wallet   txflow.Wallet
	recorder txflow.Recorder
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, signing bool) (*app, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.WETH) {
		return nil, fmt.Errorf("invalid weth address: %s", cfg.WETH)
	}

	a := &app{cfg: cfg, logger: logger}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	a.chain = chainClient
	a.closers = append(a.closers, chainClient.Close)

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	a.session.ChainID = chainID
	if cfg.Account != "" {
		if !common.IsHexAddress(cfg.Account) {
			a.close()
			return nil, fmt.Errorf("invalid account address: %s", cfg.Account)
		}
		a.session.Account = common.HexToAddress(cfg.Account)
	}

	var snapshots dex.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, reading reserves from chain only", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			reserveCache, err := cache.NewReserveCache(rdb, "", 2*cfg.ReserveMaxAge)
			if err != nil {
				a.close()
				return nil, err
			}
			snapshots = reserveCache
		}
	}

	a.reserves = dex.NewReserveSource(chainClient, dex.ReserveConfig{
		WETH:     common.HexToAddress(cfg.WETH),
		FeeBps:   cfg.FeeBps,
		MaxAge:   cfg.ReserveMaxAge,
		MaxTries: uint(cfg.MaxRetries),
	}, snapshots, logger)

	if signing {
		if err := a.connectWallet(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) connectWallet(ctx context.Context) error {
	if a.cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required to send transactions")
	}
	keyed, err := wallet.NewKeyedWallet(a.chain, a.cfg.PrivateKey, a.session.ChainID, a.logger)
	if err != nil {
		return err
	}
	if a.cfg.Account != "" && a.session.Account != keyed.Address() {
		return fmt.Errorf("account %s does not match private key", a.session.Account.Hex())
	}
	a.session.Account = keyed.Address()

	a.wallet = keyed
	if !a.cfg.AssumeYes {
		a.wallet = wallet.NewConfirmingWallet(keyed, os.Stdin, os.Stderr)
	}

	var journal storage.Journal
	if a.cfg.PGDSN != "" {
		store, err := openStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		journal = store
	} else if a.cfg.Journal != "" {
		journal = storage.NewJsonlStorage(a.cfg.Journal)
	}
	if journal != nil {
		a.recorder = storage.NewJournalRecorder(journal, a.logger)
	}
	return nil
}

// submit runs req through a fresh lifecycle and prints each transition. A
// user rejection is not an error; the returned status is then idle.
func (a *app) submit(ctx context.Context, dialog string, req txflow.Request) (txflow.Status, error) {
	lifecycle := txflow.NewLifecycle(txflow.Config{Dialog: dialog}, a.wallet, a.session, a.recorder, a.logger)
	defer lifecycle.Close()

	lifecycle.Subscribe(func(status txflow.Status) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", dialog, status)
	})

	status, err := lifecycle.Submit(ctx, req)
	if err != nil {
		if txflow.IsUserRejection(err) {
			fmt.Fprintln(os.Stderr, "cancelled")
			return status, nil
		}
		return status, err
	}
	fmt.Printf("%s %s\n", status.Phase(), status.TxHash().Hex())
	return status, nil
}

// submitDeposit submits req and, once it is mined, drops the cached reserves
// of pair.
func (a *app) submitDeposit(ctx context.Context, dialog string, pair common.Address, req txflow.Request) error {
	status, err := a.submit(ctx, dialog, req)
	if status.Phase() == txflow.PhaseSuccess {
		a.reserves.Invalidate(context.WithoutCancel(ctx), pair)
	}
	return err
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func parseAddress(value, name string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}
