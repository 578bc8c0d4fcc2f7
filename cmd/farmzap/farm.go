package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"farmzap/internal/config"
	"farmzap/internal/farm"
	"farmzap/internal/model"
	"farmzap/internal/sizing"
	"farmzap/internal/storage"
	"farmzap/internal/storage/postgres"
	"farmzap/internal/txflow"
)

// pool is the resolved chef/pair context shared by preview and deposit.
type pool struct {
	chef    common.Address
	pair    common.Address
	actions *farm.Actions
	mode    sizing.Mode
	paired  string
}

func loadFarm(cmd *cobra.Command) (config.FarmConfig, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFarm(cfgFile, cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func (a *app) resolvePool(ctx context.Context, cfg config.FarmConfig) (pool, error) {
	var p pool
	var err error
	if p.chef, err = parseAddress(cfg.Chef, "chef"); err != nil {
		return p, err
	}
	if p.pair, err = parseAddress(cfg.Pair, "pair"); err != nil {
		return p, err
	}

	var eth farm.ETHBalanceReader
	if a.session.Account != (common.Address{}) {
		eth = a.chain
	}
	p.actions = farm.NewActions(p.chef, a.chain, eth, a.session, a.logger)

	policy, err := sizing.NewPolicy(cfg.DenySymbols, cfg.DenyPairs)
	if err != nil {
		return p, err
	}
	symbol := ""
	if meta, err := a.reserves.PairedToken(ctx, p.pair); err == nil {
		symbol = meta.Symbol
		p.paired = meta.Label()
	} else {
		a.logger.Warn("paired token unavailable", zap.String("pair", p.pair.Hex()), zap.Error(err))
	}
	p.mode = policy.Mode(symbol, p.pair)
	return p, nil
}

func (p pool) zapParams(cfg config.FarmConfig, reserves farm.ReserveReader) farm.ZapParams {
	return farm.ZapParams{
		PID:         cfg.PID,
		Pair:        p.pair,
		Amount:      cfg.Amount,
		SlippageBps: cfg.SlippageBps,
		Mode:        p.mode,
		Reserves:    reserves,
	}
}

func runPreview(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger, false)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolvePool(ctx, cfg)
	if err != nil {
		return err
	}
	calc, err := p.actions.PreviewZap(ctx, p.zapParams(cfg, a.reserves))
	if err != nil {
		return err
	}

	return writeZapPreview(os.Stdout, p.paired, string(p.mode), calc)
}

func writeZapPreview(out io.Writer, paired, mode string, calc model.ZapCalculation) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "paired token\t%s\n", paired)
	fmt.Fprintf(w, "mode\t%s\n", mode)
	fmt.Fprintf(w, "valid\t%t\n", calc.IsValid)
	if calc.Error != "" {
		fmt.Fprintf(w, "error\t%s\n", calc.Error)
	}
	fmt.Fprintf(w, "amount\t%s ETH\n", sizing.FormatEther(calc.Amount))
	fmt.Fprintf(w, "eth to swap\t%s ETH\n", sizing.FormatEther(calc.EthToSwap))
	fmt.Fprintf(w, "eth to pair\t%s ETH\n", sizing.FormatEther(calc.EthToPair))
	fmt.Fprintf(w, "token out\t%s\n", bigString(calc.TokenOut))
	fmt.Fprintf(w, "estimated lp\t%s\n", sizing.FormatEther(calc.EstimatedLiquidity))
	fmt.Fprintf(w, "minimum lp\t%s\n", sizing.FormatEther(calc.MinLiquidity))
	fmt.Fprintf(w, "max zap\t%s ETH\n", sizing.FormatEther(calc.MaxEthForZap))
	if calc.MaxDeposit != nil {
		fmt.Fprintf(w, "max deposit\t%s ETH\n", sizing.FormatEther(calc.MaxDeposit))
		if calc.Amount != nil && calc.Amount.Cmp(calc.MaxDeposit) > 0 {
			fmt.Fprintf(w, "suggested amount\t%s ETH\n", sizing.FormatEther(sizing.Clamp(calc.Amount, calc.MaxDeposit)))
		}
	}
	return w.Flush()
}

func runDeposit(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger, true)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolvePool(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.Zap {
		if p.mode == sizing.ModeLPOnly {
			return fmt.Errorf("%w: deposit the LP token instead", farm.ErrZapDisabled)
		}
		return a.submitDeposit(ctx, "zap", p.pair, p.actions.Zap(p.zapParams(cfg, a.reserves)))
	}

	lpToken := p.pair
	if cfg.LPToken != "" {
		if lpToken, err = parseAddress(cfg.LPToken, "lp token"); err != nil {
			return err
		}
	}
	return a.submitDeposit(ctx, "deposit", p.pair, p.actions.Deposit(cfg.PID, lpToken, cfg.Amount))
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return runChefAction(cmd, "migrate", func(actions *farm.Actions, cfg config.FarmConfig) txflow.Request {
		return actions.Migrate(cfg.PID, cfg.TargetPID, cfg.Amount)
	})
}

func runUnstake(cmd *cobra.Command, _ []string) error {
	return runChefAction(cmd, "unstake", func(actions *farm.Actions, cfg config.FarmConfig) txflow.Request {
		return actions.Unstake(cfg.PID, cfg.Amount)
	})
}

func runChefAction(cmd *cobra.Command, dialog string, build func(*farm.Actions, config.FarmConfig) txflow.Request) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chef, err := parseAddress(cfg.Chef, "chef")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger, true)
	if err != nil {
		return err
	}
	defer a.close()

	actions := farm.NewActions(chef, a.chain, a.chain, a.session, logger)
	_, err = a.submit(ctx, dialog, build(actions, cfg))
	return err
}

func runTargets(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PID == "" {
		return fmt.Errorf("source chef id is required")
	}
	at, err := config.ParseTimestamp(cfg.At)
	if err != nil {
		return fmt.Errorf("parse at: %w", err)
	}
	prices, err := parsePrices(cfg.Prices)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openStreams(ctx, cfg.Streams, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer closeSource()

	streams, err := source.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}
	var current *model.IncentiveStream
	for i := range streams {
		if model.SameID(streams[i].ChefID, cfg.PID) {
			current = &streams[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("chef id %s not found among %d streams", cfg.PID, len(streams))
	}

	estimator := farm.RewardRateEstimator{}
	if len(prices) > 0 {
		estimator.Prices = prices
	}
	ranker := farm.NewRanker(estimator, cfg.RankLimit, logger)
	if !at.IsZero() {
		ranker.SetClock(func() time.Time { return at })
	}

	var selection farm.Selection
	ranked, err := ranker.Rank(ctx, *current, streams, func(update []farm.Candidate) {
		logger.Debug("targets updated", zap.Int("candidates", len(update)), zap.String("top", topChef(update)))
	})
	if err != nil {
		return err
	}
	if len(ranked) > 0 {
		selection.Select(ranked[0].Stream.ChefID)
	}
	selected := selection.Reconcile(ranked)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "chef\tyield\tshares\tends\t")
	for _, c := range ranked {
		marker := ""
		if model.SameID(c.Stream.ChefID, selected) {
			marker = "*"
		}
		yield := "unknown"
		if c.Yield.Valid {
			yield = c.Yield.Decimal.StringFixed(4)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Stream.ChefID,
			yield,
			bigString(c.Stream.TotalShares),
			time.Unix(c.Stream.EndTime, 0).UTC().Format(time.RFC3339),
			marker,
		)
	}
	return w.Flush()
}

func openStreams(ctx context.Context, path, dsn string) (storage.StreamSource, func(), error) {
	if path != "" {
		return storage.NewJsonlStreams(path), func() {}, nil
	}
	if dsn == "" {
		return nil, nil, fmt.Errorf("streams file or pg dsn is required")
	}
	store, err := openStore(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openJsonlStreams(ctx context.Context, path string) ([]model.IncentiveStream, error) {
	streams, err := storage.NewJsonlStreams(path).ListStreams(ctx)
	if err != nil {
		return nil, fmt.Errorf("read streams: %w", err)
	}
	return streams, nil
}

func openStore(ctx context.Context, dsn string) (*postgres.Store, error) {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func parsePrices(raw map[string]string) (farm.StaticPrices, error) {
	prices := make(farm.StaticPrices, len(raw))
	for asset, value := range raw {
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", asset, err)
		}
		prices[asset] = price
	}
	return prices, nil
}

func topChef(candidates []farm.Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0].Stream.ChefID
}
