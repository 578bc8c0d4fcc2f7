package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"farmzap/internal/config"
	"farmzap/internal/quote"
	"farmzap/internal/route"
	"farmzap/internal/sizing"
)

func runJoin(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadJoin(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := joinParams(cfg)
	if err != nil {
		return err
	}
	router, err := parseAddress(cfg.Router, "router")
	if err != nil {
		return err
	}
	quoter, err := quote.NewClient(quote.Config{
		BaseURL:   cfg.QuoteURL,
		APIKey:    cfg.QuoteAPIKey,
		Timeout:   cfg.QuoteTimeout,
		RateLimit: cfg.QuoteRate,
	})
	if err != nil {
		return err
	}

	previewOnly, _ := cmd.Flags().GetBool("preview")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config, logger, !previewOnly)
	if err != nil {
		return err
	}
	defer a.close()

	planner := route.NewJoinPlanner(quoter, router, a.chain, a.session, logger)

	best, err := planner.Preview(ctx, params)
	if err != nil {
		if errors.Is(err, route.ErrNoRoute) {
			logger.Warn("no join route", zap.Error(err))
		}
		return err
	}
	fmt.Fprintf(os.Stderr, "route: %d calls, %d approvals, out %s\n",
		len(best.Calls), len(best.Approvals), best.AmountOut.String())
	fmt.Fprintf(os.Stderr, "payment after slippage: %s\n",
		sizing.ApplySlippage(best.AmountOut, params.SlippageBps).String())
	if previewOnly {
		return nil
	}

	_, err = a.submit(ctx, "join", planner.Request(params))
	return err
}

func joinParams(cfg config.JoinConfig) (route.JoinParams, error) {
	params := route.JoinParams{
		Amount:      cfg.Amount,
		Decimals:    cfg.Decimals,
		SlippageBps: cfg.SlippageBps,
		MinShares:   big.NewInt(0),
	}
	var err error
	if params.DAO, err = parseAddress(cfg.DAO, "dao"); err != nil {
		return params, err
	}
	if params.ShareToken, err = parseAddress(cfg.ShareToken, "share token"); err != nil {
		return params, err
	}
	if params.SellToken, err = parseAddress(cfg.SellToken, "sell token"); err != nil {
		return params, err
	}
	if params.BuyToken, err = parseAddress(cfg.BuyToken, "buy token"); err != nil {
		return params, err
	}
	if raw := strings.TrimSpace(cfg.MinShares); raw != "" {
		minShares, ok := new(big.Int).SetString(raw, 10)
		if !ok || minShares.Sign() < 0 {
			return params, fmt.Errorf("invalid min shares: %q", cfg.MinShares)
		}
		params.MinShares = minShares
	}
	return params, nil
}

func runSyncStreams(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Streams == "" {
		return fmt.Errorf("streams file is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streams, err := openJsonlStreams(ctx, cfg.Streams)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertStreams(ctx, streams); err != nil {
		return fmt.Errorf("upsert streams: %w", err)
	}
	logger.Info("streams synced", zap.String("in", cfg.Streams), zap.Int("streams", len(streams)))
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadFarm(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.LastRun(ctx)
	if err != nil {
		return fmt.Errorf("load last run: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, record := range records {
		line := fmt.Sprintf("%s %s %s %s", record.CreatedAt.Format(time.RFC3339), record.Dialog, record.Kind, record.Phase)
		if record.TxHash != "" {
			line += " " + record.TxHash
		}
		if record.Message != "" {
			line += " " + record.Message
		}
		fmt.Println(line)
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "-"
	}
	return v.String()
}
