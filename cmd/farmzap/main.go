package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"farmzap/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "farmzap",
		Short:        "Size, rank and submit farm deposits",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config")

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Size a single-asset ETH zap without sending anything",
		RunE:  runPreview,
	}
	addChainFlags(previewCmd, false)
	addPoolFlags(previewCmd)
	previewCmd.Flags().String("amount", "", "ETH amount to zap")
	previewCmd.Flags().Uint16("slippage-bps", 50, "slippage tolerance in basis points")
	root.AddCommand(previewCmd)

	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "Rank migration targets for a chef id",
		RunE:  runTargets,
	}
	targetsCmd.Flags().String("pid", "", "source chef id")
	targetsCmd.Flags().String("streams", "", "incentive streams JSONL (defaults to Postgres when pg-dsn is set)")
	targetsCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	targetsCmd.Flags().String("prices", "", "asset prices (comma-separated asset=price)")
	targetsCmd.Flags().Int("rank-limit", 4, "concurrent yield estimates")
	targetsCmd.Flags().String("at", "", "evaluation time (unix seconds or RFC3339), default now")
	targetsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(targetsCmd)

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Stake LP tokens, or zap ETH with --zap",
		RunE:  runDeposit,
	}
	addChainFlags(depositCmd, true)
	addPoolFlags(depositCmd)
	depositCmd.Flags().String("lp-token", "", "LP token address (defaults to the pair)")
	depositCmd.Flags().String("amount", "", "LP amount, or ETH amount with --zap")
	depositCmd.Flags().Bool("zap", false, "deposit ETH through the zap entry point")
	depositCmd.Flags().Uint16("slippage-bps", 50, "slippage tolerance in basis points")
	root.AddCommand(depositCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move staked LP to another chef id",
		RunE:  runMigrate,
	}
	addChainFlags(migrateCmd, true)
	migrateCmd.Flags().String("chef", "", "chef contract address")
	migrateCmd.Flags().String("pid", "", "source chef id")
	migrateCmd.Flags().String("target-pid", "", "target chef id")
	migrateCmd.Flags().String("amount", "", "LP amount")
	root.AddCommand(migrateCmd)

	unstakeCmd := &cobra.Command{
		Use:   "unstake",
		Short: "Withdraw staked LP",
		RunE:  runUnstake,
	}
	addChainFlags(unstakeCmd, true)
	unstakeCmd.Flags().String("chef", "", "chef contract address")
	unstakeCmd.Flags().String("pid", "", "chef id")
	unstakeCmd.Flags().String("amount", "", "LP amount")
	root.AddCommand(unstakeCmd)

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Swap into a DAO's payment token and buy shares in one transaction",
		RunE:  runJoin,
	}
	addChainFlags(joinCmd, true)
	joinCmd.Flags().String("quote-url", "", "route quote service base URL")
	joinCmd.Flags().String("quote-api-key", "", "route quote service API key")
	joinCmd.Flags().Duration("quote-timeout", 12*time.Second, "quote request timeout")
	joinCmd.Flags().Float64("quote-rate", 5, "quote requests per second")
	joinCmd.Flags().String("router", "", "multicall router address")
	joinCmd.Flags().String("dao", "", "DAO contract address")
	joinCmd.Flags().String("share-token", "", "DAO share token address")
	joinCmd.Flags().String("sell-token", "", "token to sell")
	joinCmd.Flags().String("buy-token", "", "DAO payment token")
	joinCmd.Flags().String("amount", "", "sell amount")
	joinCmd.Flags().Int32("decimals", 18, "sell token decimals")
	joinCmd.Flags().Uint16("slippage-bps", 50, "slippage tolerance in basis points")
	joinCmd.Flags().String("min-shares", "0", "minimum shares to accept (raw units)")
	joinCmd.Flags().Bool("preview", false, "quote only")
	root.AddCommand(joinCmd)

	syncCmd := &cobra.Command{
		Use:   "sync-streams",
		Short: "Import incentive streams from JSONL into Postgres",
		RunE:  runSyncStreams,
	}
	syncCmd.Flags().String("streams", "", "incentive streams JSONL")
	syncCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(syncCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the transitions of the last recorded run",
		RunE:  runHistory,
	}
	historyCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	historyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command, signing bool) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("account", "", "account to read balances for")
	cmd.Flags().String("weth", "", "wrapped ETH address")
	cmd.Flags().Uint16("fee-bps", 30, "pair swap fee in basis points")
	cmd.Flags().Duration("reserve-max-age", 15*time.Second, "maximum age of a reserve snapshot")
	cmd.Flags().Int("max-retries", 4, "maximum RPC read attempts")
	cmd.Flags().String("redis-addr", "", "Redis address for the shared reserve cache")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	if !signing {
		return
	}
	cmd.Flags().String("private-key", "", "hex private key used to sign")
	cmd.Flags().Bool("yes", false, "send without asking for confirmation")
	cmd.Flags().String("journal", "./data/tx_journal.jsonl", "JSONL journal of lifecycle transitions")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, journals to Postgres instead of JSONL")
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("chef", "", "chef contract address")
	cmd.Flags().String("pid", "", "chef id")
	cmd.Flags().String("pair", "", "WETH pair address")
	cmd.Flags().StringSlice("deny-symbols", nil, "paired-token symbols forced to LP-only deposits")
	cmd.Flags().StringSlice("deny-pairs", nil, "pair addresses forced to LP-only deposits")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
