package config

import (
	"time"

	"github.com/spf13/pflag"
)

// JoinConfig holds configuration for the join command.
type JoinConfig struct {
	Config
	QuoteURL     string
	QuoteAPIKey  string
	QuoteTimeout time.Duration
	QuoteRate    float64
	Router       string
	DAO          string
	ShareToken   string
	SellToken    string
	BuyToken     string
	Amount       string
	Decimals     int32
	SlippageBps  uint16
	MinShares    string
}

// LoadJoin merges config file, environment variables, and flags into JoinConfig.
func LoadJoin(cfgFile string, flags *pflag.FlagSet) (JoinConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"slippage-bps":  50,
		"decimals":      18,
		"quote-timeout": 12 * time.Second,
		"quote-rate":    5.0,
	})
	if err != nil {
		return JoinConfig{}, err
	}

	cfg := JoinConfig{
		Config:       base(v),
		QuoteURL:     v.GetString("quote-url"),
		QuoteAPIKey:  v.GetString("quote-api-key"),
		QuoteTimeout: v.GetDuration("quote-timeout"),
		QuoteRate:    v.GetFloat64("quote-rate"),
		Router:       v.GetString("router"),
		DAO:          v.GetString("dao"),
		ShareToken:   v.GetString("share-token"),
		SellToken:    v.GetString("sell-token"),
		BuyToken:     v.GetString("buy-token"),
		Amount:       v.GetString("amount"),
		Decimals:     v.GetInt32("decimals"),
		SlippageBps:  v.GetUint16("slippage-bps"),
		MinShares:    v.GetString("min-shares"),
	}

	return cfg, nil
}
