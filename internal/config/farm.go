package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FarmConfig holds configuration for the chef commands: preview, targets,
// deposit, migrate and unstake.
type FarmConfig struct {
	Config
	Chef        string
	PID         string
	TargetPID   string
	Pair        string
	LPToken     string
	Amount      string
	SlippageBps uint16
	Zap         bool
	DenySymbols []string
	DenyPairs   []string
	Streams     string
	Prices      map[string]string
	RankLimit   int
	At          string
}

// LoadFarm merges config file, environment variables, and flags into FarmConfig.
func LoadFarm(cfgFile string, flags *pflag.FlagSet) (FarmConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"slippage-bps": 50,
		"rank-limit":   4,
	})
	if err != nil {
		return FarmConfig{}, err
	}

	cfg := FarmConfig{
		Config:      base(v),
		Chef:        v.GetString("chef"),
		PID:         v.GetString("pid"),
		TargetPID:   v.GetString("target-pid"),
		Pair:        v.GetString("pair"),
		LPToken:     v.GetString("lp-token"),
		Amount:      v.GetString("amount"),
		SlippageBps: v.GetUint16("slippage-bps"),
		Zap:         v.GetBool("zap"),
		DenySymbols: getStringSlice(v, "deny-symbols"),
		DenyPairs:   getStringSlice(v, "deny-pairs"),
		Streams:     v.GetString("streams"),
		Prices:      getStringMap(v, "prices"),
		RankLimit:   v.GetInt("rank-limit"),
		At:          v.GetString("at"),
	}

	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339). An
// empty input yields the zero time.
func ParseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	return time.Parse(time.RFC3339, input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
