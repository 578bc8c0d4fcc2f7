package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/config"
	"farmzap/internal/model"
)

func TestParsePrices(t *testing.T) {
	prices, err := parsePrices(map[string]string{"0xReward": "2.5", "12": " 0.5 "})
	require.NoError(t, err)
	assert.True(t, prices["0xReward"].Equal(decimal.RequireFromString("2.5")))
	assert.True(t, prices["12"].Equal(decimal.RequireFromString("0.5")))

	_, err = parsePrices(map[string]string{"x": "cheap"})
	assert.ErrorContains(t, err, "price for x")
}

func TestJoinParams(t *testing.T) {
	cfg := config.JoinConfig{
		DAO:         "0x00000000000000000000000000000000000000d0",
		ShareToken:  "0x00000000000000000000000000000000000000d1",
		SellToken:   "0x00000000000000000000000000000000000000e0",
		BuyToken:    "0x00000000000000000000000000000000000000e1",
		Amount:      "1.5",
		Decimals:    6,
		SlippageBps: 100,
		MinShares:   "42",
	}
	params, err := joinParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(cfg.DAO), params.DAO)
	assert.Equal(t, int64(42), params.MinShares.Int64())
	assert.Equal(t, int32(6), params.Decimals)

	cfg.MinShares = "-1"
	_, err = joinParams(cfg)
	assert.ErrorContains(t, err, "min shares")

	cfg.MinShares = ""
	cfg.BuyToken = "not-an-address"
	_, err = joinParams(cfg)
	assert.ErrorContains(t, err, "buy token")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("loud")
	assert.Error(t, err)

	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestZapPreviewShowsMaxDeposit(t *testing.T) {
	wei := func(eth int64) *big.Int { return new(big.Int).Mul(big.NewInt(eth), big.NewInt(1e18)) }
	calc := model.ZapCalculation{
		Error:        "amount exceeds pool maximum 2 ETH",
		Amount:       wei(3),
		MaxEthForZap: wei(5),
		MaxDeposit:   wei(2),
	}

	var out bytes.Buffer
	require.NoError(t, writeZapPreview(&out, "TKN", "zap", calc))
	assert.Regexp(t, `max deposit\s+2 ETH`, out.String())
	assert.Regexp(t, `suggested amount\s+2 ETH`, out.String())

	out.Reset()
	calc.Amount = wei(1)
	require.NoError(t, writeZapPreview(&out, "TKN", "zap", calc))
	assert.Contains(t, out.String(), "max deposit")
	assert.NotContains(t, out.String(), "suggested amount")
}
