package farm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"farmzap/internal/model"
)

// ErrNoYield means a stream lacks the data needed for an estimate.
var ErrNoYield = errors.New("yield unavailable")

const yearSeconds = int64(365 * 24 * time.Hour / time.Second)

// YieldEstimator produces an annualised yield for a stream.
type YieldEstimator interface {
	Estimate(ctx context.Context, stream model.IncentiveStream) (decimal.Decimal, error)
}

// PriceSource prices reward coins and LP tokens in a common unit.
type PriceSource interface {
	Price(ctx context.Context, asset string) (decimal.Decimal, error)
}

// StaticPrices is a PriceSource backed by fixed values, keyed by reward coin
// or LP id (case-insensitive).
type StaticPrices map[string]decimal.Decimal

func (p StaticPrices) Price(_ context.Context, asset string) (decimal.Decimal, error) {
	for key, price := range p {
		if strings.EqualFold(key, asset) {
			return price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no price for %s", asset)
}

// RewardRateEstimator annualises a stream's emission per staked share:
// reward * year / duration / totalShares. With Prices set the result is
// scaled by rewardPrice / lpPrice, otherwise it is in reward units per share.
type RewardRateEstimator struct {
	Prices PriceSource
}

func (e RewardRateEstimator) Estimate(ctx context.Context, stream model.IncentiveStream) (decimal.Decimal, error) {
	if stream.RewardAmount == nil || stream.RewardAmount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: no reward amount for chef %s", ErrNoYield, stream.ChefID)
	}
	if stream.TotalShares == nil || stream.TotalShares.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: no staked shares for chef %s", ErrNoYield, stream.ChefID)
	}
	duration := stream.EndTime - stream.StartTime
	if duration <= 0 {
		return decimal.Zero, fmt.Errorf("%w: empty schedule for chef %s", ErrNoYield, stream.ChefID)
	}

	rate := decimal.NewFromBigInt(stream.RewardAmount, 0).
		Mul(decimal.NewFromInt(yearSeconds)).
		Div(decimal.NewFromInt(duration)).
		Div(decimal.NewFromBigInt(stream.TotalShares, 0))

	if e.Prices == nil {
		return rate, nil
	}
	rewardPrice, err := e.Prices.Price(ctx, stream.RewardCoin)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price reward %s: %w", stream.RewardCoin, err)
	}
	lpPrice, err := e.Prices.Price(ctx, stream.LpID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price lp %s: %w", stream.LpID, err)
	}
	if lpPrice.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: lp %s has no price", ErrNoYield, stream.LpID)
	}
	return rate.Mul(rewardPrice).Div(lpPrice), nil
}
