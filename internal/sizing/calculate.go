package sizing

import (
	"fmt"
	"math/big"

	"farmzap/internal/model"
)

// Input is everything a zap calculation depends on.
type Input struct {
	Amount      string
	Reserves    model.PoolReserves
	SlippageBps uint16
	// Balance is the wallet's spendable ETH; nil skips the check.
	Balance     *big.Int
	// PoolCap is a pool-imposed deposit maximum; nil means uncapped.
	PoolCap     *big.Int
}

// Calculate sizes a zap deposit. It never returns an error: failures are
// reported through IsValid and Error so callers can disable submission.
func Calculate(in Input) model.ZapCalculation {
	if err := ValidateSlippage(in.SlippageBps); err != nil {
		return model.InvalidZap(err.Error())
	}

	amount, err := ParseEther(in.Amount)
	if err != nil {
		return model.InvalidZap(err.Error())
	}
	if amount.Sign() <= 0 {
		return model.InvalidZap("amount must be greater than zero")
	}

	if in.Reserves.Empty() {
		return model.InvalidZap("pool reserves unavailable")
	}

	maxEth, err := MaxEthForZap(in.Reserves, in.SlippageBps)
	if err != nil {
		return model.InvalidZap(err.Error())
	}

	calc := model.ZapCalculation{
		Amount:       amount,
		MaxEthForZap: maxEth,
		MaxDeposit:   EffectiveCap(maxEth, in.PoolCap, in.Balance),
		SlippageBps:  in.SlippageBps,
	}

	if amount.Cmp(maxEth) > 0 {
		calc.Error = fmt.Sprintf("amount exceeds max %s ETH for %d bps slippage", FormatEther(maxEth), in.SlippageBps)
		return calc
	}
	if in.PoolCap != nil && amount.Cmp(in.PoolCap) > 0 {
		calc.Error = fmt.Sprintf("amount exceeds pool maximum %s ETH", FormatEther(in.PoolCap))
		return calc
	}
	if in.Balance != nil && amount.Cmp(in.Balance) > 0 {
		calc.Error = "insufficient balance"
		return calc
	}

	swap, err := SplitSwapAmount(amount, in.Reserves.Reserve0, in.Reserves.FeeBps)
	if err != nil {
		calc.Error = err.Error()
		return calc
	}
	tokenOut, err := AmountOut(swap, in.Reserves.Reserve0, in.Reserves.Reserve1, in.Reserves.FeeBps)
	if err != nil {
		calc.Error = err.Error()
		return calc
	}

	pair := new(big.Int).Sub(amount, swap)
	liquidity := estimateLiquidity(in.Reserves, swap, tokenOut, pair)
	if liquidity.Sign() <= 0 {
		calc.Error = "amount too small to mint liquidity"
		return calc
	}

	calc.IsValid = true
	calc.EthToSwap = swap
	calc.EthToPair = pair
	calc.TokenOut = tokenOut
	calc.EstimatedLiquidity = liquidity
	calc.MinLiquidity = ApplySlippage(liquidity, in.SlippageBps)
	return calc
}

// estimateLiquidity prices the liquidity add against post-swap reserves.
// Without a known LP supply it falls back to the geometric mean.
func estimateLiquidity(reserves model.PoolReserves, swap, tokenOut, pair *big.Int) *big.Int {
	supply := reserves.TotalSupply
	if supply == nil || supply.Sign() <= 0 {
		return new(big.Int).Sqrt(new(big.Int).Mul(pair, tokenOut))
	}

	r0 := new(big.Int).Add(reserves.Reserve0, swap)
	r1 := new(big.Int).Sub(reserves.Reserve1, tokenOut)
	if r1.Sign() <= 0 {
		return big.NewInt(0)
	}

	l0 := new(big.Int).Mul(pair, supply)
	l0.Quo(l0, r0)
	l1 := new(big.Int).Mul(tokenOut, supply)
	l1.Quo(l1, r1)
	return minBig(l0, l1)
}

// EffectiveCap returns the smallest of the provided caps, ignoring nils.
func EffectiveCap(caps ...*big.Int) *big.Int {
	return minBig(caps...)
}

// Clamp limits amount to limit. A nil limit leaves amount unchanged.
func Clamp(amount, limit *big.Int) *big.Int {
	if amount == nil {
		return nil
	}
	if limit != nil && amount.Cmp(limit) > 0 {
		return new(big.Int).Set(limit)
	}
	return new(big.Int).Set(amount)
}
