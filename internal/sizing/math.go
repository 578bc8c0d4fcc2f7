package sizing

import (
	"fmt"
	"math/big"

	"farmzap/internal/model"
)

// BpsDenominator is the basis-point scale shared by fees and slippage.
const BpsDenominator = 10_000

const (
	// MinSlippageBps is the tightest tolerance a user may configure (0.1%).
	MinSlippageBps uint16 = 10
	// MaxSlippageBps is the loosest tolerance a user may configure (50%).
	MaxSlippageBps uint16 = 5000
)

var bpsDen = big.NewInt(BpsDenominator)

// ValidateSlippage checks that a tolerance is inside the configurable range.
func ValidateSlippage(slippageBps uint16) error {
	if slippageBps < MinSlippageBps || slippageBps > MaxSlippageBps {
		return fmt.Errorf("slippage %d bps outside [%d, %d]", slippageBps, MinSlippageBps, MaxSlippageBps)
	}
	return nil
}

func feeFactor(feeBps uint16) (*big.Int, error) {
	if feeBps >= BpsDenominator {
		return nil, fmt.Errorf("fee %d bps is not below %d", feeBps, BpsDenominator)
	}
	return big.NewInt(int64(BpsDenominator - int(feeBps))), nil
}

// AmountOut returns the constant-product output for amountIn with the fee
// taken from the input side.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) (*big.Int, error) {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return nil, fmt.Errorf("nil amount or reserve")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("empty reserves")
	}
	g, err := feeFactor(feeBps)
	if err != nil {
		return nil, err
	}
	if amountIn.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	inWithFee := new(big.Int).Mul(amountIn, g)
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, bpsDen)
	den.Add(den, inWithFee)
	return num.Quo(num, den), nil
}

// SplitSwapAmount returns how much of amount should be swapped so that the
// remaining ETH and the tokens received match the post-swap reserve ratio.
//
//	s = (sqrt(R0 * (R0*(F+g)^2 + 4*g*F*x)) - R0*(F+g)) / (2g)
//
// with F the bps denominator and g = F - fee.
func SplitSwapAmount(amount, reserve0 *big.Int, feeBps uint16) (*big.Int, error) {
	if amount == nil || reserve0 == nil {
		return nil, fmt.Errorf("nil amount or reserve")
	}
	if reserve0.Sign() <= 0 {
		return nil, fmt.Errorf("empty reserve")
	}
	g, err := feeFactor(feeBps)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	fPlusG := new(big.Int).Add(bpsDen, g)

	// R0 * (F+g)^2
	inner := new(big.Int).Mul(fPlusG, fPlusG)
	inner.Mul(inner, reserve0)
	// + 4*g*F*x
	term := new(big.Int).Mul(big.NewInt(4), g)
	term.Mul(term, bpsDen)
	term.Mul(term, amount)
	inner.Add(inner, term)
	inner.Mul(inner, reserve0)

	root := new(big.Int).Sqrt(inner)
	root.Sub(root, new(big.Int).Mul(reserve0, fPlusG))
	if root.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	root.Quo(root, new(big.Int).Mul(big.NewInt(2), g))
	if root.Cmp(amount) > 0 {
		root.Set(amount)
	}
	return root, nil
}

// MaxSwapLeg is the largest swap whose price impact s/(R0+s) stays within
// the slippage bound: R0*slip/(F-slip).
func MaxSwapLeg(reserve0 *big.Int, slippageBps uint16) (*big.Int, error) {
	if err := ValidateSlippage(slippageBps); err != nil {
		return nil, err
	}
	if reserve0 == nil || reserve0.Sign() <= 0 {
		return nil, fmt.Errorf("empty reserve")
	}
	num := new(big.Int).Mul(reserve0, big.NewInt(int64(slippageBps)))
	return num.Quo(num, big.NewInt(int64(BpsDenominator-int(slippageBps)))), nil
}

// MaxEthForZap returns the largest ETH input whose swap leg stays within the
// slippage bound. It inverts SplitSwapAmount:
//
//	x = s * (g*s + R0*(F+g)) / (F*R0)
func MaxEthForZap(reserves model.PoolReserves, slippageBps uint16) (*big.Int, error) {
	if reserves.Empty() {
		return nil, fmt.Errorf("pool reserves unavailable")
	}
	g, err := feeFactor(reserves.FeeBps)
	if err != nil {
		return nil, err
	}
	sMax, err := MaxSwapLeg(reserves.Reserve0, slippageBps)
	if err != nil {
		return nil, err
	}

	r0 := reserves.Reserve0
	fPlusG := new(big.Int).Add(bpsDen, g)

	factor := new(big.Int).Mul(g, sMax)
	factor.Add(factor, new(big.Int).Mul(r0, fPlusG))
	num := new(big.Int).Mul(sMax, factor)
	den := new(big.Int).Mul(bpsDen, r0)
	return num.Quo(num, den), nil
}

// ApplySlippage returns value * (F - slip) / F.
func ApplySlippage(value *big.Int, slippageBps uint16) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, big.NewInt(int64(BpsDenominator-int(slippageBps))))
	return out.Quo(out, bpsDen)
}

func minBig(values ...*big.Int) *big.Int {
	var out *big.Int
	for _, v := range values {
		if v == nil {
			continue
		}
		if out == nil || v.Cmp(out) < 0 {
			out = v
		}
	}
	if out == nil {
		return nil
	}
	return new(big.Int).Set(out)
}
