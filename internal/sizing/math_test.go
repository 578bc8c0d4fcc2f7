package sizing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/model"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func sampleReserves() model.PoolReserves {
	return model.PoolReserves{
		Reserve0: ether(100),
		Reserve1: ether(50_000),
		FeeBps:   30,
	}
}

func TestAmountOutMatchesV2Formula(t *testing.T) {
	in := ether(1)
	out, err := AmountOut(in, ether(100), ether(50_000), 30)
	require.NoError(t, err)

	// in*997*R1 / (R0*1000 + in*997)
	num := new(big.Int).Mul(in, big.NewInt(997))
	num.Mul(num, ether(50_000))
	den := new(big.Int).Mul(ether(100), big.NewInt(1000))
	den.Add(den, new(big.Int).Mul(in, big.NewInt(997)))
	want := num.Quo(num, den)

	assert.Equal(t, want.String(), out.String())
}

func TestSplitSwapAmountBalancesPostSwapRatio(t *testing.T) {
	reserves := sampleReserves()
	amount := ether(1)

	swap, err := SplitSwapAmount(amount, reserves.Reserve0, reserves.FeeBps)
	require.NoError(t, err)
	out, err := AmountOut(swap, reserves.Reserve0, reserves.Reserve1, reserves.FeeBps)
	require.NoError(t, err)

	pair := new(big.Int).Sub(amount, swap)
	r0 := new(big.Int).Add(reserves.Reserve0, swap)
	r1 := new(big.Int).Sub(reserves.Reserve1, out)

	// pair/out == r0/r1  <=>  pair*r1 == out*r0, within a relative 1e-9.
	lhs := new(big.Float).SetInt(new(big.Int).Mul(pair, r1))
	rhs := new(big.Float).SetInt(new(big.Int).Mul(out, r0))
	diff := new(big.Float).Sub(lhs, rhs)
	diff.Abs(diff)
	rel, _ := new(big.Float).Quo(diff, rhs).Float64()
	assert.Less(t, rel, 1e-9)
}

func TestSplitSwapAmountIsNotHalf(t *testing.T) {
	swap, err := SplitSwapAmount(ether(10), ether(100), 30)
	require.NoError(t, err)
	assert.Equal(t, -1, swap.Cmp(ether(5)), "swap leg should be below half once the swap moves the price")
}

func TestSplitSwapAmountRejectsBadInput(t *testing.T) {
	_, err := SplitSwapAmount(ether(1), big.NewInt(0), 30)
	assert.Error(t, err)
	_, err = SplitSwapAmount(ether(1), ether(1), 10_000)
	assert.Error(t, err)

	zero, err := SplitSwapAmount(big.NewInt(0), ether(1), 30)
	require.NoError(t, err)
	assert.Equal(t, 0, zero.Sign())
}

func TestMaxEthForZapMonotonicInSlippage(t *testing.T) {
	reserves := sampleReserves()
	var prev *big.Int
	for slip := MaxSlippageBps; slip >= MinSlippageBps; slip -= 10 {
		maxEth, err := MaxEthForZap(reserves, slip)
		require.NoError(t, err)
		if prev != nil {
			assert.LessOrEqual(t, maxEth.Cmp(prev), 0, "tighter slippage %d permitted a larger zap", slip)
		}
		prev = maxEth
	}
}

func TestMaxEthForZapSwapLegWithinBound(t *testing.T) {
	reserves := sampleReserves()
	maxEth, err := MaxEthForZap(reserves, 500)
	require.NoError(t, err)

	swap, err := SplitSwapAmount(maxEth, reserves.Reserve0, reserves.FeeBps)
	require.NoError(t, err)
	bound, err := MaxSwapLeg(reserves.Reserve0, 500)
	require.NoError(t, err)

	// Integer rounding may land one wei above the bound.
	assert.LessOrEqual(t, swap.Cmp(new(big.Int).Add(bound, big.NewInt(1))), 0)
}

func TestMaxEthForZapRequiresReserves(t *testing.T) {
	_, err := MaxEthForZap(model.PoolReserves{}, 500)
	assert.Error(t, err)
	_, err = MaxEthForZap(sampleReserves(), 5)
	assert.Error(t, err)
}

func TestParseAndFormatEther(t *testing.T) {
	wei, err := ParseEther("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())
	assert.Equal(t, "1.5", FormatEther(wei))

	_, err = ParseEther("")
	assert.Error(t, err)
	_, err = ParseEther("abc")
	assert.Error(t, err)
	_, err = ParseEther("0.0000000000000000001")
	assert.Error(t, err)
}
