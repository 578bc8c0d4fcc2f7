package model

import "math/big"

// ZapCalculation is the sized result of splitting an ETH deposit into a swap
// leg and a pair leg. Values are replaced, never mutated.
type ZapCalculation struct {
	IsValid            bool     `json:"is_valid"`
	Error              string   `json:"error,omitempty"`
	Amount             *big.Int `json:"amount,omitempty"`
	EthToSwap          *big.Int `json:"eth_to_swap,omitempty"`
	EthToPair          *big.Int `json:"eth_to_pair,omitempty"`
	TokenOut           *big.Int `json:"token_out,omitempty"`
	EstimatedLiquidity *big.Int `json:"estimated_liquidity,omitempty"`
	MinLiquidity       *big.Int `json:"min_liquidity,omitempty"`
	MaxEthForZap       *big.Int `json:"max_eth_for_zap,omitempty"`
	// MaxDeposit is the smallest of MaxEthForZap, the pool cap and the balance.
	MaxDeposit         *big.Int `json:"max_deposit,omitempty"`
	SlippageBps        uint16   `json:"slippage_bps"`
	Generation         uint64   `json:"generation"`
}

// InvalidZap builds a rejected calculation with a human-readable reason.
func InvalidZap(reason string) ZapCalculation {
	return ZapCalculation{IsValid: false, Error: reason}
}
