package model

import (
	"math/big"
	"time"
)

// PoolReserves is a point-in-time snapshot of a constant-product pair.
// Reserve0 is always the ETH (wrapped native) side and Token is the paired
// token behind Reserve1.
type PoolReserves struct {
	Pair        string    `json:"pair"`
	Token       string    `json:"token"`
	Reserve0    *big.Int  `json:"reserve0"`
	Reserve1    *big.Int  `json:"reserve1"`
	TotalSupply *big.Int  `json:"total_supply,omitempty"`
	FeeBps      uint16    `json:"fee_bps"`
	BlockNumber uint64    `json:"block_number"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Empty reports whether either side of the pair is missing or zero.
func (r PoolReserves) Empty() bool {
	return r.Reserve0 == nil || r.Reserve1 == nil || r.Reserve0.Sign() <= 0 || r.Reserve1.Sign() <= 0
}

// Age returns how long ago the snapshot was read.
func (r PoolReserves) Age(now time.Time) time.Duration {
	if r.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(r.FetchedAt)
}
