package model

import (
	"fmt"
	"math/big"
	"strings"
)

// StreamStatusActive marks an incentive stream still paying rewards.
const StreamStatusActive = "ACTIVE"

// IncentiveStream describes a farm (reward program) over an LP token.
type IncentiveStream struct {
	ChefID       string   `json:"chef_id"`
	LpID         string   `json:"lp_id"`
	RewardCoin   string   `json:"reward_coin"`
	TotalShares  *big.Int `json:"total_shares"`
	RewardAmount *big.Int `json:"reward_amount,omitempty"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Status       string   `json:"status"`
}

// IsActive reports whether the stream is marked ACTIVE.
func (s IncentiveStream) IsActive() bool {
	return strings.EqualFold(strings.TrimSpace(s.Status), StreamStatusActive)
}

// CanonicalID normalizes a decimal identifier so that "007" and "7" compare
// equal. Non-numeric identifiers are returned trimmed and unchanged.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if n, ok := new(big.Int).SetString(id, 10); ok && n.Sign() >= 0 {
		return n.String()
	}
	return id
}

// SameID compares two identifiers as canonical decimal strings.
func SameID(a, b string) bool {
	return CanonicalID(a) == CanonicalID(b)
}

// ParseID converts a decimal identifier into a typed integer for calldata.
func ParseID(id string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(id), 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid id: %q", id)
	}
	return n, nil
}
