package sizing

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Mode is the deposit input mode offered for a pool.
type Mode string

const (
	// ModeZap accepts ETH and splits it into both pool legs.
	ModeZap Mode = "zap"
	// ModeLPOnly accepts only the pool's LP token.
	ModeLPOnly Mode = "lp_only"
)

// Policy forces the LP-only path for pools where zapping is disabled.
type Policy struct {
	symbols map[string]struct{}
	pairs   map[common.Address]struct{}
}

// NewPolicy builds a policy from denied paired-token symbols and pair
// addresses.
func NewPolicy(symbols []string, pairs []string) (*Policy, error) {
	p := &Policy{
		symbols: make(map[string]struct{}, len(symbols)),
		pairs:   make(map[common.Address]struct{}, len(pairs)),
	}
	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		p.symbols[strings.ToUpper(symbol)] = struct{}{}
	}
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !common.IsHexAddress(pair) {
			return nil, fmt.Errorf("invalid pair address: %s", pair)
		}
		p.pairs[common.HexToAddress(pair)] = struct{}{}
	}
	return p, nil
}

// Mode decides the input mode for a pool. It must be consulted before either
// input is shown.
func (p *Policy) Mode(pairedSymbol string, pair common.Address) Mode {
	if p == nil {
		return ModeZap
	}
	if _, ok := p.pairs[pair]; ok {
		return ModeLPOnly
	}
	if _, ok := p.symbols[strings.ToUpper(strings.TrimSpace(pairedSymbol))]; ok {
		return ModeLPOnly
	}
	return ModeZap
}
