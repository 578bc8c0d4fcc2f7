package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the connected wallet context passed to every operation that
// needs the account or chain.
type Session struct {
	Account common.Address
	ChainID *big.Int
}

// ChainIDValue returns the chain id as uint64, or zero when unset.
func (s Session) ChainIDValue() uint64 {
	if s.ChainID == nil || !s.ChainID.IsUint64() {
		return 0
	}
	return s.ChainID.Uint64()
}
