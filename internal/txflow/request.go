package txflow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxRequest is an unsigned contract call.
type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Wallet signs and broadcasts transactions and waits for their receipts.
type Wallet interface {
	Send(ctx context.Context, tx TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Step is one transaction of a plan.
type Step struct {
	Label string
	Tx    TxRequest
}

// Plan is the ordered set of transactions for one submit. Approvals are mined
// one by one before Primary is sent.
type Plan struct {
	Approvals []Step
	Primary   Step
}

// Request describes a user action. Validate and Prepare run on every submit,
// so nothing computed for an earlier attempt is reused.
type Request struct {
	Kind      string
	Validate  func(ctx context.Context) error
	Prepare   func(ctx context.Context) (Plan, error)
	// OnSuccess runs once per successful submit, when the lifecycle resets.
	OnSuccess func(hash common.Hash)
}
