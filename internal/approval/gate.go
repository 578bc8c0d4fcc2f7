package approval

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"farmzap/internal/chain"
)

// State is the tri-state result of an approval check.
type State int

const (
	// StateUnknown means the check has not resolved (loading or read failure).
	StateUnknown State = iota
	StateApproved
	StateNotApproved
)

func (s State) String() string {
	switch s {
	case StateApproved:
		return "approved"
	case StateNotApproved:
		return "not_approved"
	default:
		return "unknown"
	}
}

// Kind selects how a spender is authorized.
type Kind string

const (
	// KindERC20 uses allowance/approve.
	KindERC20 Kind = "erc20"
	// KindOperator uses isApprovedForAll/setApprovalForAll.
	KindOperator Kind = "operator"
)

// ParseKind maps a wire name onto a Kind. An empty name is ERC20.
func ParseKind(name string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(name))); kind {
	case "", KindERC20:
		return KindERC20, nil
	case KindOperator:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown approval kind %q", name)
	}
}

// Spec identifies one approval requirement.
type Spec struct {
	Kind    Kind
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	// Amount is the minimum ERC20 allowance required. Ignored for operators.
	Amount  *big.Int
}

// Gate decides whether an approval transaction must precede a transfer.
type Gate struct {
	caller chain.Caller
	logger *zap.Logger
}

// NewGate builds a gate over a contract caller.
func NewGate(caller chain.Caller, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{caller: caller, logger: logger}
}

// Check reads on-chain state and reports whether spec is satisfied. A read
// failure yields StateUnknown together with the error.
func (g *Gate) Check(ctx context.Context, spec Spec) (State, error) {
	if g.caller == nil {
		return StateUnknown, fmt.Errorf("contract caller is nil")
	}
	switch spec.Kind {
	case KindERC20:
		values, err := g.call(ctx, spec.Token, "allowance", spec.Owner, spec.Spender)
		if err != nil {
			return StateUnknown, err
		}
		allowance, ok := values[0].(*big.Int)
		if !ok {
			return StateUnknown, fmt.Errorf("allowance unexpected type %T", values[0])
		}
		required := spec.Amount
		if required == nil {
			required = big.NewInt(1)
		}
		g.logger.Debug("allowance read",
			zap.String("token", spec.Token.Hex()),
			zap.String("spender", spec.Spender.Hex()),
			zap.String("allowance", allowance.String()),
			zap.String("required", required.String()),
		)
		if allowance.Cmp(required) >= 0 {
			return StateApproved, nil
		}
		return StateNotApproved, nil
	case KindOperator:
		values, err := g.call(ctx, spec.Token, "isApprovedForAll", spec.Owner, spec.Spender)
		if err != nil {
			return StateUnknown, err
		}
		approved, ok := values[0].(bool)
		if !ok {
			return StateUnknown, fmt.Errorf("isApprovedForAll unexpected type %T", values[0])
		}
		if approved {
			return StateApproved, nil
		}
		return StateNotApproved, nil
	default:
		return StateUnknown, fmt.Errorf("unsupported approval kind: %q", spec.Kind)
	}
}

// Calldata returns the approval transaction payload for spec. ERC20 approvals
// grant the maximum allowance.
func Calldata(spec Spec) ([]byte, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse approval abi: %w", err)
	}
	switch spec.Kind {
	case KindERC20:
		return parsed.Pack("approve", spec.Spender, math.MaxBig256)
	case KindOperator:
		return parsed.Pack("setApprovalForAll", spec.Spender, true)
	default:
		return nil, fmt.Errorf("unsupported approval kind: %q", spec.Kind)
	}
}

func (g *Gate) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := g.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return values, nil
}
