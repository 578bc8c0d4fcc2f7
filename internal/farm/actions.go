package farm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmzap/internal/approval"
	"farmzap/internal/chain"
	"farmzap/internal/dex"
	"farmzap/internal/model"
	"farmzap/internal/sizing"
	"farmzap/internal/txflow"
)

// LP tokens of constant-product pairs use 18 decimals.
const lpDecimals = 18

// ErrZapDisabled is returned when the pool's policy forces the LP-only path.
var ErrZapDisabled = errors.New("zap is disabled for this pool")

// ETHBalanceReader reads native balances.
type ETHBalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// ReserveReader returns a pair snapshot within its staleness bound.
type ReserveReader interface {
	Get(ctx context.Context, pair common.Address) (model.PoolReserves, error)
}

// Actions builds lifecycle requests against one chef contract for one
// session. Every request re-reads chain state on each submit.
type Actions struct {
	chef    common.Address
	caller  chain.Caller
	eth     ETHBalanceReader
	gate    *approval.Gate
	session model.Session
	logger  *zap.Logger
}

func NewActions(chef common.Address, caller chain.Caller, eth ETHBalanceReader, session model.Session, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actions{
		chef:    chef,
		caller:  caller,
		eth:     eth,
		gate:    approval.NewGate(caller, logger),
		session: session,
		logger:  logger,
	}
}

// Deposit stakes amount of lpToken into pid, approving the chef first when
// the allowance is short.
func (a *Actions) Deposit(pid string, lpToken common.Address, amount string) txflow.Request {
	var (
		pidValue *big.Int
		value    *big.Int
	)
	return txflow.Request{
		Kind: "deposit",
		Validate: func(ctx context.Context) error {
			var err error
			if pidValue, err = model.ParseID(pid); err != nil {
				return err
			}
			if value, err = parsePositive(amount); err != nil {
				return err
			}
			balance, err := dex.TokenBalance(ctx, a.caller, lpToken, a.session.Account)
			if err != nil {
				return fmt.Errorf("read lp balance: %w", err)
			}
			if value.Cmp(balance) > 0 {
				return fmt.Errorf("amount exceeds lp balance %s", sizing.FormatUnits(balance, lpDecimals))
			}
			return nil
		},
		Prepare: func(ctx context.Context) (txflow.Plan, error) {
			var plan txflow.Plan
			step, err := a.approvalStep(ctx, approval.Spec{
				Kind:    approval.KindERC20,
				Token:   lpToken,
				Owner:   a.session.Account,
				Spender: a.chef,
				Amount:  value,
			}, "Approving LP token")
			if err != nil {
				return plan, err
			}
			if step != nil {
				plan.Approvals = append(plan.Approvals, *step)
			}
			data, err := DepositCall(pidValue, value)
			if err != nil {
				return plan, err
			}
			plan.Primary = txflow.Step{Tx: txflow.TxRequest{To: a.chef, Data: data}}
			return plan, nil
		},
	}
}

// Unstake withdraws amount of LP from pid.
func (a *Actions) Unstake(pid string, amount string) txflow.Request {
	var (
		pidValue *big.Int
		value    *big.Int
	)
	return txflow.Request{
		Kind: "unstake",
		Validate: func(ctx context.Context) error {
			var err error
			if pidValue, err = model.ParseID(pid); err != nil {
				return err
			}
			if value, err = parsePositive(amount); err != nil {
				return err
			}
			return a.checkStaked(ctx, pidValue, value)
		},
		Prepare: func(context.Context) (txflow.Plan, error) {
			data, err := WithdrawCall(pidValue, value)
			if err != nil {
				return txflow.Plan{}, err
			}
			return txflow.Plan{Primary: txflow.Step{Tx: txflow.TxRequest{To: a.chef, Data: data}}}, nil
		},
	}
}

// Migrate moves amount of staked LP from one chef id to another.
func (a *Actions) Migrate(fromPid, toPid string, amount string) txflow.Request {
	var (
		from  *big.Int
		to    *big.Int
		value *big.Int
	)
	return txflow.Request{
		Kind: "migrate",
		Validate: func(ctx context.Context) error {
			var err error
			if toPid == "" {
				return fmt.Errorf("target pool is required")
			}
			if model.SameID(fromPid, toPid) {
				return fmt.Errorf("target pool must differ from source")
			}
			if from, err = model.ParseID(fromPid); err != nil {
				return err
			}
			if to, err = model.ParseID(toPid); err != nil {
				return err
			}
			if value, err = parsePositive(amount); err != nil {
				return err
			}
			return a.checkStaked(ctx, from, value)
		},
		Prepare: func(context.Context) (txflow.Plan, error) {
			data, err := MigrateCall(from, to, value)
			if err != nil {
				return txflow.Plan{}, err
			}
			return txflow.Plan{Primary: txflow.Step{Tx: txflow.TxRequest{To: a.chef, Data: data}}}, nil
		},
	}
}

// ZapParams describes a single-asset ETH deposit.
type ZapParams struct {
	PID         string
	Pair        common.Address
	Amount      string
	SlippageBps uint16
	Mode        sizing.Mode
	Reserves    ReserveReader
	// Debouncer, when set, is flushed so pending recomputations never
	// overwrite the calculation the transaction is built from.
	Debouncer   *sizing.Debouncer
}

// Zap deposits ETH through the chef's zap entry point. Validation sizes the
// deposit against fresh reserves, balance and pool cap.
func (a *Actions) Zap(p ZapParams) txflow.Request {
	var (
		pidValue *big.Int
		calc     model.ZapCalculation
	)
	return txflow.Request{
		Kind: "zap",
		Validate: func(ctx context.Context) error {
			if p.Mode == sizing.ModeLPOnly {
				return ErrZapDisabled
			}
			var err error
			if pidValue, err = model.ParseID(p.PID); err != nil {
				return err
			}
			in, err := a.zapInput(ctx, pidValue, p)
			if err != nil {
				return err
			}
			if p.Debouncer != nil {
				calc = p.Debouncer.Flush(in)
			} else {
				calc = sizing.Calculate(in)
			}
			if !calc.IsValid {
				return errors.New(calc.Error)
			}
			return nil
		},
		Prepare: func(context.Context) (txflow.Plan, error) {
			data, err := ZapCall(pidValue, calc.MinLiquidity)
			if err != nil {
				return txflow.Plan{}, err
			}
			a.logger.Info("zap sized",
				zap.String("amount", sizing.FormatEther(calc.Amount)),
				zap.String("eth_to_swap", sizing.FormatEther(calc.EthToSwap)),
				zap.String("eth_to_pair", sizing.FormatEther(calc.EthToPair)),
				zap.String("min_liquidity", calc.MinLiquidity.String()),
			)
			return txflow.Plan{Primary: txflow.Step{Tx: txflow.TxRequest{
				To:    a.chef,
				Data:  data,
				Value: new(big.Int).Set(calc.Amount),
			}}}, nil
		},
	}
}

// PreviewZap sizes a zap without building a transaction.
func (a *Actions) PreviewZap(ctx context.Context, p ZapParams) (model.ZapCalculation, error) {
	if p.Mode == sizing.ModeLPOnly {
		return model.InvalidZap(ErrZapDisabled.Error()), nil
	}
	pidValue, err := model.ParseID(p.PID)
	if err != nil {
		return model.ZapCalculation{}, err
	}
	in, err := a.zapInput(ctx, pidValue, p)
	if err != nil {
		return model.ZapCalculation{}, err
	}
	return sizing.Calculate(in), nil
}

func (a *Actions) zapInput(ctx context.Context, pid *big.Int, p ZapParams) (sizing.Input, error) {
	if p.Reserves == nil {
		return sizing.Input{}, fmt.Errorf("reserve reader is nil")
	}
	reserves, err := p.Reserves.Get(ctx, p.Pair)
	if err != nil {
		return sizing.Input{}, fmt.Errorf("read reserves: %w", err)
	}
	in := sizing.Input{
		Amount:      p.Amount,
		Reserves:    reserves,
		SlippageBps: p.SlippageBps,
	}
	if a.eth != nil {
		balance, err := a.eth.BalanceAt(ctx, a.session.Account)
		if err != nil {
			return sizing.Input{}, fmt.Errorf("read eth balance: %w", err)
		}
		in.Balance = balance
	}
	if limit, err := ZapCap(ctx, a.caller, a.chef, pid); err == nil {
		in.PoolCap = limit
	} else {
		a.logger.Debug("zap cap unavailable", zap.String("pid", pid.String()), zap.Error(err))
	}
	return in, nil
}

func (a *Actions) checkStaked(ctx context.Context, pid, value *big.Int) error {
	staked, err := StakedAmount(ctx, a.caller, a.chef, pid, a.session.Account)
	if err != nil {
		return fmt.Errorf("read staked amount: %w", err)
	}
	if value.Cmp(staked) > 0 {
		return fmt.Errorf("amount exceeds staked %s", sizing.FormatUnits(staked, lpDecimals))
	}
	return nil
}

// approvalStep returns the approval transaction spec needs, or nil when it is
// already satisfied. An unresolved check blocks the plan.
func (a *Actions) approvalStep(ctx context.Context, spec approval.Spec, label string) (*txflow.Step, error) {
	state, err := a.gate.Check(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("check approval: %w", err)
	}
	switch state {
	case approval.StateApproved:
		return nil, nil
	case approval.StateNotApproved:
		data, err := approval.Calldata(spec)
		if err != nil {
			return nil, err
		}
		return &txflow.Step{Label: label, Tx: txflow.TxRequest{To: spec.Token, Data: data}}, nil
	default:
		return nil, fmt.Errorf("approval state %s", state)
	}
}

func parsePositive(amount string) (*big.Int, error) {
	value, err := sizing.ParseUnits(amount, lpDecimals)
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	return value, nil
}
