package route

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmzap/internal/approval"
	"farmzap/internal/chain"
	"farmzap/internal/model"
	"farmzap/internal/sizing"
	"farmzap/internal/txflow"
)

// SideSell quotes an exact input amount.
const SideSell = "sell"

// QuoteRequest asks the route service for swaps of Amount SellToken into
// BuyToken, delivered to Recipient.
type QuoteRequest struct {
	SellToken   common.Address
	BuyToken    common.Address
	Amount      *big.Int
	SlippageBps uint16
	Recipient   common.Address
	Side        string
}

// Route is one executable swap path. Calls are router calls; the last one is
// expected to sweep the swap output to the recipient.
type Route struct {
	AmountOut *big.Int
	Router    common.Address
	Value     *big.Int
	Approvals []approval.Spec
	Calls     [][]byte
}

// Quoter returns routes ranked best first.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) ([]Route, error)
}

// JoinParams describes a swap-then-buy-shares action.
type JoinParams struct {
	DAO         common.Address
	ShareToken  common.Address
	SellToken   common.Address
	BuyToken    common.Address
	Amount      string
	// Decimals of SellToken, used to parse Amount.
	Decimals    int32
	SlippageBps uint16
	MinShares   *big.Int
}

// JoinPlanner builds the single multicall that swaps into the DAO's payment
// token, buys shares with the router-held output and sweeps both the shares
// and any leftover swap output to the user.
type JoinPlanner struct {
	quoter  Quoter
	router  common.Address
	gate    *approval.Gate
	session model.Session
	logger  *zap.Logger
}

func NewJoinPlanner(quoter Quoter, router common.Address, caller chain.Caller, session model.Session, logger *zap.Logger) *JoinPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JoinPlanner{
		quoter:  quoter,
		router:  router,
		gate:    approval.NewGate(caller, logger),
		session: session,
		logger:  logger,
	}
}

func (p *JoinPlanner) validate(params JoinParams) (*big.Int, error) {
	if params.DAO == (common.Address{}) {
		return nil, fmt.Errorf("dao address is required")
	}
	if params.ShareToken == (common.Address{}) {
		return nil, fmt.Errorf("share token is required")
	}
	if err := sizing.ValidateSlippage(params.SlippageBps); err != nil {
		return nil, err
	}
	if params.Decimals < 0 {
		return nil, fmt.Errorf("decimals must not be negative")
	}
	amount, err := sizing.ParseUnits(params.Amount, params.Decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}
	return amount, nil
}

// Preview quotes params without building anything. A missing route is
// reported as ErrNoRoute so callers can disable submission.
func (p *JoinPlanner) Preview(ctx context.Context, params JoinParams) (Route, error) {
	amount, err := p.validate(params)
	if err != nil {
		return Route{}, err
	}
	return p.bestRoute(ctx, params, amount)
}

func (p *JoinPlanner) bestRoute(ctx context.Context, params JoinParams, amount *big.Int) (Route, error) {
	if p.quoter == nil {
		return Route{}, fmt.Errorf("%w: quoter is nil", ErrNoRoute)
	}
	routes, err := p.quoter.Quote(ctx, QuoteRequest{
		SellToken:   params.SellToken,
		BuyToken:    params.BuyToken,
		Amount:      amount,
		SlippageBps: params.SlippageBps,
		Recipient:   p.router,
		Side:        SideSell,
	})
	if err != nil {
		return Route{}, fmt.Errorf("%w: %w", ErrNoRoute, err)
	}
	if len(routes) == 0 || len(routes[0].Calls) == 0 {
		return Route{}, ErrNoRoute
	}
	best := routes[0]
	if best.Router == (common.Address{}) {
		best.Router = p.router
	}
	if best.Router != p.router {
		return Route{}, fmt.Errorf("%w: route targets router %s", ErrNoRoute, best.Router.Hex())
	}
	return best, nil
}

// Request returns the lifecycle request for params. Every submit re-quotes
// and re-checks approvals.
func (p *JoinPlanner) Request(params JoinParams) txflow.Request {
	var amount *big.Int
	return txflow.Request{
		Kind: "join",
		Validate: func(context.Context) error {
			var err error
			amount, err = p.validate(params)
			return err
		},
		Prepare: func(ctx context.Context) (txflow.Plan, error) {
			return p.plan(ctx, params, amount)
		},
	}
}

func (p *JoinPlanner) plan(ctx context.Context, params JoinParams, amount *big.Int) (txflow.Plan, error) {
	var plan txflow.Plan

	best, err := p.bestRoute(ctx, params, amount)
	if err != nil {
		return plan, err
	}

	for _, spec := range best.Approvals {
		spec.Owner = p.session.Account
		if spec.Kind == "" {
			spec.Kind = approval.KindERC20
		}
		state, err := p.gate.Check(ctx, spec)
		if err != nil {
			return plan, fmt.Errorf("check approval %s: %w", spec.Token.Hex(), err)
		}
		switch state {
		case approval.StateApproved:
			continue
		case approval.StateNotApproved:
			data, err := approval.Calldata(spec)
			if err != nil {
				return plan, err
			}
			plan.Approvals = append(plan.Approvals, txflow.Step{
				Label: "Approving " + spec.Token.Hex(),
				Tx:    txflow.TxRequest{To: spec.Token, Data: data},
			})
		default:
			return plan, fmt.Errorf("approval state %s for %s", state, spec.Token.Hex())
		}
	}

	payment := sizing.ApplySlippage(best.AmountOut, params.SlippageBps)
	buy, err := BuySharesCall(params.BuyToken, payment, params.MinShares)
	if err != nil {
		return plan, err
	}
	execute, err := ExecuteCall(params.DAO, params.BuyToken, buy)
	if err != nil {
		return plan, err
	}
	sweep, err := SweepCall(params.ShareToken, p.session.Account)
	if err != nil {
		return plan, err
	}
	calls, err := Compose(best.Calls, execute, sweep)
	if err != nil {
		return plan, err
	}
	data, err := MulticallData(calls)
	if err != nil {
		return plan, err
	}

	p.logger.Info("join route composed",
		zap.String("router", best.Router.Hex()),
		zap.String("amount_out", best.AmountOut.String()),
		zap.Int("route_calls", len(best.Calls)),
		zap.Int("approvals", len(plan.Approvals)),
	)
	plan.Primary = txflow.Step{Tx: txflow.TxRequest{To: best.Router, Data: data, Value: best.Value}}
	return plan, nil
}
