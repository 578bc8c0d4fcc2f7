package route

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/approval"
	"farmzap/internal/model"
)

var (
	routerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	sellAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	sellAddr2  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type stubQuoter struct {
	routes []Route
	err    error
	last   QuoteRequest
}

func (q *stubQuoter) Quote(_ context.Context, req QuoteRequest) ([]Route, error) {
	q.last = req
	return q.routes, q.err
}

type allowanceCaller struct {
	allowances map[common.Address]*big.Int
	operators  map[common.Address]bool
}

func (c allowanceCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := approval.ABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, errors.New("execution reverted")
	}
	switch method.Name {
	case "allowance":
		value, ok := c.allowances[*msg.To]
		if !ok {
			value = big.NewInt(0)
		}
		return method.Outputs.Pack(value)
	case "isApprovedForAll":
		return method.Outputs.Pack(c.operators[*msg.To])
	default:
		return nil, errors.New("execution reverted")
	}
}

func joinParams() JoinParams {
	return JoinParams{
		DAO:         daoAddr,
		ShareToken:  shareAddr,
		SellToken:   sellAddr,
		BuyToken:    tokenOut,
		Amount:      "2",
		Decimals:    18,
		SlippageBps: 100,
	}
}

func TestJoinPlanComposesMulticall(t *testing.T) {
	route := swapCalls(t, 3)
	quoter := &stubQuoter{routes: []Route{{
		AmountOut: big.NewInt(1_000_000),
		Router:    routerAddr,
		Approvals: []approval.Spec{
			{Token: sellAddr, Spender: routerAddr, Amount: big.NewInt(2)},
			{Token: sellAddr2, Spender: routerAddr, Amount: big.NewInt(5)},
		},
		Calls: route,
	}}}
	caller := allowanceCaller{allowances: map[common.Address]*big.Int{sellAddr2: big.NewInt(10)}}
	planner := NewJoinPlanner(quoter, routerAddr, caller, model.Session{Account: userAddr}, nil)

	req := planner.Request(joinParams())
	ctx := context.Background()
	require.NoError(t, req.Validate(ctx))
	plan, err := req.Prepare(ctx)
	require.NoError(t, err)

	assert.Equal(t, routerAddr, quoter.last.Recipient)
	assert.Equal(t, SideSell, quoter.last.Side)
	assert.Equal(t, uint16(100), quoter.last.SlippageBps)

	require.Len(t, plan.Approvals, 1)
	assert.Equal(t, sellAddr, plan.Approvals[0].Tx.To)

	assert.Equal(t, routerAddr, plan.Primary.Tx.To)
	parsed, err := RouterABI()
	require.NoError(t, err)
	method, err := parsed.MethodById(plan.Primary.Tx.Data[:4])
	require.NoError(t, err)
	require.Equal(t, "multicall", method.Name)
	args, err := method.Inputs.Unpack(plan.Primary.Tx.Data[4:])
	require.NoError(t, err)
	calls := args[0].([][]byte)

	require.Len(t, calls, len(route)+2)
	assert.True(t, bytes.Equal(route[len(route)-1], calls[len(calls)-1]))

	execMethod, err := parsed.MethodById(calls[len(route)-1][:4])
	require.NoError(t, err)
	assert.Equal(t, "execute", execMethod.Name)
	execArgs, err := execMethod.Inputs.Unpack(calls[len(route)-1][4:])
	require.NoError(t, err)
	assert.Equal(t, daoAddr, execArgs[0].(common.Address))

	dao, err := DAOABI()
	require.NoError(t, err)
	buyArgs, err := dao.Methods["buyShares"].Inputs.Unpack(execArgs[2].([]byte)[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(990_000), buyArgs[1].(*big.Int).Int64())

	sweepArgs, err := parsed.Methods["sweepToken"].Inputs.Unpack(calls[len(route)][4:])
	require.NoError(t, err)
	assert.Equal(t, shareAddr, sweepArgs[0].(common.Address))
	assert.Equal(t, userAddr, sweepArgs[2].(common.Address))
}

func TestJoinPreviewWithoutRoutes(t *testing.T) {
	planner := NewJoinPlanner(&stubQuoter{}, routerAddr, allowanceCaller{}, model.Session{Account: userAddr}, nil)
	_, err := planner.Preview(context.Background(), joinParams())
	assert.ErrorIs(t, err, ErrNoRoute)

	planner = NewJoinPlanner(&stubQuoter{err: errors.New("503")}, routerAddr, allowanceCaller{}, model.Session{Account: userAddr}, nil)
	_, err = planner.Preview(context.Background(), joinParams())
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestJoinRejectsRouteWithoutSweep(t *testing.T) {
	quoter := &stubQuoter{routes: []Route{{
		AmountOut: big.NewInt(1),
		Calls:     [][]byte{{0xde, 0xad, 0xbe, 0xef}},
	}}}
	planner := NewJoinPlanner(quoter, routerAddr, allowanceCaller{}, model.Session{Account: userAddr}, nil)
	req := planner.Request(joinParams())
	require.NoError(t, req.Validate(context.Background()))
	_, err := req.Prepare(context.Background())
	assert.ErrorIs(t, err, ErrNoTrailingSweep)
}

func TestJoinValidation(t *testing.T) {
	planner := NewJoinPlanner(&stubQuoter{}, routerAddr, allowanceCaller{}, model.Session{Account: userAddr}, nil)

	params := joinParams()
	params.Amount = "0"
	assert.Error(t, planner.Request(params).Validate(context.Background()))

	params = joinParams()
	params.SlippageBps = 1
	assert.Error(t, planner.Request(params).Validate(context.Background()))

	params = joinParams()
	params.DAO = common.Address{}
	assert.Error(t, planner.Request(params).Validate(context.Background()))
}

func TestJoinPlanOperatorApproval(t *testing.T) {
	quoter := &stubQuoter{routes: []Route{{
		AmountOut: big.NewInt(1_000_000),
		Router:    routerAddr,
		Approvals: []approval.Spec{
			{Kind: approval.KindOperator, Token: sellAddr, Spender: routerAddr},
			{Kind: approval.KindOperator, Token: sellAddr2, Spender: routerAddr},
		},
		Calls: swapCalls(t, 2),
	}}}
	caller := allowanceCaller{operators: map[common.Address]bool{sellAddr2: true}}
	planner := NewJoinPlanner(quoter, routerAddr, caller, model.Session{Account: userAddr}, nil)

	req := planner.Request(joinParams())
	require.NoError(t, req.Validate(context.Background()))
	plan, err := req.Prepare(context.Background())
	require.NoError(t, err)

	require.Len(t, plan.Approvals, 1)
	assert.Equal(t, sellAddr, plan.Approvals[0].Tx.To)
	parsed, err := approval.ABI()
	require.NoError(t, err)
	method, err := parsed.MethodById(plan.Approvals[0].Tx.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "setApprovalForAll", method.Name)
	args, err := method.Inputs.Unpack(plan.Approvals[0].Tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, routerAddr, args[0].(common.Address))
	assert.Equal(t, true, args[1].(bool))
}

func TestJoinZeroDecimalsParsesWholeUnits(t *testing.T) {
	quoter := &stubQuoter{routes: []Route{{AmountOut: big.NewInt(1), Router: routerAddr, Calls: swapCalls(t, 1)}}}
	planner := NewJoinPlanner(quoter, routerAddr, allowanceCaller{}, model.Session{Account: userAddr}, nil)

	params := joinParams()
	params.Decimals = 0
	params.Amount = "7"
	_, err := planner.Preview(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(7), quoter.last.Amount.Int64())

	params.Amount = "1.5"
	_, err = planner.Preview(context.Background(), params)
	assert.Error(t, err)
}
