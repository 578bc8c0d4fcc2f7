package route

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoRoute is returned when the quote service offers nothing usable.
	ErrNoRoute = errors.New("no route available")
	// ErrNoTrailingSweep is returned when a route does not end with a
	// sweepToken call that can be moved behind the composed action.
	ErrNoTrailingSweep = errors.New("route does not end with a sweep")
)

// Compose splices the execute and sweep calls in front of the route's own
// trailing sweep:
//
//	routeCalls[:n-1] + execute + sweep + routeCalls[n-1]
//
// so the router keeps custody of the swap output until execute consumes it.
func Compose(routeCalls [][]byte, execute, sweep []byte) ([][]byte, error) {
	n := len(routeCalls)
	if n == 0 {
		return nil, ErrNoRoute
	}
	last := routeCalls[n-1]
	ok, err := IsSweep(last)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoTrailingSweep
	}

	out := make([][]byte, 0, n+2)
	out = append(out, routeCalls[:n-1]...)
	out = append(out, execute, sweep, last)
	return out, nil
}

// IsSweep reports whether call is a sweepToken call.
func IsSweep(call []byte) (bool, error) {
	parsed, err := RouterABI()
	if err != nil {
		return false, fmt.Errorf("parse router abi: %w", err)
	}
	if len(call) < 4 {
		return false, nil
	}
	return bytes.Equal(call[:4], parsed.Methods["sweepToken"].ID), nil
}

// SweepCall forwards the router's whole balance of token to recipient.
func SweepCall(token, recipient common.Address) ([]byte, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return parsed.Pack("sweepToken", token, big.NewInt(0), recipient)
}

// ExecuteCall has the router approve target for its balance of token and
// call target with data.
func ExecuteCall(target, token common.Address, data []byte) ([]byte, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return parsed.Pack("execute", target, token, data)
}

// MulticallData wraps calls into one router transaction payload.
func MulticallData(calls [][]byte) ([]byte, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return parsed.Pack("multicall", calls)
}

// BuySharesCall pays paymentAmount of paymentToken into the DAO.
func BuySharesCall(paymentToken common.Address, paymentAmount, minShares *big.Int) ([]byte, error) {
	parsed, err := DAOABI()
	if err != nil {
		return nil, fmt.Errorf("parse dao abi: %w", err)
	}
	if minShares == nil {
		minShares = big.NewInt(0)
	}
	return parsed.Pack("buyShares", paymentToken, paymentAmount, minShares)
}
