package farm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"farmzap/internal/chain"
)

const chefABIJSON = `[
  {"inputs": [{"name": "pid", "type": "uint256"}, {"name": "amount", "type": "uint256"}], "name": "deposit", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "pid", "type": "uint256"}, {"name": "amount", "type": "uint256"}], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "fromPid", "type": "uint256"}, {"name": "toPid", "type": "uint256"}, {"name": "amount", "type": "uint256"}], "name": "migrate", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "pid", "type": "uint256"}, {"name": "minLiquidity", "type": "uint256"}], "name": "zapETH", "outputs": [{"name": "liquidity", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "pid", "type": "uint256"}, {"name": "user", "type": "address"}], "name": "userInfo", "outputs": [{"name": "amount", "type": "uint256"}, {"name": "rewardDebt", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "pid", "type": "uint256"}], "name": "maxZap", "outputs": [{"name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	chefABI     abi.ABI
	chefABIOnce sync.Once
	chefABIErr  error
)

// ChefABI returns the parsed farm contract ABI.
func ChefABI() (abi.ABI, error) {
	chefABIOnce.Do(func() {
		chefABI, chefABIErr = abi.JSON(strings.NewReader(chefABIJSON))
	})
	return chefABI, chefABIErr
}

func pack(method string, args ...interface{}) ([]byte, error) {
	parsed, err := ChefABI()
	if err != nil {
		return nil, fmt.Errorf("parse chef abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

func DepositCall(pid, amount *big.Int) ([]byte, error) {
	return pack("deposit", pid, amount)
}

func WithdrawCall(pid, amount *big.Int) ([]byte, error) {
	return pack("withdraw", pid, amount)
}

func MigrateCall(fromPid, toPid, amount *big.Int) ([]byte, error) {
	return pack("migrate", fromPid, toPid, amount)
}

// ZapCall is sent with the full ETH amount as value. The contract refunds
// any remainder left after adding liquidity.
func ZapCall(pid, minLiquidity *big.Int) ([]byte, error) {
	return pack("zapETH", pid, minLiquidity)
}

// StakedAmount reads the LP amount user has staked in pid.
func StakedAmount(ctx context.Context, caller chain.Caller, chef common.Address, pid *big.Int, user common.Address) (*big.Int, error) {
	values, err := call(ctx, caller, chef, "userInfo", pid, user)
	if err != nil {
		return nil, err
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("userInfo unexpected type %T", values[0])
	}
	return amount, nil
}

// ZapCap reads the pool-imposed zap maximum. Zero means uncapped and is
// returned as nil.
func ZapCap(ctx context.Context, caller chain.Caller, chef common.Address, pid *big.Int) (*big.Int, error) {
	values, err := call(ctx, caller, chef, "maxZap", pid)
	if err != nil {
		return nil, err
	}
	limit, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("maxZap unexpected type %T", values[0])
	}
	if limit.Sign() == 0 {
		return nil, nil
	}
	return limit, nil
}

func call(ctx context.Context, caller chain.Caller, chef common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := pack(method, args...)
	if err != nil {
		return nil, err
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &chef, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	parsed, _ := ChefABI()
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}
