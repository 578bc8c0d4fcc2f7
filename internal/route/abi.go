package route

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const routerABIJSON = `[
  {"inputs": [{"name": "data", "type": "bytes[]"}], "name": "multicall", "outputs": [{"name": "results", "type": "bytes[]"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "token", "type": "address"}, {"name": "amountMinimum", "type": "uint256"}, {"name": "recipient", "type": "address"}], "name": "sweepToken", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"name": "target", "type": "address"}, {"name": "token", "type": "address"}, {"name": "data", "type": "bytes"}], "name": "execute", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

const daoABIJSON = `[
  {"inputs": [{"name": "paymentToken", "type": "address"}, {"name": "paymentAmount", "type": "uint256"}, {"name": "minShares", "type": "uint256"}], "name": "buyShares", "outputs": [{"name": "shares", "type": "uint256"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	routerABI     abi.ABI
	routerABIOnce sync.Once
	routerABIErr  error
	daoABI        abi.ABI
	daoABIOnce    sync.Once
	daoABIErr     error
)

// RouterABI returns the parsed swap router ABI.
func RouterABI() (abi.ABI, error) {
	routerABIOnce.Do(func() {
		routerABI, routerABIErr = abi.JSON(strings.NewReader(routerABIJSON))
	})
	return routerABI, routerABIErr
}

// DAOABI returns the parsed DAO share sale ABI.
func DAOABI() (abi.ABI, error) {
	daoABIOnce.Do(func() {
		daoABI, daoABIErr = abi.JSON(strings.NewReader(daoABIJSON))
	})
	return daoABI, daoABIErr
}
