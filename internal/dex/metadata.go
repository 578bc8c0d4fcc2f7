package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmzap/internal/chain"
	"farmzap/internal/model"
)

// ErrNoWETHSide is returned for pairs that do not hold weth.
var ErrNoWETHSide = errors.New("pair has no weth side")

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// FetchReserves reads a pair snapshot oriented so that Reserve0 is the weth
// side. The pair must contain weth.
func FetchReserves(ctx context.Context, caller chain.Caller, pair, weth common.Address, feeBps uint16) (model.PoolReserves, error) {
	if caller == nil {
		return model.PoolReserves{}, fmt.Errorf("contract caller is nil")
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, pairABI, "token0")
	if err != nil {
		return model.PoolReserves{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("token0: %w", err)
	}
	values, err = callMethod(ctx, caller, pair, pairABI, "token1")
	if err != nil {
		return model.PoolReserves{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("token1: %w", err)
	}
	if token0 != weth && token1 != weth {
		return model.PoolReserves{}, fmt.Errorf("%w: %s", ErrNoWETHSide, pair.Hex())
	}

	values, err = callMethod(ctx, caller, pair, pairABI, "getReserves")
	if err != nil {
		return model.PoolReserves{}, err
	}
	if len(values) < 2 {
		return model.PoolReserves{}, fmt.Errorf("getReserves return size %d", len(values))
	}
	reserveA, err := asBigInt(values[0])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve0: %w", err)
	}
	reserveB, err := asBigInt(values[1])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve1: %w", err)
	}

	reserves := model.PoolReserves{
		Pair:      pair.Hex(),
		Token:     token1.Hex(),
		Reserve0:  reserveA,
		Reserve1:  reserveB,
		FeeBps:    feeBps,
		FetchedAt: time.Now().UTC(),
	}
	if token1 == weth {
		reserves.Token = token0.Hex()
		reserves.Reserve0, reserves.Reserve1 = reserveB, reserveA
	}

	// Supply only sharpens the liquidity estimate.
	if values, err := callMethod(ctx, caller, pair, pairABI, "totalSupply"); err == nil {
		if supply, err := asBigInt(values[0]); err == nil {
			reserves.TotalSupply = supply
		}
	}
	return reserves, nil
}

// TokenBalance reads balanceOf(owner) on an ERC20 token.
func TokenBalance(ctx context.Context, caller chain.Caller, token, owner common.Address) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func callMethod(ctx context.Context, caller chain.Caller, contract common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller chain.Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
