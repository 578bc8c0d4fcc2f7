package dex

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"farmzap/internal/model"
)

var (
	testWETH  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testPair  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type pairCaller struct {
	mu       sync.Mutex
	token0   common.Address
	token1   common.Address
	reserve0 *big.Int
	reserve1 *big.Int
	supply   *big.Int
	calls    map[string]int
}

func (p *pairCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[method.Name]++
	p.mu.Unlock()

	switch method.Name {
	case "token0":
		return method.Outputs.Pack(p.token0)
	case "token1":
		return method.Outputs.Pack(p.token1)
	case "getReserves":
		return method.Outputs.Pack(p.reserve0, p.reserve1, uint32(0))
	case "totalSupply":
		if p.supply == nil {
			return nil, errors.New("execution reverted")
		}
		return method.Outputs.Pack(p.supply)
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func (p *pairCaller) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func TestFetchReservesOrientsWETHFirst(t *testing.T) {
	caller := &pairCaller{
		token0:   testToken,
		token1:   testWETH,
		reserve0: big.NewInt(50_000),
		reserve1: big.NewInt(100),
		supply:   big.NewInt(2_000),
	}

	reserves, err := FetchReserves(context.Background(), caller, testPair, testWETH, 30)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if reserves.Reserve0.Cmp(big.NewInt(100)) != 0 || reserves.Reserve1.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("unexpected orientation: %s/%s", reserves.Reserve0, reserves.Reserve1)
	}
	if reserves.Token != testToken.Hex() {
		t.Fatalf("unexpected token: %s", reserves.Token)
	}
	if reserves.TotalSupply == nil || reserves.TotalSupply.Int64() != 2_000 {
		t.Fatalf("unexpected supply: %v", reserves.TotalSupply)
	}
	if reserves.FeeBps != 30 {
		t.Fatalf("unexpected fee: %d", reserves.FeeBps)
	}
}

func TestFetchReservesWithoutSupply(t *testing.T) {
	caller := &pairCaller{
		token0:   testWETH,
		token1:   testToken,
		reserve0: big.NewInt(100),
		reserve1: big.NewInt(50_000),
	}

	reserves, err := FetchReserves(context.Background(), caller, testPair, testWETH, 30)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if reserves.TotalSupply != nil {
		t.Fatalf("expected unknown supply, got %s", reserves.TotalSupply)
	}
	if reserves.Reserve0.Int64() != 100 {
		t.Fatalf("unexpected reserve0: %s", reserves.Reserve0)
	}
}

func TestFetchReservesRejectsNonWETHPair(t *testing.T) {
	caller := &pairCaller{
		token0:   testToken,
		token1:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		reserve0: big.NewInt(1),
		reserve1: big.NewInt(1),
	}

	_, err := FetchReserves(context.Background(), caller, testPair, testWETH, 30)
	if !errors.Is(err, ErrNoWETHSide) {
		t.Fatalf("expected ErrNoWETHSide, got %v", err)
	}
}

type memSnapshots struct {
	mu   sync.Mutex
	data map[common.Address]model.PoolReserves
}

func (m *memSnapshots) Get(_ context.Context, pair common.Address) (model.PoolReserves, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.data[pair]
	return snap, ok, nil
}

func (m *memSnapshots) Set(_ context.Context, reserves model.PoolReserves) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[common.Address]model.PoolReserves{}
	}
	m.data[common.HexToAddress(reserves.Pair)] = reserves
	return nil
}

func (m *memSnapshots) Delete(_ context.Context, pair common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, pair)
	return nil
}

func TestReserveSourceHonoursStalenessBound(t *testing.T) {
	caller := &pairCaller{
		token0:   testWETH,
		token1:   testToken,
		reserve0: big.NewInt(100),
		reserve1: big.NewInt(50_000),
	}
	snapshots := &memSnapshots{}
	source := NewReserveSource(caller, ReserveConfig{WETH: testWETH, MaxAge: 10 * time.Second}, snapshots, nil)
	clock := time.Unix(1_700_000_000, 0)
	source.now = func() time.Time { return clock }

	ctx := context.Background()
	if _, err := source.Get(ctx, testPair); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := source.Get(ctx, testPair); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := caller.count("getReserves"); got != 1 {
		t.Fatalf("expected one chain read, got %d", got)
	}
	if _, ok, _ := snapshots.Get(ctx, testPair); !ok {
		t.Fatalf("expected snapshot in shared cache")
	}

	clock = clock.Add(11 * time.Second)
	caller.mu.Lock()
	caller.reserve0 = big.NewInt(120)
	caller.mu.Unlock()

	reserves, err := source.Get(ctx, testPair)
	if err != nil {
		t.Fatalf("third get: %v", err)
	}
	if got := caller.count("getReserves"); got != 2 {
		t.Fatalf("expected a re-read after expiry, got %d", got)
	}
	if reserves.Reserve0.Int64() != 120 {
		t.Fatalf("expected fresh reserve, got %s", reserves.Reserve0)
	}
}

func TestReserveSourceUsesSharedCache(t *testing.T) {
	caller := &pairCaller{token0: testWETH, token1: testToken}
	clock := time.Unix(1_700_000_000, 0)
	snapshots := &memSnapshots{data: map[common.Address]model.PoolReserves{
		testPair: {
			Pair:      testPair.Hex(),
			Reserve0:  big.NewInt(7),
			Reserve1:  big.NewInt(9),
			FetchedAt: clock.Add(-time.Second),
		},
	}}
	source := NewReserveSource(caller, ReserveConfig{WETH: testWETH}, snapshots, nil)
	source.now = func() time.Time { return clock }

	reserves, err := source.Get(context.Background(), testPair)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reserves.Reserve0.Int64() != 7 {
		t.Fatalf("expected cached snapshot, got %s", reserves.Reserve0)
	}
	if got := caller.count("getReserves"); got != 0 {
		t.Fatalf("expected no chain read, got %d", got)
	}
}

func TestReserveSourceInvalidate(t *testing.T) {
	caller := &pairCaller{
		token0:   testWETH,
		token1:   testToken,
		reserve0: big.NewInt(100),
		reserve1: big.NewInt(50_000),
	}
	snapshots := &memSnapshots{}
	source := NewReserveSource(caller, ReserveConfig{WETH: testWETH}, snapshots, nil)

	ctx := context.Background()
	if _, err := source.Get(ctx, testPair); err != nil {
		t.Fatalf("get: %v", err)
	}
	source.Invalidate(ctx, testPair)
	if _, ok, _ := snapshots.Get(ctx, testPair); ok {
		t.Fatalf("expected shared snapshot to be deleted")
	}
	if _, err := source.Get(ctx, testPair); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if got := caller.count("getReserves"); got != 2 {
		t.Fatalf("expected a re-read after invalidate, got %d", got)
	}
}

type tokenCaller struct {
	*pairCaller
	metaCalls int
}

func (c *tokenCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if msg.To == nil || *msg.To != testToken {
		return c.pairCaller.CallContract(ctx, msg, block)
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	c.metaCalls++
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(uint8(18))
	case "symbol":
		return method.Outputs.Pack("TKN")
	case "name":
		return method.Outputs.Pack("Token")
	}
	return nil, errors.New("unexpected method " + method.Name)
}

func TestReserveSourcePairedTokenIsCached(t *testing.T) {
	caller := &tokenCaller{pairCaller: &pairCaller{
		token0:   testToken,
		token1:   testWETH,
		reserve0: big.NewInt(50_000),
		reserve1: big.NewInt(100),
	}}
	source := NewReserveSource(caller, ReserveConfig{WETH: testWETH}, nil, nil)

	ctx := context.Background()
	meta, err := source.PairedToken(ctx, testPair)
	if err != nil {
		t.Fatalf("paired token: %v", err)
	}
	if meta.Symbol != "TKN" || meta.Decimals != 18 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	calls := caller.metaCalls
	if _, err := source.PairedToken(ctx, testPair); err != nil {
		t.Fatalf("second paired token: %v", err)
	}
	if caller.metaCalls != calls {
		t.Fatalf("expected cached metadata, got %d extra calls", caller.metaCalls-calls)
	}
}
