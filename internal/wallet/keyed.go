package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"farmzap/internal/txflow"
)

// Gas estimates are padded by this percentage.
const gasBufferPercent = 20

// Backend is the chain access a keyed wallet needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// KeyedWallet signs EIP-1559 transactions with a local private key.
type KeyedWallet struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer
	logger  *zap.Logger

	// Serializes nonce assignment.
	mu sync.Mutex

	sentMu sync.Mutex
	sent   map[common.Hash]*types.Transaction
}

var _ txflow.Wallet = (*KeyedWallet)(nil)

func NewKeyedWallet(backend Backend, hexKey string, chainID *big.Int, logger *zap.Logger) (*KeyedWallet, error) {
	if backend == nil {
		return nil, fmt.Errorf("wallet backend is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyedWallet{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
		signer:  types.LatestSignerForChainID(chainID),
		logger:  logger,
		sent:    make(map[common.Hash]*types.Transaction),
	}, nil
}

// Address is the signing account.
func (w *KeyedWallet) Address() common.Address {
	return w.from
}

func (w *KeyedWallet) Send(ctx context.Context, req txflow.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.from,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * gasBufferPercent / 100

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, w.signer, w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	w.sentMu.Lock()
	w.sent[signed.Hash()] = signed
	w.sentMu.Unlock()

	w.logger.Info("transaction sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return signed.Hash(), nil
}

// WaitReceipt waits for a transaction this wallet sent. Lookup errors on a
// broadcast transaction keep the wait going; only ctx ends it early.
func (w *KeyedWallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	w.sentMu.Lock()
	tx, ok := w.sent[hash]
	w.sentMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transaction %s was not sent by this wallet", hash.Hex())
	}

	receipt, err := w.backend.WaitMined(ctx, tx)
	if err != nil {
		return nil, err
	}

	w.sentMu.Lock()
	delete(w.sent, hash)
	w.sentMu.Unlock()
	return receipt, nil
}
