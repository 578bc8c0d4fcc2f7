package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"farmzap/internal/sizing"
	"farmzap/internal/txflow"
)

// ConfirmingWallet asks for approval on a terminal before every send. Any
// answer other than yes is reported as a user rejection.
type ConfirmingWallet struct {
	next txflow.Wallet
	in   *bufio.Reader
	out  io.Writer
}

func NewConfirmingWallet(next txflow.Wallet, in io.Reader, out io.Writer) *ConfirmingWallet {
	return &ConfirmingWallet{next: next, in: bufio.NewReader(in), out: out}
}

func (w *ConfirmingWallet) Send(ctx context.Context, req txflow.TxRequest) (common.Hash, error) {
	value := "0"
	if req.Value != nil {
		value = sizing.FormatEther(req.Value)
	}
	selector := "none"
	if len(req.Data) >= 4 {
		selector = fmt.Sprintf("0x%x", req.Data[:4])
	}
	fmt.Fprintf(w.out, "send to %s value %s ETH selector %s (%d bytes)? [y/N] ", req.To.Hex(), value, selector, len(req.Data))

	answer, err := w.in.ReadString('\n')
	if err != nil && answer == "" {
		return common.Hash{}, fmt.Errorf("%w: %w", txflow.ErrUserRejected, err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return w.next.Send(ctx, req)
	default:
		return common.Hash{}, txflow.ErrUserRejected
	}
}

func (w *ConfirmingWallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return w.next.WaitReceipt(ctx, hash)
}
