package txflow

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrBusy is returned when a submit arrives while a transaction is in flight.
	ErrBusy = errors.New("transaction already in flight")
	// ErrInvalid wraps pre-submission validation failures.
	ErrInvalid = errors.New("invalid input")
	// ErrUserRejected is returned by signers when the user declines.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrReverted means the transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted")
	// ErrClosed is returned after the lifecycle was closed.
	ErrClosed = errors.New("lifecycle closed")
)

// DefaultErrorMessage is shown when a failure carries no message of its own.
const DefaultErrorMessage = "Transaction failed. Please try again."

// EIP-1193 "User Rejected Request".
const userRejectedCode = 4001

// IsUserRejection reports whether err is an intentional wallet rejection
// rather than a fault.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// ErrorMessage picks the user-facing message for err, falling back to
// fallback when err has none.
func ErrorMessage(err error, fallback string) string {
	if fallback == "" {
		fallback = DefaultErrorMessage
	}
	if err == nil {
		return fallback
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fallback
	}
	return msg
}
