package txflow

import "github.com/ethereum/go-ethereum/common"

// Phase is the coarse lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseConfirming
	PhaseSuccess
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseConfirming:
		return "confirming"
	case PhaseSuccess:
		return "success"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a tagged lifecycle value. Only the constructors below build one,
// so a status can never be both failed and successful.
type Status struct {
	phase   Phase
	message string
	txHash  common.Hash
}

// Idle is the resting state.
func Idle() Status { return Status{phase: PhaseIdle} }

// Pending means a transaction is awaiting the signer or broadcast. message
// names an approval sub-step when one is running.
func Pending(message string) Status { return Status{phase: PhasePending, message: message} }

// Confirming means a transaction was broadcast and awaits inclusion.
func Confirming(hash common.Hash, message string) Status {
	return Status{phase: PhaseConfirming, txHash: hash, message: message}
}

// Succeeded means the primary transaction was mined successfully.
func Succeeded(hash common.Hash) Status { return Status{phase: PhaseSuccess, txHash: hash} }

// Failed carries a user-facing error message.
func Failed(message string) Status { return Status{phase: PhaseError, message: message} }

func (s Status) Phase() Phase        { return s.phase }
func (s Status) Message() string     { return s.message }
func (s Status) TxHash() common.Hash { return s.txHash }

// Busy reports whether a transaction is in flight.
func (s Status) Busy() bool {
	return s.phase == PhasePending || s.phase == PhaseConfirming
}

// Terminal reports whether the status auto-resets to idle.
func (s Status) Terminal() bool {
	return s.phase == PhaseSuccess || s.phase == PhaseError
}

func (s Status) String() string {
	switch s.phase {
	case PhasePending:
		if s.message != "" {
			return "pending: " + s.message
		}
	case PhaseConfirming:
		if s.message != "" {
			return "confirming " + s.txHash.Hex() + ": " + s.message
		}
		return "confirming " + s.txHash.Hex()
	case PhaseSuccess:
		return "success " + s.txHash.Hex()
	case PhaseError:
		return "error: " + s.message
	}
	return s.phase.String()
}
