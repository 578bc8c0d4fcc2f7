package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmzap/internal/model"
)

const (
	// DefaultSuccessReset is how long success stays visible.
	DefaultSuccessReset = 3 * time.Second
	// DefaultErrorReset is how long an error stays visible.
	DefaultErrorReset = 5 * time.Second
)

// Recorder receives every lifecycle transition.
type Recorder interface {
	Record(record model.TxRecord)
}

// Config controls lifecycle behavior.
type Config struct {
	Dialog       string
	SuccessReset time.Duration
	ErrorReset   time.Duration
	GenericError string
}

// Lifecycle drives one dialog's transactions through
// idle -> pending -> confirming -> success|error, with timed resets.
// Only one submit runs at a time.
type Lifecycle struct {
	cfg      Config
	wallet   Wallet
	session  model.Session
	recorder Recorder
	logger   *zap.Logger

	mu          sync.Mutex
	status      Status
	inFlight    bool
	closed      bool
	run         uint64
	runID       string
	kind        string
	timer       *time.Timer
	pendingDone func()
	subscribers []func(Status)
	resetHooks  []func()
}

// NewLifecycle creates an idle lifecycle for one dialog.
func NewLifecycle(cfg Config, wallet Wallet, session model.Session, recorder Recorder, logger *zap.Logger) *Lifecycle {
	if cfg.SuccessReset <= 0 {
		cfg.SuccessReset = DefaultSuccessReset
	}
	if cfg.ErrorReset <= 0 {
		cfg.ErrorReset = DefaultErrorReset
	}
	if cfg.GenericError == "" {
		cfg.GenericError = DefaultErrorMessage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		cfg:      cfg,
		wallet:   wallet,
		session:  session,
		recorder: recorder,
		logger:   logger.With(zap.String("dialog", cfg.Dialog)),
		status:   Idle(),
	}
}

// Status returns the current status.
func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// CanSubmit reports whether the submit control should be enabled.
func (l *Lifecycle) CanSubmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && !l.inFlight && !l.status.Busy()
}

// Subscribe registers fn for every status change.
func (l *Lifecycle) Subscribe(fn func(Status)) {
	l.mu.Lock()
	l.subscribers = append(l.subscribers, fn)
	l.mu.Unlock()
}

// OnReset registers a hook run when a success resets to idle, typically to
// clear dependent form fields.
func (l *Lifecycle) OnReset(fn func()) {
	l.mu.Lock()
	l.resetHooks = append(l.resetHooks, fn)
	l.mu.Unlock()
}

// Close stops pending timers and further notifications. Broadcast
// transactions are not affected.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.pendingDone = nil
}

// Submit validates req, prepares a fresh plan, mines its approvals in order
// and then the primary transaction. It blocks until the run reaches success,
// error, or idle after a user rejection, and returns that status.
func (l *Lifecycle) Submit(ctx context.Context, req Request) (Status, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return l.Status(), ErrClosed
	}
	if l.inFlight || l.status.Busy() {
		status := l.status
		l.mu.Unlock()
		return status, ErrBusy
	}
	l.inFlight = true
	l.mu.Unlock()

	if req.Validate != nil {
		if err := req.Validate(ctx); err != nil {
			l.mu.Lock()
			l.inFlight = false
			status := l.status
			l.mu.Unlock()
			return status, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	l.begin(req.Kind)
	defer func() {
		l.mu.Lock()
		l.inFlight = false
		l.mu.Unlock()
	}()

	hash, err := l.execute(ctx, req)
	if err != nil {
		return l.fail(err), err
	}
	return l.succeed(hash, req.OnSuccess), nil
}

// begin settles any terminal state left from a previous run and opens a new
// run in pending.
func (l *Lifecycle) begin(kind string) {
	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	done := l.pendingDone
	l.pendingDone = nil
	l.run++
	l.runID = uuid.NewString()
	l.kind = kind
	l.mu.Unlock()

	if done != nil {
		done()
	}
	l.transition(Pending(""))
}

func (l *Lifecycle) execute(ctx context.Context, req Request) (common.Hash, error) {
	if l.wallet == nil {
		return common.Hash{}, fmt.Errorf("wallet is not connected")
	}
	if req.Prepare == nil {
		return common.Hash{}, fmt.Errorf("request has no plan")
	}

	plan, err := req.Prepare(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	for _, step := range plan.Approvals {
		label := step.Label
		if label == "" {
			label = "approval"
		}
		l.transition(Pending(label))
		hash, err := l.wallet.Send(ctx, step.Tx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("send %s: %w", label, err)
		}
		l.transition(Confirming(hash, label))
		if err := l.waitMined(ctx, hash); err != nil {
			return common.Hash{}, fmt.Errorf("%s: %w", label, err)
		}
	}

	l.transition(Pending(""))
	hash, err := l.wallet.Send(ctx, plan.Primary.Tx)
	if err != nil {
		return common.Hash{}, err
	}
	l.transition(Confirming(hash, ""))
	if err := l.waitMined(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}

func (l *Lifecycle) waitMined(ctx context.Context, hash common.Hash) error {
	receipt, err := l.wallet.WaitReceipt(ctx, hash)
	if err != nil {
		return err
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
	}
	return nil
}

func (l *Lifecycle) succeed(hash common.Hash, onSuccess func(common.Hash)) Status {
	status := Succeeded(hash)
	l.transition(status)

	var once sync.Once
	done := func() {
		once.Do(func() {
			l.mu.Lock()
			hooks := append([]func(){}, l.resetHooks...)
			l.mu.Unlock()
			for _, hook := range hooks {
				hook()
			}
			if onSuccess != nil {
				onSuccess(hash)
			}
		})
	}
	l.scheduleReset(l.cfg.SuccessReset, done)
	return status
}

func (l *Lifecycle) fail(err error) Status {
	if IsUserRejection(err) {
		l.logger.Info("request rejected by user", zap.Error(err))
		l.transition(Idle())
		return Idle()
	}

	message := ErrorMessage(err, l.cfg.GenericError)
	if errors.Is(err, context.Canceled) {
		message = l.cfg.GenericError
	}
	l.logger.Error("transaction failed", zap.Error(err))
	status := Failed(message)
	l.transition(status)
	l.scheduleReset(l.cfg.ErrorReset, nil)
	return status
}

// scheduleReset arms the return to idle for the current run. done runs
// exactly once, either on the timer or when a new run starts first.
func (l *Lifecycle) scheduleReset(delay time.Duration, done func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	run := l.run
	l.pendingDone = done
	l.timer = time.AfterFunc(delay, func() {
		l.mu.Lock()
		if l.closed || l.run != run || !l.status.Terminal() {
			l.mu.Unlock()
			return
		}
		l.timer = nil
		cb := l.pendingDone
		l.pendingDone = nil
		l.mu.Unlock()

		if cb != nil {
			cb()
		}

		l.mu.Lock()
		if l.closed || l.run != run {
			l.mu.Unlock()
			return
		}
		l.publish(Idle())
	})
}

func (l *Lifecycle) transition(status Status) {
	l.mu.Lock()
	l.publish(status)
}

// publish stores status and notifies the recorder and subscribers. It must be
// called with l.mu held and releases it.
func (l *Lifecycle) publish(status Status) {
	l.status = status
	closed := l.closed
	subscribers := append([]func(Status){}, l.subscribers...)
	record := model.TxRecord{
		ID:        uuid.NewString(),
		RunID:     l.runID,
		Dialog:    l.cfg.Dialog,
		Kind:      l.kind,
		Phase:     status.Phase().String(),
		Message:   status.Message(),
		Account:   l.session.Account.Hex(),
		ChainID:   l.session.ChainIDValue(),
		CreatedAt: time.Now().UTC(),
	}
	if status.TxHash() != (common.Hash{}) {
		record.TxHash = status.TxHash().Hex()
	}
	l.mu.Unlock()

	l.logger.Debug("status", zap.String("phase", record.Phase), zap.String("message", record.Message), zap.String("tx_hash", record.TxHash))
	if l.recorder != nil {
		l.recorder.Record(record)
	}
	if closed {
		return
	}
	for _, fn := range subscribers {
		fn(status)
	}
}
