package sizing

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"farmzap/internal/model"
)

// DefaultDebounce is the delay between the last input change and a
// recomputation.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer recomputes zap calculations after input settles. Every request
// gets a generation number; results for an older generation are dropped.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	compute  func(Input) model.ZapCalculation
	onResult func(model.ZapCalculation)
	logger   *zap.Logger

	generation uint64
	timer      *time.Timer
	latest     model.ZapCalculation
	hasLatest  bool
}

// NewDebouncer creates a debouncer. onResult may be nil.
func NewDebouncer(delay time.Duration, onResult func(model.ZapCalculation), logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		delay:    delay,
		compute:  Calculate,
		onResult: onResult,
		logger:   logger,
	}
}

// Request schedules a recomputation for in and supersedes any pending one.
func (d *Debouncer) Request(in Input) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation++
	gen := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.run(gen, in)
	})
	return gen
}

// Flush cancels any pending timer and computes in synchronously. Submit paths
// use it so a transaction is never built from a stale calculation.
func (d *Debouncer) Flush(in Input) model.ZapCalculation {
	d.mu.Lock()
	d.generation++
	gen := d.generation
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	calc, _ := d.commit(gen, d.compute(in))
	return calc
}

// Latest returns the most recently committed calculation.
func (d *Debouncer) Latest() (model.ZapCalculation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest, d.hasLatest
}

// Generation returns the newest requested generation.
func (d *Debouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Stop clears any pending recomputation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) run(gen uint64, in Input) {
	d.commit(gen, d.compute(in))
}

func (d *Debouncer) commit(gen uint64, calc model.ZapCalculation) (model.ZapCalculation, bool) {
	calc.Generation = gen

	d.mu.Lock()
	if gen != d.generation {
		latest := d.generation
		d.mu.Unlock()
		d.logger.Debug("drop stale zap calculation", zap.Uint64("generation", gen), zap.Uint64("latest", latest))
		return calc, false
	}
	d.latest = calc
	d.hasLatest = true
	cb := d.onResult
	d.mu.Unlock()

	if cb != nil {
		cb(calc)
	}
	return calc, true
}
