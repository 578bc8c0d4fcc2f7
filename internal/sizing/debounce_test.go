package sizing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/model"
)

type resultSink struct {
	mu      sync.Mutex
	results []model.ZapCalculation
}

func (s *resultSink) add(calc model.ZapCalculation) {
	s.mu.Lock()
	s.results = append(s.results, calc)
	s.mu.Unlock()
}

func (s *resultSink) snapshot() []model.ZapCalculation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ZapCalculation(nil), s.results...)
}

func TestDebouncerCoalescesRapidInput(t *testing.T) {
	sink := &resultSink{}
	d := NewDebouncer(20*time.Millisecond, sink.add, nil)
	defer d.Stop()

	for _, amount := range []string{"0", "0.", "0.5", "1"} {
		d.Request(Input{Amount: amount, Reserves: sampleReserves(), SlippageBps: 500})
	}

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	results := sink.snapshot()
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
	assert.Equal(t, ether(1).String(), results[0].Amount.String())
	assert.Equal(t, d.Generation(), results[0].Generation)
}

func TestDebouncerDropsSupersededResult(t *testing.T) {
	sink := &resultSink{}
	d := NewDebouncer(time.Hour, sink.add, nil)
	defer d.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	d.compute = func(in Input) model.ZapCalculation {
		close(started)
		<-release
		return Calculate(in)
	}

	d.mu.Lock()
	d.generation++
	old := d.generation
	d.mu.Unlock()
	go d.run(old, Input{Amount: "1", Reserves: sampleReserves(), SlippageBps: 500})
	<-started

	// A newer request arrives while the old computation is in flight.
	d.Request(Input{Amount: "2", Reserves: sampleReserves(), SlippageBps: 500})
	close(release)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
	_, ok := d.Latest()
	assert.False(t, ok)
}

func TestDebouncerFlushComputesSynchronously(t *testing.T) {
	d := NewDebouncer(time.Hour, nil, nil)
	defer d.Stop()

	d.Request(Input{Amount: "5", Reserves: sampleReserves(), SlippageBps: 500})
	calc := d.Flush(Input{Amount: "1", Reserves: sampleReserves(), SlippageBps: 500})
	require.True(t, calc.IsValid)

	latest, ok := d.Latest()
	require.True(t, ok)
	assert.Equal(t, calc.Generation, latest.Generation)
	assert.Equal(t, ether(1).String(), latest.Amount.String())
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	sink := &resultSink{}
	d := NewDebouncer(10*time.Millisecond, sink.add, nil)
	d.Request(Input{Amount: "1", Reserves: sampleReserves(), SlippageBps: 500})
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
}
