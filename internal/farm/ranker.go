package farm

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"farmzap/internal/model"
)

const defaultEstimateConcurrency = 4

// Ranker filters migration targets and re-sorts them as yield estimates
// arrive.
type Ranker struct {
	estimator YieldEstimator
	limit     int
	logger    *zap.Logger
	now       func() time.Time
}

func NewRanker(estimator YieldEstimator, limit int, logger *zap.Logger) *Ranker {
	if limit <= 0 {
		limit = defaultEstimateConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{estimator: estimator, limit: limit, logger: logger, now: time.Now}
}

// SetClock overrides the time used to filter ended streams.
func (r *Ranker) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Rank publishes the filtered candidates to onUpdate immediately and again
// after every estimate resolves. Each published slice is a fresh copy in its
// final order. Estimator failures leave the candidate's yield unknown.
func (r *Ranker) Rank(ctx context.Context, source model.IncentiveStream, streams []model.IncentiveStream, onUpdate func([]Candidate)) ([]Candidate, error) {
	candidates := Filter(source, streams, r.now())
	Sort(candidates)

	var mu sync.Mutex
	publish := func() {
		if onUpdate == nil {
			return
		}
		snapshot := make([]Candidate, len(candidates))
		copy(snapshot, candidates)
		onUpdate(snapshot)
	}
	publish()

	if r.estimator == nil || len(candidates) == 0 {
		return candidates, nil
	}

	streamsToEstimate := make([]model.IncentiveStream, len(candidates))
	for i, c := range candidates {
		streamsToEstimate[i] = c.Stream
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, stream := range streamsToEstimate {
		g.Go(func() error {
			yield, err := r.estimator.Estimate(gctx, stream)
			if err != nil {
				r.logger.Warn("yield estimate failed", zap.String("chef_id", stream.ChefID), zap.Error(err))
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for i := range candidates {
				if model.SameID(candidates[i].Stream.ChefID, stream.ChefID) {
					candidates[i].Yield = decimal.NewNullDecimal(yield)
					break
				}
			}
			Sort(candidates)
			publish()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return candidates, nil
}
