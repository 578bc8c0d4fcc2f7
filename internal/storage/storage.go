package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"farmzap/internal/model"
)

const recordTimeout = 5 * time.Second

// Journal is a sink for lifecycle transition records.
type Journal interface {
	PutTxBatch(ctx context.Context, records []model.TxRecord) error
}

// StreamSource lists incentive streams known to the indexer.
type StreamSource interface {
	ListStreams(ctx context.Context) ([]model.IncentiveStream, error)
}

// JournalRecorder adapts a Journal to the lifecycle recorder hook. Write
// failures are logged and never reach the lifecycle.
type JournalRecorder struct {
	journal Journal
	logger  *zap.Logger
}

func NewJournalRecorder(journal Journal, logger *zap.Logger) *JournalRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalRecorder{journal: journal, logger: logger}
}

func (r *JournalRecorder) Record(record model.TxRecord) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.journal.PutTxBatch(ctx, []model.TxRecord{record}); err != nil {
		r.logger.Warn("journal write failed", zap.String("run_id", record.RunID), zap.String("phase", record.Phase), zap.Error(err))
	}
}
