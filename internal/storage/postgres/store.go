package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmzap/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_records (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	dialog TEXT NOT NULL,
	kind TEXT NOT NULL,
	phase TEXT NOT NULL,
	tx_hash TEXT,
	message TEXT,
	account TEXT,
	chain_id BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tx_records_run_idx ON tx_records (run_id, created_at);
CREATE TABLE IF NOT EXISTS incentive_streams (
	chef_id TEXT PRIMARY KEY,
	lp_id TEXT NOT NULL,
	reward_coin TEXT NOT NULL,
	total_shares NUMERIC,
	reward_amount NUMERIC,
	start_time BIGINT NOT NULL DEFAULT 0,
	end_time BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the transaction journal and the
// incentive stream index.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutTxBatch inserts journal records. Replayed ids are ignored.
func (s *Store) PutTxBatch(ctx context.Context, records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO tx_records (
				id, run_id, dialog, kind, phase, tx_hash, message, account, chain_id, created_at
			) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)
			ON CONFLICT (id) DO NOTHING
		`,
			record.ID,
			record.RunID,
			record.Dialog,
			record.Kind,
			record.Phase,
			record.TxHash,
			record.Message,
			record.Account,
			int64(record.ChainID),
			record.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertStreams inserts or updates incentive streams keyed by chef id.
func (s *Store) UpsertStreams(ctx context.Context, streams []model.IncentiveStream) error {
	if len(streams) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, stream := range streams {
		batch.Queue(`
			INSERT INTO incentive_streams (
				chef_id, lp_id, reward_coin, total_shares, reward_amount, start_time, end_time, status, updated_at
			) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, now())
			ON CONFLICT (chef_id)
			DO UPDATE SET
				lp_id = EXCLUDED.lp_id,
				reward_coin = EXCLUDED.reward_coin,
				total_shares = EXCLUDED.total_shares,
				reward_amount = EXCLUDED.reward_amount,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				status = EXCLUDED.status,
				updated_at = now()
		`,
			model.CanonicalID(stream.ChefID),
			model.CanonicalID(stream.LpID),
			stream.RewardCoin,
			numericText(stream.TotalShares),
			numericText(stream.RewardAmount),
			stream.StartTime,
			stream.EndTime,
			stream.Status,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range streams {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListStreams returns every indexed stream. Filtering happens in the ranker.
func (s *Store) ListStreams(ctx context.Context) ([]model.IncentiveStream, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chef_id, lp_id, reward_coin, total_shares::text, reward_amount::text, start_time, end_time, status
		FROM incentive_streams
		ORDER BY chef_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.IncentiveStream
	for rows.Next() {
		var (
			stream       model.IncentiveStream
			totalShares  *string
			rewardAmount *string
		)
		if err := rows.Scan(
			&stream.ChefID,
			&stream.LpID,
			&stream.RewardCoin,
			&totalShares,
			&rewardAmount,
			&stream.StartTime,
			&stream.EndTime,
			&stream.Status,
		); err != nil {
			return nil, err
		}
		if stream.TotalShares, err = parseNumeric(totalShares); err != nil {
			return nil, fmt.Errorf("stream %s total_shares: %w", stream.ChefID, err)
		}
		if stream.RewardAmount, err = parseNumeric(rewardAmount); err != nil {
			return nil, fmt.Errorf("stream %s reward_amount: %w", stream.ChefID, err)
		}
		out = append(out, stream)
	}
	return out, rows.Err()
}

// LastRun returns the records of the most recent lifecycle run.
func (s *Store) LastRun(ctx context.Context) ([]model.TxRecord, error) {
	var runID string
	err := s.pool.QueryRow(ctx, `
		SELECT run_id FROM tx_records ORDER BY created_at DESC LIMIT 1
	`).Scan(&runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, dialog, kind, phase, COALESCE(tx_hash, ''), COALESCE(message, ''), COALESCE(account, ''), chain_id, created_at
		FROM tx_records
		WHERE run_id = $1
		ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TxRecord
	for rows.Next() {
		var (
			record  model.TxRecord
			chainID int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.Dialog,
			&record.Kind,
			&record.Phase,
			&record.TxHash,
			&record.Message,
			&record.Account,
			&chainID,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.ChainID = uint64(chainID)
		out = append(out, record)
	}
	return out, rows.Err()
}

func numericText(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func parseNumeric(v *string) (*big.Int, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(*v, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric: %s", *v)
	}
	return n, nil
}
