package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chainscan/internal/model"
)

// Store provides Postgres persistence for logs, decoded events and
// scan resume state.
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

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS logs (
			chain_id     BIGINT NOT NULL,
			block_number BIGINT NOT NULL,
			block_hash   TEXT NOT NULL,
			tx_hash      TEXT NOT NULL,
			tx_index     BIGINT NOT NULL,
			log_index    BIGINT NOT NULL,
			address      TEXT NOT NULL,
			topics       JSONB NOT NULL,
			data         TEXT NOT NULL,
			removed      BOOLEAN NOT NULL,
			block_ts     BIGINT NOT NULL,
			ingested_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (chain_id, block_number, tx_hash, log_index)
		);
		CREATE TABLE IF NOT EXISTS events (
			chain_id     BIGINT NOT NULL,
			block_number BIGINT NOT NULL,
			block_hash   TEXT NOT NULL,
			tx_hash      TEXT NOT NULL,
			log_index    BIGINT NOT NULL,
			address      TEXT NOT NULL,
			protocol     TEXT NOT NULL,
			event_name   TEXT NOT NULL,
			block_ts     BIGINT NOT NULL,
			payload      JSONB NOT NULL,
			ingested_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (chain_id, block_number, tx_hash, log_index)
		);
		CREATE TABLE IF NOT EXISTS scan_state (
			name                 TEXT PRIMARY KEY,
			last_processed_block BIGINT NOT NULL,
			run_id               TEXT NOT NULL,
			updated_at           TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertLogs inserts raw log records, skipping duplicates on the
// (chain_id, block_number, tx_hash, log_index) key.
func (s *Store) InsertLogs(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		topics, err := json.Marshal(log.Topics)
		if err != nil {
			return fmt.Errorf("marshal topics: %w", err)
		}
		batch.Queue(`
			INSERT INTO logs (
				chain_id, block_number, block_hash, tx_hash, tx_index, log_index,
				address, topics, data, removed, block_ts, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
			ON CONFLICT (chain_id, block_number, tx_hash, log_index) DO NOTHING
		`,
			int64(log.ChainID),
			int64(log.BlockNumber),
			log.BlockHash,
			log.TxHash,
			int64(log.TxIndex),
			int64(log.LogIndex),
			log.Address,
			topics,
			log.Data,
			log.Removed,
			int64(log.Timestamp),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertEvents inserts decoded events, skipping duplicates.
func (s *Store) InsertEvents(ctx context.Context, events []model.TypedEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		decoded, err := json.Marshal(event.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO events (
				chain_id, block_number, block_hash, tx_hash, log_index,
				address, protocol, event_name, block_ts, payload, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (chain_id, block_number, tx_hash, log_index) DO NOTHING
		`,
			int64(event.ChainID),
			int64(event.BlockNumber),
			event.BlockHash,
			event.TxHash,
			int64(event.LogIndex),
			event.Address,
			event.Protocol,
			event.EventName,
			int64(event.Timestamp),
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFromBlock removes logs and events at or above a block height.
// The watcher calls it after a reorg before rescanning the range.
func (s *Store) DeleteFromBlock(ctx context.Context, chainID uint64, block uint64) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM logs WHERE chain_id=$1 AND block_number>=$2`,
		int64(chainID), int64(block)); err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM events WHERE chain_id=$1 AND block_number>=$2`,
		int64(chainID), int64(block)); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

// LoadState returns the last processed block for a named scan.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM scan_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveState upserts the last processed block for a named scan.
func (s *Store) SaveState(ctx context.Context, name string, block uint64, runID string) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (name, last_processed_block, run_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block,
		    run_id = EXCLUDED.run_id,
		    updated_at = now()
	`, name, int64(block), runID)
	return err
}
