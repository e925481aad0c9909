package postgres

import (
	"context"

	"chainscan/internal/model"
)

// LogSink adapts Store to the batch sink interfaces the scanner and
// watcher consume.
type LogSink struct {
	store   *Store
	chainID uint64
}

func NewLogSink(store *Store, chainID uint64) *LogSink {
	return &LogSink{store: store, chainID: chainID}
}

func (s *LogSink) PutLogBatch(logs []model.LogRecord) error {
	return s.store.InsertLogs(context.Background(), logs)
}

func (s *LogSink) PutEventBatch(events []model.TypedEvent) error {
	return s.store.InsertEvents(context.Background(), events)
}

func (s *LogSink) DeleteFromBlock(block uint64) error {
	return s.store.DeleteFromBlock(context.Background(), s.chainID, block)
}
