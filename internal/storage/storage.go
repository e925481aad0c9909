package storage

import "chainscan/internal/model"

// Storage defines a sink for raw log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// EventStorage defines a sink for decoded events.
type EventStorage interface {
	PutEventBatch(events []model.TypedEvent) error
}

// Rewinder is implemented by sinks that can discard records above a
// block height after a chain reorganisation.
type Rewinder interface {
	DeleteFromBlock(block uint64) error
}
