package postgres

import (
	"context"

	"chainscan/internal/scan"
)

// StateCheckpoint backs the scanner's checkpoint with the scan_state
// table, so daemon deployments resume from the database instead of a
// local file.
type StateCheckpoint struct {
	store *Store
	name  string
}

func NewStateCheckpoint(store *Store, name string) *StateCheckpoint {
	return &StateCheckpoint{store: store, name: name}
}

func (c *StateCheckpoint) Load() (scan.Checkpoint, bool, error) {
	block, ok, err := c.store.LoadState(context.Background(), c.name)
	if err != nil || !ok {
		return scan.Checkpoint{}, false, err
	}
	return scan.Checkpoint{LastProcessedBlock: block}, true, nil
}

func (c *StateCheckpoint) Save(lastProcessed uint64, runID string) error {
	return c.store.SaveState(context.Background(), c.name, lastProcessed, runID)
}
