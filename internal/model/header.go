package model

// BlockHeader is the minimal header record the reorg monitor tracks.
type BlockHeader struct {
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parent_hash"`
	Timestamp  uint64 `json:"timestamp"`
}

// ReorgEvent describes a detected chain reorganisation.
type ReorgEvent struct {
	// CommonAncestor is the highest block shared by both forks.
	CommonAncestor uint64 `json:"common_ancestor"`
	// Depth is the number of blocks discarded from the old fork.
	Depth uint64 `json:"depth"`
	// OldTipHash is the stored hash of the first diverging block.
	OldTipHash string `json:"old_tip_hash"`
	// NewTipHash is the freshly fetched hash at the same height.
	NewTipHash string `json:"new_tip_hash"`
	// DepthExceeded is set when the fork point lies below the stored
	// header window and the caller must rescan from scratch.
	DepthExceeded bool `json:"depth_exceeded"`
}

// ChainTip is the result of one reorg-monitor update cycle.
type ChainTip struct {
	// Block is the latest block number seen on the canonical chain.
	Block uint64 `json:"block"`
	// Hash is the tip block hash.
	Hash string `json:"hash"`
	// Reorg is non-nil when this cycle detected a reorganisation.
	Reorg *ReorgEvent `json:"reorg,omitempty"`
}

// Safe returns the highest block considered final under the given
// confirmation depth. Blocks above it may still be reorganised away.
func (t ChainTip) Safe(confirmations uint64) uint64 {
	if t.Block < confirmations {
		return 0
	}
	return t.Block - confirmations
}
