package hypersync

// Query is the request body for the /query endpoint. ToBlock is
// exclusive, matching the HyperSync wire format.
type Query struct {
	FromBlock      uint64         `json:"from_block"`
	ToBlock        uint64         `json:"to_block,omitempty"`
	Logs           []LogSelection `json:"logs"`
	FieldSelection FieldSelection `json:"field_selection"`
}

// LogSelection filters logs by contract address and topic sets. Each
// entry of Topics positions a set of accepted values for that topic
// slot; an empty set matches anything.
type LogSelection struct {
	Address []string   `json:"address,omitempty"`
	Topics  [][]string `json:"topics,omitempty"`
}

// FieldSelection names the columns the server should return.
type FieldSelection struct {
	Log   []string `json:"log,omitempty"`
	Block []string `json:"block,omitempty"`
}

// QueryResponse is the /query response envelope. NextBlock is where the
// next page starts; a response never spans the server's full range.
type QueryResponse struct {
	Data          []DataBatch `json:"data"`
	NextBlock     uint64      `json:"next_block"`
	ArchiveHeight uint64      `json:"archive_height"`
}

// DataBatch groups the rows of one response page.
type DataBatch struct {
	Logs   []Log   `json:"logs"`
	Blocks []Block `json:"blocks"`
}

// Log is one log row.
type Log struct {
	BlockNumber      uint64   `json:"block_number"`
	BlockHash        string   `json:"block_hash"`
	TransactionHash  string   `json:"transaction_hash"`
	TransactionIndex uint64   `json:"transaction_index"`
	LogIndex         uint64   `json:"log_index"`
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	Removed          bool     `json:"removed"`
}

// Block is one block row, used to stamp logs with block timestamps.
type Block struct {
	Number    uint64 `json:"number"`
	Timestamp string `json:"timestamp"`
}

// HeightResponse is the /height response.
type HeightResponse struct {
	Height uint64 `json:"height"`
}
