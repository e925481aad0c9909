package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"chainscan/internal/chain"
	"chainscan/internal/model"
)

// LogSource yields normalized log records for a block range. The JSON-RPC
// client and the HyperSync client both satisfy it.
type LogSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, fromBlock, toBlock uint64, f Filter) ([]model.LogRecord, error)
}

// RPCSource adapts the JSON-RPC chain client to the LogSource interface,
// enriching each log with its block timestamp.
type RPCSource struct {
	client  *chain.Client
	chainID uint64
}

// NewRPCSource resolves the chain id and wraps the client.
func NewRPCSource(ctx context.Context, client *chain.Client) (*RPCSource, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	return &RPCSource{client: client, chainID: chainID.Uint64()}, nil
}

// ChainID returns the resolved chain id.
func (s *RPCSource) ChainID() uint64 {
	return s.chainID
}

// LatestBlock returns the node's current tip.
func (s *RPCSource) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.LatestBlockNumber(ctx)
}

// FetchLogs runs eth_getLogs for the range and normalizes the result.
func (s *RPCSource) FetchLogs(ctx context.Context, fromBlock, toBlock uint64, f Filter) ([]model.LogRecord, error) {
	logs, err := s.client.FilterLogs(ctx, fromBlock, toBlock, f.Addresses, f.Topics())
	if err != nil {
		return nil, err
	}

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		ts, err := s.client.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		records = append(records, buildLogRecord(s.chainID, log, ts, ingestedAt))
	}
	return records, nil
}

func buildLogRecord(chainID uint64, log types.Log, timestamp uint64, ingestedAt time.Time) model.LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
	}
}
