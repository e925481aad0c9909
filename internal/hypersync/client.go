package hypersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"chainscan/internal/model"
	"chainscan/internal/scan"
)

// Client reads logs from a HyperSync endpoint instead of JSON-RPC. It
// satisfies scan.LogSource, so readers and watchers can use either
// source interchangeably.
type Client struct {
	baseURL string
	token   string
	chainID uint64
	http    *http.Client
	logger  *zap.Logger
}

// Config holds HyperSync connection settings.
type Config struct {
	// URL is the chain endpoint, e.g. https://eth.hypersync.xyz.
	URL string
	// BearerToken is sent as Authorization when set.
	BearerToken string
	ChainID     uint64
	Timeout     time.Duration
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("hypersync url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.BearerToken,
		chainID: cfg.ChainID,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

// LatestBlock returns the server's archive height.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/height", nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get height: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get height: status %d", resp.StatusCode)
	}

	var height HeightResponse
	if err := json.NewDecoder(resp.Body).Decode(&height); err != nil {
		return 0, fmt.Errorf("parse height: %w", err)
	}
	return height.Height, nil
}

// FetchLogs pages /query until the inclusive range is covered. The
// server decides page sizes; next_block drives the pagination.
func (c *Client) FetchLogs(ctx context.Context, from uint64, to uint64, f scan.Filter) ([]model.LogRecord, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range %d-%d", from, to)
	}

	selection := LogSelection{}
	for _, addr := range f.Addresses {
		selection.Address = append(selection.Address, strings.ToLower(addr.Hex()))
	}
	if len(f.Topic0) > 0 {
		topic0 := make([]string, 0, len(f.Topic0))
		for _, topic := range f.Topic0 {
			topic0 = append(topic0, topic.Hex())
		}
		selection.Topics = [][]string{topic0}
	}

	var records []model.LogRecord
	cursor := from
	for cursor <= to {
		query := Query{
			FromBlock: cursor,
			ToBlock:   to + 1,
			Logs:      []LogSelection{selection},
			FieldSelection: FieldSelection{
				Log: []string{
					"block_number", "block_hash", "transaction_hash",
					"transaction_index", "log_index", "address", "topics", "data",
				},
				Block: []string{"number", "timestamp"},
			},
		}

		page, err := c.runQuery(ctx, query)
		if err != nil {
			return nil, err
		}

		timestamps := make(map[uint64]uint64)
		for _, batch := range page.Data {
			for _, block := range batch.Blocks {
				ts, err := parseTimestamp(block.Timestamp)
				if err != nil {
					c.logger.Debug("bad block timestamp",
						zap.Uint64("block", block.Number), zap.Error(err))
					continue
				}
				timestamps[block.Number] = ts
			}
		}
		for _, batch := range page.Data {
			for _, log := range batch.Logs {
				records = append(records, c.buildLogRecord(log, timestamps[log.BlockNumber]))
			}
		}

		if page.NextBlock <= cursor {
			// The server made no progress; bail out rather than loop.
			return nil, fmt.Errorf("hypersync returned next_block %d at cursor %d", page.NextBlock, cursor)
		}
		cursor = page.NextBlock
	}

	return records, nil
}

func (c *Client) runQuery(ctx context.Context, query Query) (*QueryResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("query: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var page QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}
	return &page, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) buildLogRecord(log Log, timestamp uint64) model.LogRecord {
	return model.LogRecord{
		ChainID:     c.chainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TransactionHash,
		TxIndex:     log.TransactionIndex,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Topics:      log.Topics,
		Data:        log.Data,
		Removed:     log.Removed,
		Timestamp:   timestamp,
		IngestedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func parseTimestamp(value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if strings.HasPrefix(value, "0x") {
		return strconv.ParseUint(value[2:], 16, 64)
	}
	return strconv.ParseUint(value, 10, 64)
}
