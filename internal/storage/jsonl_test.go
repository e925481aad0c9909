package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"chainscan/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}
	return lines
}

func TestJsonlStorageAppendsLogBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.jsonl")
	sink := NewJsonlStorage(path)

	first := []model.LogRecord{
		{ChainID: 1, BlockNumber: 100, TxHash: "0xt1", LogIndex: 0, Address: "0xa"},
		{ChainID: 1, BlockNumber: 101, TxHash: "0xt2", LogIndex: 2, Address: "0xa"},
	}
	if err := sink.PutLogBatch(first); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := sink.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if err := sink.PutLogBatch([]model.LogRecord{
		{ChainID: 1, BlockNumber: 102, TxHash: "0xt3", LogIndex: 1, Address: "0xb"},
	}); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var last model.LogRecord
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if last.BlockNumber != 102 || last.Address != "0xb" {
		t.Fatalf("unexpected last record: %+v", last)
	}
}

func TestJsonlEventStorageAppendsEventBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink := NewJsonlEventStorage(path)

	events := []model.TypedEvent{
		{
			ChainID:     1,
			BlockNumber: 200,
			TxHash:      "0xt1",
			Address:     "0xpool",
			Protocol:    "uniswap_v2",
			EventName:   "Swap",
			Decoded:     map[string]string{"amount0_in": "1000"},
		},
		{
			ChainID:     1,
			BlockNumber: 201,
			TxHash:      "0xt2",
			Address:     "0xtoken",
			Protocol:    "erc20",
			EventName:   "Transfer",
		},
	}
	if err := sink.PutEventBatch(events); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := sink.PutEventBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first model.TypedEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if first.Protocol != "uniswap_v2" || first.EventName != "Swap" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	decoded, ok := first.Decoded.(map[string]interface{})
	if !ok || decoded["amount0_in"] != "1000" {
		t.Fatalf("payload did not survive the round trip: %+v", first.Decoded)
	}
}
