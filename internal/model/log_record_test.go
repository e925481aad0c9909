package model

import "testing"

func TestLogRecordKey(t *testing.T) {
	record := LogRecord{
		ChainID:     1,
		BlockNumber: 18000000,
		TxHash:      "0xdef456",
		LogIndex:    12,
	}

	if got := record.Key(); got != "18000000:0xdef456:12" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestLogRecordTopic0(t *testing.T) {
	record := LogRecord{Topics: []string{"0xaaa", "0xbbb"}}
	if got := record.Topic0(); got != "0xaaa" {
		t.Fatalf("unexpected topic0: %s", got)
	}

	anonymous := LogRecord{}
	if got := anonymous.Topic0(); got != "" {
		t.Fatalf("expected empty topic0 for anonymous log, got %s", got)
	}
}
