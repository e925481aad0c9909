package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ScanConfig holds configuration for the scan command.
type ScanConfig struct {
	RPCURL            string
	Source            string
	HyperSyncURL      string
	HyperSyncToken    string
	ChainID           uint64
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []string
	Topic0            []string
	ChunkSize         uint64
	Workers           int
	RateLimit         float64
	Out               string
	PostgresDSN       string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadScan merges config file, environment variables, and flags into ScanConfig.
func LoadScan(cfgFile string, flags *pflag.FlagSet) (ScanConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"source":             "rpc",
		"chunk-size":         uint64(2000),
		"workers":            1,
		"out":                "./data/logs.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return ScanConfig{}, err
	}

	cfg := ScanConfig{
		RPCURL:            v.GetString("rpc"),
		Source:            v.GetString("source"),
		HyperSyncURL:      v.GetString("hypersync-url"),
		HyperSyncToken:    v.GetString("hypersync-token"),
		ChainID:           v.GetUint64("chain-id"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		Topic0:            getStringSlice(v, "topic0"),
		ChunkSize:         v.GetUint64("chunk-size"),
		Workers:           v.GetInt("workers"),
		RateLimit:         v.GetFloat64("rate-limit"),
		Out:               v.GetString("out"),
		PostgresDSN:       v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
