package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	RPCURL        string
	StartBlock    uint64
	Addresses     []string
	Topic0        []string
	PollInterval  time.Duration
	Confirmations uint64
	ChunkSize     uint64
	MaxDepth      uint64
	RateLimit     float64
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	Out           string
	Checkpoint    string
	PostgresDSN   string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"poll-interval": 5 * time.Second,
		"confirmations": uint64(5),
		"chunk-size":    uint64(1000),
		"max-depth":     uint64(256),
		"redis-prefix":  "chainscan",
		"out":           "./data/watch_logs.jsonl",
		"checkpoint":    "./data/watch_checkpoint.json",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		RPCURL:        v.GetString("rpc"),
		StartBlock:    v.GetUint64("from"),
		Addresses:     getStringSlice(v, "address"),
		Topic0:        getStringSlice(v, "topic0"),
		PollInterval:  v.GetDuration("poll-interval"),
		Confirmations: v.GetUint64("confirmations"),
		ChunkSize:     v.GetUint64("chunk-size"),
		MaxDepth:      v.GetUint64("max-depth"),
		RateLimit:     v.GetFloat64("rate-limit"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPrefix:   v.GetString("redis-prefix"),
		Out:           v.GetString("out"),
		Checkpoint:    v.GetString("checkpoint"),
		PostgresDSN:   v.GetString("pg-dsn"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}
