package config

import (
	"github.com/spf13/pflag"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL      string
	In          string
	Out         string
	Errors      string
	PostgresDSN string
	Protocols   []string
	LogLevel    string
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/events.jsonl",
		"errors":    "./data/decode_errors.jsonl",
		"protocols": "erc20,uniswap_v2,uniswap_v3,aave_v3",
		"log-level": "info",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		RPCURL:      v.GetString("rpc"),
		In:          v.GetString("in"),
		Out:         v.GetString("out"),
		Errors:      v.GetString("errors"),
		PostgresDSN: v.GetString("pg-dsn"),
		Protocols:   getStringSlice(v, "protocols"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
