package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	beacon "github.com/itzg/beacon-sender"
)

// loadConfig reads an optional YAML config file, overlaid with BEACON_ environment
// variables, on top of the package defaults.
func loadConfig(configPath string) (beacon.Config, error) {
	cfg := beacon.DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("BEACON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("endpoint", cfg.Endpoint)
	v.SetDefault("token", "")
	v.SetDefault("source_name", "")
	v.SetDefault("measurement", "")
	v.SetDefault("time_key", cfg.TimeKey)
	v.SetDefault("auto_tags", false)
	v.SetDefault("tag_keys", []string{})
	v.SetDefault("sequence_tag", "")
	v.SetDefault("cast_number_to_float", false)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("ca_file", "")
	v.SetDefault("buffer.chunk_keys", cfg.Buffer.ChunkKeys)
	v.SetDefault("buffer.chunk_limit_records", cfg.Buffer.ChunkLimitRecords)
	v.SetDefault("buffer.flush_interval", cfg.Buffer.FlushInterval)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}
