package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beacon "github.com/itzg/beacon-sender"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
token: test-token
source_name: test-source-name
measurement: test
tag_keys: ["b"]
sequence_tag: _seq
timeout: 10s
buffer:
  chunk_limit_records: 50
  flush_interval: 5s
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, beacon.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, "test-token", cfg.Token)
	assert.Equal(t, "test-source-name", cfg.SourceName)
	assert.Equal(t, "test", cfg.Measurement)
	assert.Equal(t, "time", cfg.TimeKey)
	assert.Equal(t, []string{"b"}, cfg.TagKeys)
	assert.Equal(t, "_seq", cfg.SequenceTag)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"tag"}, cfg.Buffer.ChunkKeys)
	assert.Equal(t, 50, cfg.Buffer.ChunkLimitRecords)
	assert.Equal(t, 5*time.Second, cfg.Buffer.FlushInterval)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("BEACON_TOKEN", "env-token")
	t.Setenv("BEACON_SOURCE_NAME", "env-source")
	t.Setenv("BEACON_ENDPOINT", "https://localhost/beacon/v1/ingest-metrics")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "env-source", cfg.SourceName)
	assert.Equal(t, "https://localhost/beacon/v1/ingest-metrics", cfg.Endpoint)
}

func TestLoadConfig_MissingToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yml")
	require.NoError(t, os.WriteFile(path, []byte("source_name: test-source-name\n"), 0o600))

	_, err := loadConfig(path)

	assert.ErrorIs(t, err, beacon.ErrMissingToken)
}
