package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 3000
  write_timeout: 30s
log_level: debug
network: regtest
db:
  dir: ./data
  db_type: memdb
rpc:
  url: 127.0.0.1:18443
  user: u
  password: p
indexer:
  prune_depth: 288
mempool:
  enabled: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "chain", cfg.DB.Name)
	assert.Equal(t, "memdb", cfg.DB.DBType)
	assert.Equal(t, int32(288), cfg.Indexer.PruneDepth)
	assert.Equal(t, 16, cfg.Indexer.BlockChanBuf)
	assert.True(t, cfg.Mempool.Enabled)
	assert.Equal(t, 8, cfg.Mempool.FetchWorkers)

	params, err := cfg.ChainParams()
	require.NoError(t, err)
	assert.Equal(t, chaincfg.RegressionNetParams.Name, params.Name)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown network", "network: moon\ndb: {dir: x}\nrpc: {url: y}\n"},
		{"missing db", "rpc: {url: y}\n"},
		{"missing rpc", "db: {dir: x}\n"},
		{"negative prune", "db: {dir: x}\nrpc: {url: y}\nindexer: {prune_depth: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
