package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chuk-ai/toolgraph/config"
	"github.com/chuk-ai/toolgraph/promptbuilder"
)

func TestDefaultIsFullyPopulated(t *testing.T) {
	d := config.Default()
	require.Equal(t, 3, d.Concurrency)
	require.Equal(t, config.StoreInMemory, d.StoreBackend)
	require.Equal(t, promptbuilder.StrategyConversation, d.PromptStrategy)
	require.True(t, d.Retry.Enabled)
}

func TestLoadAppliesDefaultsToUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: redis\nredis_store:\n  addr: localhost:6379\n"), 0o644))

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, config.StoreRedis, c.StoreBackend)
	require.Equal(t, "localhost:6379", c.RedisStore.Addr)
	// Unset fields fall back to Default().
	require.Equal(t, 3, c.Concurrency)
	require.Equal(t, 2, c.Retry.MaxRetries)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
