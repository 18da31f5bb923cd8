package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tillsync.db", cfg.Store.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.LockRetryDelay)
	assert.Equal(t, TiePolicyKeepExisting, cfg.Store.TiePolicy)
	assert.Equal(t, "@every 1m", cfg.Scheduler.ReconcileSchedule)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.ProbeInterval)
	assert.False(t, cfg.Replication.Enabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TILLSYNC_DB_PATH", "/var/lib/till/pos.db")
	t.Setenv("TILLSYNC_MERGE_TIE_POLICY", TiePolicyPreferIncoming)
	t.Setenv("TILLSYNC_GCP_PROJECT", "retail-prod")
	t.Setenv("TILLSYNC_NOTIFICATIONS_SUBSCRIPTION", "notifications-till-7")
	t.Setenv("TILLSYNC_REMOTE_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/till/pos.db", cfg.Store.Path)
	assert.Equal(t, TiePolicyPreferIncoming, cfg.Store.TiePolicy)
	assert.True(t, cfg.Replication.Enabled())
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
}

func TestLoad_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TILLSYNC_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TILLSYNC_LOG_LEVEL") })

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidTiePolicy(t *testing.T) {
	t.Setenv("TILLSYNC_MERGE_TIE_POLICY", "coin-flip")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILLSYNC_MERGE_TIE_POLICY")
}

func TestLoad_InvalidSchedule(t *testing.T) {
	t.Setenv("TILLSYNC_RECONCILE_SCHEDULE", "every so often")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILLSYNC_RECONCILE_SCHEDULE")
}
