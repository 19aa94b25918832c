package config_test

import (
	"database/sql"
	"os"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/memlayer/memcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultStorageEngineIsSQLite(t *testing.T) {
	_ = os.Unsetenv("MEMCORE_STORAGE_ENGINE")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
}

func TestLoadConfig_CanOverrideStorageEngine(t *testing.T) {
	t.Setenv("MEMCORE_STORAGE_ENGINE", "postgres")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
}

func TestLoadConfig_MemoryTuningDefaults(t *testing.T) {
	_ = os.Unsetenv("MEMCORE_AUTO_ASSOC_THRESHOLD")
	_ = os.Unsetenv("MEMCORE_RECENCY_WEIGHT")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Memory.AutoAssocThreshold)
	assert.Equal(t, 0.2, cfg.Memory.RecencyWeight)
}

func TestLoadConfig_MemoryTuningOverridesFromEnv(t *testing.T) {
	t.Setenv("MEMCORE_AUTO_ASSOC_THRESHOLD", "0.9")
	t.Setenv("MEMCORE_HYBRID_OVERFETCH_MULTIPLIER", "4")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Memory.AutoAssocThreshold)
	assert.Equal(t, 4, cfg.Memory.HybridOverfetchMultiplier)
}

func TestLoadConfig_InvalidFloatFallsBackToDefault(t *testing.T) {
	t.Setenv("MEMCORE_RECENCY_WEIGHT", "not-a-number")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Memory.RecencyWeight)
}

func TestLoadConfig_DecayDefaults(t *testing.T) {
	_ = os.Unsetenv("MEMCORE_DECAY_RATE")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.Decay.DecayRate)
	assert.Equal(t, 6, cfg.Decay.PassIntervalHours)
}

func TestLoadConfig_SchedulerRateLimitDefaultsDisabled(t *testing.T) {
	_ = os.Unsetenv("MEMCORE_SCHEDULER_RECURRING_RATE_LIMIT_PER_SECOND")
	_ = os.Unsetenv("MEMCORE_SCHEDULER_SESSION_RATE_LIMIT_PER_SECOND")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Scheduler.RecurringRateLimitPerSecond)
	assert.Equal(t, 0.0, cfg.Scheduler.SessionRateLimitPerSecond)
}

func TestLoadConfigFile_YAMLFileLayersUnderEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/memcore.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  engine: postgres
scheduler:
  num_workers: 8
  session_rate_limit_per_second: 2.5
  session_rate_limit_burst: 5
`), 0o644))

	_ = os.Unsetenv("MEMCORE_STORAGE_ENGINE")
	_ = os.Unsetenv("MEMCORE_SCHEDULER_NUM_WORKERS")
	t.Setenv("MEMCORE_SCHEDULER_SESSION_RATE_LIMIT_PER_SECOND", "9.9")

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, 8, cfg.Scheduler.NumWorkers)
	assert.Equal(t, 5, cfg.Scheduler.SessionRateLimitBurst)
	assert.Equal(t, 9.9, cfg.Scheduler.SessionRateLimitPerSecond, "env var must win over the YAML file value")
}

func TestLoadConfigFile_MissingFileReturnsError(t *testing.T) {
	_, err := config.LoadConfigFile("/nonexistent/memcore.yaml")
	assert.Error(t, err)
}

func TestLoadConfigFile_EmptyPathSkipsFileLayer(t *testing.T) {
	cfg, err := config.LoadConfigFile("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
}

func TestLoadConfig_UserDefaultWorkspaceEmptyByDefault(t *testing.T) {
	_ = os.Unsetenv("MEMCORE_DEFAULT_WORKSPACE_ID")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.User.DefaultWorkspaceID)
}

func TestSaveConfig_PersistsDefaultWorkspaceID(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	cfg := &config.Config{}
	cfg.User.DefaultWorkspaceID = "ws_123"

	err := cfg.SaveConfig(db)
	require.NoError(t, err)

	var value string
	err = db.QueryRow("SELECT value FROM settings WHERE key = 'default_workspace_id'").Scan(&value)
	require.NoError(t, err)
	assert.Equal(t, "ws_123", value)
}

func TestLoadConfigFromDB_ReadsDefaultWorkspaceID(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES ('default_workspace_id', 'ws_abc')`)
	require.NoError(t, err)

	_ = os.Unsetenv("MEMCORE_DEFAULT_WORKSPACE_ID")
	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err)
	assert.Equal(t, "ws_abc", cfg.User.DefaultWorkspaceID)
}

func TestLoadConfigFromDB_DBOverridesEnvVar(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	t.Setenv("MEMCORE_DEFAULT_WORKSPACE_ID", "env-ws")

	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES ('default_workspace_id', 'db-ws')`)
	require.NoError(t, err)

	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err)
	assert.Equal(t, "db-ws", cfg.User.DefaultWorkspaceID)
}

func TestLoadConfigFromDB_FallsBackToEnvVarWhenNoDBEntry(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	t.Setenv("MEMCORE_DEFAULT_WORKSPACE_ID", "fallback-ws")

	cfg, err := config.LoadConfigFromDB(db)
	require.NoError(t, err)
	assert.Equal(t, "fallback-ws", cfg.User.DefaultWorkspaceID)
}

func TestSaveConfig_UpdatesExistingEntry(t *testing.T) {
	db := openTestDB(t)
	defer func() { _ = db.Close() }()

	cfg := &config.Config{}
	cfg.User.DefaultWorkspaceID = "first"
	require.NoError(t, cfg.SaveConfig(db))

	cfg.User.DefaultWorkspaceID = "second"
	require.NoError(t, cfg.SaveConfig(db))

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM settings WHERE key = 'default_workspace_id'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var value string
	err = db.QueryRow("SELECT value FROM settings WHERE key = 'default_workspace_id'").Scan(&value)
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestLoadConfigFromDB_NilDB(t *testing.T) {
	_, err := config.LoadConfigFromDB(nil)
	assert.Error(t, err)
}

func TestSaveConfig_NilDB(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.SaveConfig(nil)
	assert.Error(t, err)
}

func TestMemoryConfig_ToMemoryConfigAppliesValues(t *testing.T) {
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	memCfg := cfg.Memory.ToMemoryConfig("")
	assert.Equal(t, cfg.Memory.AutoAssocThreshold, memCfg.AutoAssocThreshold)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to open in-memory SQLite database")

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err, "Failed to create settings table")

	return db
}
