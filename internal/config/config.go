// Package config loads memcore's configuration from environment variables
// with the MEMCORE_ prefix and sensible defaults, following the teacher's
// internal/config env-var-ladder pattern (getEnv/getEnvInt/getEnvBool, a
// buildBaseConfig assembler, and an optional settings-table DB override for
// the one setting worth persisting across restarts).
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memlayer/memcore/internal/contradiction"
	"github.com/memlayer/memcore/internal/decay"
	"github.com/memlayer/memcore/internal/dedup"
	"github.com/memlayer/memcore/internal/memory"
	"github.com/memlayer/memcore/internal/reranker"
	"github.com/memlayer/memcore/internal/scheduler"
)

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// Config holds every configuration surface memcore needs.
type Config struct {
	Storage       StorageConfig
	Providers     ProviderConfig
	Memory        MemoryConfig
	Dedup         DedupConfig
	Decay         DecayConfig
	Contradiction ContradictionConfig
	Scheduler     SchedulerConfig
	User          UserConfig
}

// StorageConfig selects and configures the storage backend (spec §4.1/§4.10).
type StorageConfig struct {
	Engine string // "sqlite" or "postgres" (default: sqlite)
	DSN    string // sqlite file path, or postgres connection string
}

// ProviderConfig selects the embedding and LLM providers a deployment wires
// in; the core only consumes the internal/providers interfaces, so this
// just carries enough to let a cmd/ entrypoint pick concrete
// implementations (spec §6.1).
type ProviderConfig struct {
	EmbeddingProvider string // implementation-defined provider name
	EmbeddingDim      int
	LLMProvider       string
	RerankerStrategy  string // maps to reranker.Strategy; empty = none
}

// MemoryConfig mirrors internal/memory.Config's tunables (spec §4.3-§4.5).
type MemoryConfig struct {
	AutoAssocThreshold        float64
	AutoAssocTopN             int
	DecomposeEnabled          bool
	DecomposeMinLength        int
	OverfetchMultiplier       int
	HybridOverfetchMultiplier int
	RecencyHalfLifeHours      float64
	RecencyWeight             float64
	GraphExpansionDepth       int
	GraphExpansionStrength    float64
	HybridRAGThreshold        float64
}

// ToMemoryConfig converts to internal/memory.Config (unset fields fall back
// to memory.Config.WithDefaults via the Service constructor).
func (m MemoryConfig) ToMemoryConfig(rerankerStrategy reranker.Strategy) memory.Config {
	return memory.Config{
		AutoAssocThreshold:        m.AutoAssocThreshold,
		AutoAssocTopN:             m.AutoAssocTopN,
		DecomposeEnabled:          m.DecomposeEnabled,
		DecomposeMinLength:        m.DecomposeMinLength,
		OverfetchMultiplier:       m.OverfetchMultiplier,
		HybridOverfetchMultiplier: m.HybridOverfetchMultiplier,
		RecencyHalfLifeHours:      m.RecencyHalfLifeHours,
		RecencyWeight:             m.RecencyWeight,
		GraphExpansionDepth:       m.GraphExpansionDepth,
		GraphExpansionStrength:    m.GraphExpansionStrength,
		HybridRAGThreshold:        m.HybridRAGThreshold,
		RerankerStrategy:          rerankerStrategy,
	}
}

// DedupConfig mirrors internal/dedup.Config (spec §4.2).
type DedupConfig struct {
	DuplicateThreshold float64
	MergeThreshold     float64
}

func (d DedupConfig) ToDedupConfig() dedup.Config {
	return dedup.Config{DuplicateThreshold: d.DuplicateThreshold, MergeThreshold: d.MergeThreshold}
}

// DecayConfig mirrors internal/decay.Config (spec §4.6).
type DecayConfig struct {
	MinAgeDays            int
	DecayRate             float64
	MinImportance         float64
	WriteThreshold        float64
	ArchiveThreshold      float64
	ArchiveMaxAccessCount int
	ArchiveMinAgeDays     int
	AccessBoostFactor     float64
	PassIntervalHours     int // recurring schedule interval (spec §4.11 "periodic decay (default 6h)")
}

func (d DecayConfig) ToDecayConfig() decay.Config {
	return decay.Config{
		MinAgeDays:            d.MinAgeDays,
		DecayRate:             d.DecayRate,
		MinImportance:         d.MinImportance,
		WriteThreshold:        d.WriteThreshold,
		ArchiveThreshold:      d.ArchiveThreshold,
		ArchiveMaxAccessCount: d.ArchiveMaxAccessCount,
		ArchiveMinAgeDays:     d.ArchiveMinAgeDays,
		AccessBoostFactor:     d.AccessBoostFactor,
	}
}

// ContradictionConfig mirrors internal/contradiction.Config (spec §4.4).
type ContradictionConfig struct {
	NeighborCount   int
	ConfidenceFloor float64
}

func (c ContradictionConfig) ToContradictionConfig() contradiction.Config {
	return contradiction.Config{NeighborCount: c.NeighborCount, ConfidenceFloor: c.ConfidenceFloor}
}

// SchedulerConfig mirrors internal/scheduler.Config (spec §4.11), including
// the rate.Limiter-backed recurring-pass throttle and per-session soft/hard
// caps noted in spec §5.
type SchedulerConfig struct {
	Enabled                bool
	NumWorkers             int
	QueueSize              int
	ShutdownTimeoutSeconds int

	RecurringRateLimitPerSecond float64
	RecurringRateLimitBurst     int
	SessionRateLimitPerSecond   float64
	SessionRateLimitBurst       int
}

func (s SchedulerConfig) ToSchedulerConfig() scheduler.Config {
	cfg := scheduler.Config{
		Enabled:                     s.Enabled,
		NumWorkers:                  s.NumWorkers,
		QueueSize:                   s.QueueSize,
		RecurringRateLimitPerSecond: s.RecurringRateLimitPerSecond,
		RecurringRateLimitBurst:     s.RecurringRateLimitBurst,
		SessionRateLimitPerSecond:   s.SessionRateLimitPerSecond,
		SessionRateLimitBurst:       s.SessionRateLimitBurst,
	}
	if s.ShutdownTimeoutSeconds > 0 {
		cfg.ShutdownTimeout = secondsToDuration(s.ShutdownTimeoutSeconds)
	}
	return cfg
}

// UserConfig carries settings persisted in the storage backend's settings
// table rather than read fresh from the environment every start, matching
// the teacher's internal/config UserConfig/LoadConfigFromDB/SaveConfig
// pattern.
type UserConfig struct {
	// DefaultWorkspaceID is used by callers (e.g. a CLI demo entrypoint)
	// that don't have their own workspace-resolution logic.
	DefaultWorkspaceID string
}

// FileConfig is the shape of the optional on-disk YAML config file, parsed
// with yaml.v3 the same way the teacher's internal/importer/markdown.go
// parses Obsidian front-matter. Every field is a pointer so a key absent
// from the file doesn't override the env-var/built-in-default ladder: env
// vars always win over a file value (spec's "optional YAML config file
// layered under env vars" puts the file below env vars, above defaults).
type FileConfig struct {
	Storage struct {
		Engine *string `yaml:"engine"`
		DSN    *string `yaml:"dsn"`
	} `yaml:"storage"`
	Scheduler struct {
		NumWorkers                  *int     `yaml:"num_workers"`
		QueueSize                   *int     `yaml:"queue_size"`
		ShutdownTimeoutSeconds      *int     `yaml:"shutdown_timeout_seconds"`
		RecurringRateLimitPerSecond *float64 `yaml:"recurring_rate_limit_per_second"`
		RecurringRateLimitBurst     *int     `yaml:"recurring_rate_limit_burst"`
		SessionRateLimitPerSecond   *float64 `yaml:"session_rate_limit_per_second"`
		SessionRateLimitBurst       *int     `yaml:"session_rate_limit_burst"`
	} `yaml:"scheduler"`
	Decay struct {
		PassIntervalHours *int `yaml:"pass_interval_hours"`
	} `yaml:"decay"`
}

// loadFileConfig reads and parses the YAML config file at path. An empty
// path means no file is configured and returns a zero-value FileConfig
// (every field nil, so it never overrides anything) rather than an error,
// matching the teacher's memento-backup "-config" flag comment: "optional,
// uses env vars by default".
func loadFileConfig(path string) (*FileConfig, error) {
	fc := &FileConfig{}
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, fc); err != nil {
		return nil, fmt.Errorf("config: invalid YAML in config file %q: %w", path, err)
	}
	return fc, nil
}

// LoadConfig loads configuration from environment variables with defaults,
// optionally layered over an on-disk YAML file named by MEMCORE_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv("MEMCORE_CONFIG_FILE"))
}

// LoadConfigFile loads configuration the same way LoadConfig does, but reads
// the optional YAML file from path instead of MEMCORE_CONFIG_FILE. Passing
// "" skips the file layer entirely (env vars and defaults only).
func LoadConfigFile(path string) (*Config, error) {
	fc, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}
	return buildBaseConfig(fc), nil
}

// LoadConfigFromDB loads configuration from the environment, then overrides
// User with whatever is persisted in the settings table, if any.
func LoadConfigFromDB(db *sql.DB) (*Config, error) {
	if db == nil {
		return nil, errors.New("config: database connection is required")
	}

	fc, err := loadFileConfig(os.Getenv("MEMCORE_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	cfg := buildBaseConfig(fc)

	workspaceID, err := getSetting(db, "default_workspace_id")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config: failed to load default_workspace_id from database: %w", err)
	}
	if workspaceID != "" {
		cfg.User.DefaultWorkspaceID = workspaceID
	}

	return cfg, nil
}

// SaveConfig persists User settings to the settings table (upsert).
func (c *Config) SaveConfig(db *sql.DB) error {
	if db == nil {
		return errors.New("config: database connection is required")
	}
	if err := setSetting(db, "default_workspace_id", c.User.DefaultWorkspaceID); err != nil {
		return fmt.Errorf("config: failed to save default_workspace_id: %w", err)
	}
	return nil
}

func getSetting(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

func setSetting(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

func buildBaseConfig(fc *FileConfig) *Config {
	if fc == nil {
		fc = &FileConfig{}
	}
	return &Config{
		Storage: StorageConfig{
			Engine: resolveString("MEMCORE_STORAGE_ENGINE", fc.Storage.Engine, "sqlite"),
			DSN:    resolveString("MEMCORE_STORAGE_DSN", fc.Storage.DSN, "./data/memcore.db"),
		},
		Providers: ProviderConfig{
			EmbeddingProvider: getEnv("MEMCORE_EMBEDDING_PROVIDER", "noop"),
			EmbeddingDim:      getEnvInt("MEMCORE_EMBEDDING_DIM", 768),
			LLMProvider:       getEnv("MEMCORE_LLM_PROVIDER", "noop"),
			RerankerStrategy:  getEnv("MEMCORE_RERANKER_STRATEGY", ""),
		},
		Memory: MemoryConfig{
			AutoAssocThreshold:        getEnvFloat("MEMCORE_AUTO_ASSOC_THRESHOLD", memory.DefaultAutoAssocThreshold),
			AutoAssocTopN:             getEnvInt("MEMCORE_AUTO_ASSOC_TOP_N", memory.DefaultAutoAssocTopN),
			DecomposeEnabled:          getEnvBool("MEMCORE_DECOMPOSE_ENABLED", true),
			DecomposeMinLength:        getEnvInt("MEMCORE_DECOMPOSE_MIN_LENGTH", 20),
			OverfetchMultiplier:       getEnvInt("MEMCORE_OVERFETCH_MULTIPLIER", memory.DefaultOverfetchMultiplier),
			HybridOverfetchMultiplier: getEnvInt("MEMCORE_HYBRID_OVERFETCH_MULTIPLIER", memory.DefaultHybridOverfetchMultiplier),
			RecencyHalfLifeHours:      getEnvFloat("MEMCORE_RECENCY_HALF_LIFE_HOURS", memory.DefaultRecencyHalfLifeHours),
			RecencyWeight:             getEnvFloat("MEMCORE_RECENCY_WEIGHT", memory.DefaultRecencyWeight),
			GraphExpansionDepth:       getEnvInt("MEMCORE_GRAPH_EXPANSION_DEPTH", memory.DefaultGraphExpansionDepth),
			GraphExpansionStrength:    getEnvFloat("MEMCORE_GRAPH_EXPANSION_STRENGTH", memory.DefaultGraphExpansionStrength),
			HybridRAGThreshold:        getEnvFloat("MEMCORE_HYBRID_RAG_THRESHOLD", memory.DefaultHybridRAGThreshold),
		},
		Dedup: DedupConfig{
			DuplicateThreshold: getEnvFloat("MEMCORE_DEDUP_DUPLICATE_THRESHOLD", dedup.DefaultDuplicateThreshold),
			MergeThreshold:     getEnvFloat("MEMCORE_DEDUP_MERGE_THRESHOLD", dedup.DefaultMergeThreshold),
		},
		Decay: DecayConfig{
			MinAgeDays:            getEnvInt("MEMCORE_DECAY_MIN_AGE_DAYS", decay.DefaultMinAgeDays),
			DecayRate:             getEnvFloat("MEMCORE_DECAY_RATE", decay.DefaultDecayRate),
			MinImportance:         getEnvFloat("MEMCORE_DECAY_MIN_IMPORTANCE", decay.DefaultMinImportance),
			WriteThreshold:        getEnvFloat("MEMCORE_DECAY_WRITE_THRESHOLD", decay.DefaultWriteThreshold),
			ArchiveThreshold:      getEnvFloat("MEMCORE_DECAY_ARCHIVE_THRESHOLD", decay.DefaultArchiveThreshold),
			ArchiveMaxAccessCount: getEnvInt("MEMCORE_DECAY_ARCHIVE_MAX_ACCESS_COUNT", decay.DefaultArchiveMaxAccessCount),
			ArchiveMinAgeDays:     getEnvInt("MEMCORE_DECAY_ARCHIVE_MIN_AGE_DAYS", decay.DefaultArchiveMinAgeDays),
			AccessBoostFactor:     getEnvFloat("MEMCORE_DECAY_ACCESS_BOOST_FACTOR", decay.DefaultAccessBoostFactor),
			PassIntervalHours:     resolveInt("MEMCORE_DECAY_PASS_INTERVAL_HOURS", fc.Decay.PassIntervalHours, 6),
		},
		Contradiction: ContradictionConfig{
			NeighborCount:   getEnvInt("MEMCORE_CONTRADICTION_NEIGHBOR_COUNT", 5),
			ConfidenceFloor: getEnvFloat("MEMCORE_CONTRADICTION_CONFIDENCE_FLOOR", 0.6),
		},
		Scheduler: SchedulerConfig{
			Enabled:                     getEnvBool("MEMCORE_SCHEDULER_ENABLED", true),
			NumWorkers:                  resolveInt("MEMCORE_SCHEDULER_NUM_WORKERS", fc.Scheduler.NumWorkers, 4),
			QueueSize:                   resolveInt("MEMCORE_SCHEDULER_QUEUE_SIZE", fc.Scheduler.QueueSize, 1000),
			ShutdownTimeoutSeconds:      resolveInt("MEMCORE_SCHEDULER_SHUTDOWN_TIMEOUT_SECONDS", fc.Scheduler.ShutdownTimeoutSeconds, 30),
			RecurringRateLimitPerSecond: resolveFloat("MEMCORE_SCHEDULER_RECURRING_RATE_LIMIT_PER_SECOND", fc.Scheduler.RecurringRateLimitPerSecond, 0),
			RecurringRateLimitBurst:     resolveInt("MEMCORE_SCHEDULER_RECURRING_RATE_LIMIT_BURST", fc.Scheduler.RecurringRateLimitBurst, 1),
			SessionRateLimitPerSecond:   resolveFloat("MEMCORE_SCHEDULER_SESSION_RATE_LIMIT_PER_SECOND", fc.Scheduler.SessionRateLimitPerSecond, 0),
			SessionRateLimitBurst:       resolveInt("MEMCORE_SCHEDULER_SESSION_RATE_LIMIT_BURST", fc.Scheduler.SessionRateLimitBurst, 1),
		},
		User: UserConfig{
			DefaultWorkspaceID: getEnv("MEMCORE_DEFAULT_WORKSPACE_ID", ""),
		},
	}
}

// resolveString/resolveInt/resolveFloat implement the three-tier ladder
// env var > YAML file value > built-in default, per FileConfig's doc
// comment. fileValue is nil when the key was absent from the file.
func resolveString(key string, fileValue *string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func resolveInt(key string, fileValue *int, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func resolveFloat(key string, fileValue *float64, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
