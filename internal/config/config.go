// Package config loads the attempt core's runtime configuration: a YAML
// file (.attemptcore.yaml) overlaid by VK_* environment variables, mirroring
// the teacher's viper-based config.go but replaced end to end with this
// repo's own settings surface.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileSearchCacheConfig bounds the file-search result cache (spec.md §6
// VK_FILE_SEARCH_* family).
type FileSearchCacheConfig struct {
	MaxRepos int `mapstructure:"max_repos"`
	TTLSecs  int `mapstructure:"ttl_secs"`
	MaxFiles int `mapstructure:"max_files"`
}

// FileSearchWatchersConfig bounds the fsnotify watcher pool backing
// file-search cache invalidation (VK_FILE_SEARCH_WATCHERS_MAX,
// VK_FILE_SEARCH_WATCHER_TTL_SECS).
type FileSearchWatchersConfig struct {
	Max        int `mapstructure:"max"`
	WatcherTTL int `mapstructure:"watcher_ttl_secs"`
}

// FileStatsCacheConfig bounds the file-stats cache (VK_FILE_STATS_*).
type FileStatsCacheConfig struct {
	MaxRepos int `mapstructure:"max_repos"`
	TTLSecs  int `mapstructure:"ttl_secs"`
}

// ApprovalsConfig governs how long a decided approval's terminal record
// stays in the coordinator's completed-entry cache (VK_APPROVALS_COMPLETED_TTL_SECS).
type ApprovalsConfig struct {
	CompletedTTLSecs int `mapstructure:"completed_ttl_secs"`
}

// QueueConfig governs queued-message retention (VK_QUEUED_MESSAGES_TTL_SECS).
type QueueConfig struct {
	TTLSecs int `mapstructure:"ttl_secs"`
}

// LogBackfillConfig bounds replay-on-reconnect backfill
// (VK_LOG_BACKFILL_COMPLETION_MAX_ENTRIES, _TTL_SECS, _CONCURRENCY).
type LogBackfillConfig struct {
	CompletionMaxEntries int `mapstructure:"completion_max_entries"`
	TTLSecs              int `mapstructure:"ttl_secs"`
	Concurrency          int `mapstructure:"concurrency"`
}

// CacheWarnConfig controls when bounded caches log a capacity warning
// (VK_CACHE_WARN_AT_RATIO, VK_CACHE_WARN_SAMPLE_SECS).
type CacheWarnConfig struct {
	AtRatio    float64 `mapstructure:"at_ratio"`
	SampleSecs int     `mapstructure:"sample_secs"`
}

// LogHistoryConfig bounds the in-memory message store (C1) per process
// (VK_LOG_HISTORY_MAX_BYTES, VK_LOG_HISTORY_MAX_ENTRIES).
type LogHistoryConfig struct {
	MaxBytes   int `mapstructure:"max_bytes"`
	MaxEntries int `mapstructure:"max_entries"`
}

// LogHistoryPageConfig sets default page sizes for paged log history reads
// (VK_NORMALIZED_LOG_HISTORY_PAGE_SIZE, VK_RAW_LOG_HISTORY_PAGE_SIZE).
type LogHistoryPageConfig struct {
	NormalizedSize int `mapstructure:"normalized_size"`
	RawSize        int `mapstructure:"raw_size"`
}

// WorktreeConfig locates and governs the on-disk worktree pool (C2).
type WorktreeConfig struct {
	Root                  string `mapstructure:"root"`
	DisableOrphanCleanup  bool   `mapstructure:"disable_orphan_cleanup"`
}

// DiffConfig bounds the diff engine (C10) before it blocks instead of
// streaming patch content.
type DiffConfig struct {
	MaxFiles int `mapstructure:"max_files"`
	MaxBytes int `mapstructure:"max_bytes"`
}

// OrchestratorConfig carries the attempt orchestrator's (C8) own tunables
// that aren't otherwise named by an env var in spec.md §6.
type OrchestratorConfig struct {
	StopDeadlineSecs int `mapstructure:"stop_deadline_secs"`
}

// ExecutorConfig names one registered executor adapter's launch command and,
// optionally, the secret holding its auth material.
type ExecutorConfig struct {
	Command        string `mapstructure:"command"`
	AuthSecretName string `mapstructure:"auth_secret_name"`
}

// ObservabilityConfig selects cloud logging for internal/obslog; an empty
// GCPProject falls back to stdout-JSON logging.
type ObservabilityConfig struct {
	GCPProject string `mapstructure:"gcp_project"`
	LogName    string `mapstructure:"log_name"`
}

// SecretsConfig selects the Secret Manager project internal/secretsvc
// resolves executor auth material against.
type SecretsConfig struct {
	GCPProject string `mapstructure:"gcp_project"`
}

// AuthTokenConfig configures the Bearer/X-API-Token/?token= access control
// contract (internal/authtoken) and out-of-band approval-link signing.
type AuthTokenConfig struct {
	Token            string `mapstructure:"token"`
	SigningKeySecret string `mapstructure:"signing_key_secret"`
}

// Config is the attempt core's full runtime configuration.
type Config struct {
	FileSearchCache     FileSearchCacheConfig    `mapstructure:"file_search_cache"`
	FileSearchWatchers  FileSearchWatchersConfig `mapstructure:"file_search_watchers"`
	FileStatsCache      FileStatsCacheConfig     `mapstructure:"file_stats_cache"`
	Approvals           ApprovalsConfig          `mapstructure:"approvals"`
	Queue               QueueConfig              `mapstructure:"queue"`
	LogBackfill         LogBackfillConfig        `mapstructure:"log_backfill"`
	CacheWarn           CacheWarnConfig          `mapstructure:"cache_warn"`
	LogHistory          LogHistoryConfig         `mapstructure:"log_history"`
	LogHistoryPage      LogHistoryPageConfig     `mapstructure:"log_history_page"`
	Worktree            WorktreeConfig           `mapstructure:"worktree"`
	Diff                DiffConfig               `mapstructure:"diff"`
	Orchestrator        OrchestratorConfig       `mapstructure:"orchestrator"`
	Executors           map[string]ExecutorConfig `mapstructure:"executors"`
	Observability       ObservabilityConfig      `mapstructure:"observability"`
	Secrets             SecretsConfig            `mapstructure:"secrets"`
	AuthToken           AuthTokenConfig          `mapstructure:"auth_token"`
}

// envBindings lists the dotted viper keys that need an explicit BindEnv call
// because their VK_* name doesn't line up with SetEnvKeyReplacer's plain
// dot-to-underscore mapping (the spec.md §6 names use abbreviations and
// elided repeated words, e.g. VK_FILE_SEARCH_WATCHERS_MAX rather than
// VK_FILE_SEARCH_WATCHERS_MAX_MAX).
var envBindings = map[string]string{
	"file_search_cache.max_repos":          "VK_FILE_SEARCH_CACHE_MAX_REPOS",
	"file_search_cache.ttl_secs":           "VK_FILE_SEARCH_CACHE_TTL_SECS",
	"file_search_cache.max_files":          "VK_FILE_SEARCH_MAX_FILES",
	"file_search_watchers.max":             "VK_FILE_SEARCH_WATCHERS_MAX",
	"file_search_watchers.watcher_ttl_secs": "VK_FILE_SEARCH_WATCHER_TTL_SECS",
	"file_stats_cache.max_repos":           "VK_FILE_STATS_CACHE_MAX_REPOS",
	"file_stats_cache.ttl_secs":            "VK_FILE_STATS_CACHE_TTL_SECS",
	"approvals.completed_ttl_secs":         "VK_APPROVALS_COMPLETED_TTL_SECS",
	"queue.ttl_secs":                       "VK_QUEUED_MESSAGES_TTL_SECS",
	"log_backfill.completion_max_entries":  "VK_LOG_BACKFILL_COMPLETION_MAX_ENTRIES",
	"log_backfill.ttl_secs":                "VK_LOG_BACKFILL_TTL_SECS",
	"log_backfill.concurrency":             "VK_LOG_BACKFILL_CONCURRENCY",
	"cache_warn.at_ratio":                  "VK_CACHE_WARN_AT_RATIO",
	"cache_warn.sample_secs":               "VK_CACHE_WARN_SAMPLE_SECS",
	"log_history.max_bytes":                "VK_LOG_HISTORY_MAX_BYTES",
	"log_history.max_entries":              "VK_LOG_HISTORY_MAX_ENTRIES",
	"log_history_page.normalized_size":     "VK_NORMALIZED_LOG_HISTORY_PAGE_SIZE",
	"log_history_page.raw_size":            "VK_RAW_LOG_HISTORY_PAGE_SIZE",
	"worktree.disable_orphan_cleanup":      "DISABLE_WORKTREE_ORPHAN_CLEANUP",
}

// bindEnv wires envBindings into viper. Called once by Load before Unmarshal
// so that AutomaticEnv's default dot-to-underscore replacer never shadows
// these explicit, spec-mandated names.
func bindEnv() error {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// Load loads configuration from the config file already read into viper
// (see internal/cli/root.go's SetConfigName(".attemptcore")) plus VK_*
// environment variables, and applies defaults for anything left unset.
func Load() (*Config, error) {
	if err := bindEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in every field Load found unset.
func applyDefaults(cfg *Config) {
	if cfg.FileSearchCache.MaxRepos == 0 {
		cfg.FileSearchCache.MaxRepos = 50
	}
	if cfg.FileSearchCache.TTLSecs == 0 {
		cfg.FileSearchCache.TTLSecs = 300
	}
	if cfg.FileSearchCache.MaxFiles == 0 {
		cfg.FileSearchCache.MaxFiles = 20000
	}
	if cfg.FileSearchWatchers.Max == 0 {
		cfg.FileSearchWatchers.Max = 50
	}
	if cfg.FileSearchWatchers.WatcherTTL == 0 {
		cfg.FileSearchWatchers.WatcherTTL = 600
	}
	if cfg.FileStatsCache.MaxRepos == 0 {
		cfg.FileStatsCache.MaxRepos = 50
	}
	if cfg.FileStatsCache.TTLSecs == 0 {
		cfg.FileStatsCache.TTLSecs = 300
	}
	if cfg.Approvals.CompletedTTLSecs == 0 {
		cfg.Approvals.CompletedTTLSecs = 3600
	}
	if cfg.Queue.TTLSecs == 0 {
		cfg.Queue.TTLSecs = 86400
	}
	if cfg.LogBackfill.CompletionMaxEntries == 0 {
		cfg.LogBackfill.CompletionMaxEntries = 5000
	}
	if cfg.LogBackfill.TTLSecs == 0 {
		cfg.LogBackfill.TTLSecs = 60
	}
	if cfg.LogBackfill.Concurrency == 0 {
		cfg.LogBackfill.Concurrency = 4
	}
	if cfg.CacheWarn.AtRatio == 0 {
		cfg.CacheWarn.AtRatio = 0.9
	}
	if cfg.CacheWarn.SampleSecs == 0 {
		cfg.CacheWarn.SampleSecs = 30
	}
	if cfg.LogHistory.MaxBytes == 0 {
		cfg.LogHistory.MaxBytes = 10 << 20
	}
	if cfg.LogHistory.MaxEntries == 0 {
		cfg.LogHistory.MaxEntries = 20000
	}
	if cfg.LogHistoryPage.NormalizedSize == 0 {
		cfg.LogHistoryPage.NormalizedSize = 200
	}
	if cfg.LogHistoryPage.RawSize == 0 {
		cfg.LogHistoryPage.RawSize = 200
	}
	if cfg.Worktree.Root == "" {
		cfg.Worktree.Root = "~/.attemptcore/worktrees"
	}
	if cfg.Orchestrator.StopDeadlineSecs == 0 {
		cfg.Orchestrator.StopDeadlineSecs = 5
	}
	if cfg.Observability.LogName == "" {
		cfg.Observability.LogName = "attemptcore"
	}
}

// Validate checks the fields every mode of operation depends on.
func (c *Config) Validate() error {
	if c.Worktree.Root == "" {
		return fmt.Errorf("worktree root is required")
	}
	if c.LogHistory.MaxBytes <= 0 {
		return fmt.Errorf("log_history.max_bytes must be positive")
	}
	if c.LogHistory.MaxEntries <= 0 {
		return fmt.Errorf("log_history.max_entries must be positive")
	}
	if c.CacheWarn.AtRatio <= 0 || c.CacheWarn.AtRatio > 1 {
		return fmt.Errorf("cache_warn.at_ratio must be in (0, 1]")
	}
	return nil
}

// ValidateForRun additionally requires at least one registered executor and
// an access token, the minimum needed to actually drive an attempt.
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Executors) == 0 {
		return fmt.Errorf("at least one executor must be configured")
	}
	if c.AuthToken.Token == "" {
		return fmt.Errorf("auth_token.token is required to serve requests")
	}
	return nil
}

// StopDeadline returns the orchestrator's configured graceful-stop deadline.
func (c *Config) StopDeadline() time.Duration {
	return time.Duration(c.Orchestrator.StopDeadlineSecs) * time.Second
}
