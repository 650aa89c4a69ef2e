package filecache

import (
	"time"

	"github.com/vibe-kanban/attemptcore/internal/config"
)

// FileSearchResult is one cached file-search outcome for a repo: the
// matched paths, capped at the configured MaxFiles.
type FileSearchResult struct {
	Paths     []string
	Truncated bool
}

// FileStats is one cached file-stats snapshot for a repo.
type FileStats struct {
	FileCount int
	TotalSize int64
}

// NewFileSearchCache builds the file-search result cache and its backing
// watcher pool from config, per VK_FILE_SEARCH_CACHE_*/VK_FILE_SEARCH_WATCHERS_*.
func NewFileSearchCache(cfg *config.Config) (*Cache[FileSearchResult], *WatcherPool) {
	cache := New[FileSearchResult](
		cfg.FileSearchCache.MaxRepos,
		time.Duration(cfg.FileSearchCache.TTLSecs)*time.Second,
		cfg.CacheWarn.AtRatio,
		time.Duration(cfg.CacheWarn.SampleSecs)*time.Second,
	)
	pool := NewWatcherPool(
		cfg.FileSearchWatchers.Max,
		time.Duration(cfg.FileSearchWatchers.WatcherTTL)*time.Second,
		cache.Invalidate,
	)
	return cache, pool
}

// NewFileStatsCache builds the file-stats cache from config, per
// VK_FILE_STATS_CACHE_*. It shares the same watcher pool as file-search so
// a single fsnotify watcher per repo invalidates both caches.
func NewFileStatsCache(cfg *config.Config) *Cache[FileStats] {
	return New[FileStats](
		cfg.FileStatsCache.MaxRepos,
		time.Duration(cfg.FileStatsCache.TTLSecs)*time.Second,
		cfg.CacheWarn.AtRatio,
		time.Duration(cfg.CacheWarn.SampleSecs)*time.Second,
	)
}
