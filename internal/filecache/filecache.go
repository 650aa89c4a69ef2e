// Package filecache implements the bounded, TTL'd, LRU-evicted caches
// spec.md §5 calls "Bounded caches" for file-search results and file
// stats, keyed by repo path, sized by the VK_FILE_SEARCH_*/VK_FILE_STATS_*
// config in internal/config. A cache keeps an fsnotify watch on each repo
// it holds an entry for and drops that entry the moment the repo's
// filesystem changes, rather than waiting out the TTL — a search result or
// stats snapshot computed against a stale tree is worse than a cache miss.
//
// Grounded on internal/store/store.go's bounds-and-evict shape (maxEntries
// enforced by an evictLocked helper called after every mutation), applied
// here to recency order instead of append order since a file-search cache
// is read far more than it's written.
package filecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Cache is a generic, bounded, TTL'd, LRU-evicted cache keyed by repo path.
// Safe for concurrent use.
type Cache[T any] struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element

	warn *warnSampler
}

type cacheEntry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// New constructs a Cache bounded to maxEntries, each entry valid for ttl.
// ttl of zero means entries never expire on their own (only eviction or
// explicit Invalidate removes them).
func New[T any](maxEntries int, ttl time.Duration, warnAtRatio float64, warnSampleEvery time.Duration) *Cache[T] {
	return &Cache[T]{
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		warn:       newWarnSampler(warnAtRatio, warnSampleEvery),
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*cacheEntry[T])
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores value for key, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry[T])
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	entry := &cacheEntry[T]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	elem := c.order.PushFront(entry)
	c.entries[key] = elem

	c.evictLocked()
	c.warn.sample(len(c.entries), c.maxEntries)
}

// Invalidate drops key's entry, if any.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Len reports the current number of live entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops least-recently-used entries until the cache is within
// maxEntries. Must be called with c.mu held.
func (c *Cache[T]) evictLocked() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.removeLocked(oldest)
	}
}

func (c *Cache[T]) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry[T])
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

// warnSampler logs (via a caller-supplied callback, set by WarnFunc) at most
// once per sampleEvery when the cache's fill ratio crosses atRatio, per
// spec.md §6's VK_CACHE_WARN_AT_RATIO/VK_CACHE_WARN_SAMPLE_SECS.
type warnSampler struct {
	atRatio     float64
	sampleEvery time.Duration

	mu       sync.Mutex
	lastWarn time.Time
	fn       func(ratio float64)
}

func newWarnSampler(atRatio float64, sampleEvery time.Duration) *warnSampler {
	return &warnSampler{atRatio: atRatio, sampleEvery: sampleEvery}
}

// WarnFunc registers a callback invoked (rate-limited) whenever the cache's
// fill ratio exceeds atRatio. Typically wired to an obslog.Logger.Warn call.
func (c *Cache[T]) WarnFunc(fn func(ratio float64)) {
	c.warn.mu.Lock()
	defer c.warn.mu.Unlock()
	c.warn.fn = fn
}

// sample checks current/max against atRatio and invokes fn if due. Returns
// whether it warned and the ratio observed.
func (w *warnSampler) sample(current, max int) (bool, float64) {
	if max <= 0 || w.atRatio <= 0 {
		return false, 0
	}
	ratio := float64(current) / float64(max)
	if ratio < w.atRatio {
		return false, ratio
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastWarn) < w.sampleEvery {
		return false, ratio
	}
	w.lastWarn = time.Now()
	if w.fn != nil {
		w.fn(ratio)
	}
	return true, ratio
}

// WatcherPool holds at most Max fsnotify watchers, one per repo path, each
// idle-evicted after watcherTTL of no filesystem events. invalidate is
// called with a repo path whenever fsnotify reports a change under it, so
// callers wire it to Cache.Invalidate for every cache keyed by that path.
type WatcherPool struct {
	max        int
	watcherTTL time.Duration
	invalidate func(repoPath string)

	mu       sync.Mutex
	watchers map[string]*pooledWatcher
}

type pooledWatcher struct {
	watcher  *fsnotify.Watcher
	lastUsed time.Time
	done     chan struct{}
}

// NewWatcherPool constructs a pool bounded to max concurrent watchers, each
// closed after watcherTTL of inactivity. invalidate is called (from the
// pool's internal goroutine) on every filesystem event under a watched
// repo path.
func NewWatcherPool(max int, watcherTTL time.Duration, invalidate func(repoPath string)) *WatcherPool {
	return &WatcherPool{
		max:        max,
		watcherTTL: watcherTTL,
		invalidate: invalidate,
		watchers:   make(map[string]*pooledWatcher),
	}
}

// Watch starts watching repoPath for changes, if not already watched and
// the pool isn't at capacity. A no-op (not an error) when at capacity — a
// cache entry without an active watcher simply falls back to its TTL.
func (p *WatcherPool) Watch(repoPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pw, ok := p.watchers[repoPath]; ok {
		pw.lastUsed = time.Now()
		return nil
	}
	if p.max > 0 && len(p.watchers) >= p.max {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(repoPath); err != nil {
		w.Close()
		return err
	}

	pw := &pooledWatcher{watcher: w, lastUsed: time.Now(), done: make(chan struct{})}
	p.watchers[repoPath] = pw
	go p.run(repoPath, pw)
	return nil
}

func (p *WatcherPool) run(repoPath string, pw *pooledWatcher) {
	ticker := time.NewTicker(p.idleCheckInterval())
	defer ticker.Stop()
	for {
		select {
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			p.mu.Lock()
			pw.lastUsed = time.Now()
			p.mu.Unlock()
			if p.invalidate != nil && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				p.invalidate(repoPath)
			}
		case <-pw.watcher.Errors:
			// a watch error doesn't tear down the pool entry; the next
			// idle sweep will reclaim it once watcherTTL elapses.
		case <-ticker.C:
			p.mu.Lock()
			idle := p.watcherTTL > 0 && time.Since(pw.lastUsed) > p.watcherTTL
			p.mu.Unlock()
			if idle {
				p.Close(repoPath)
				return
			}
		case <-pw.done:
			return
		}
	}
}

func (p *WatcherPool) idleCheckInterval() time.Duration {
	if p.watcherTTL <= 0 || p.watcherTTL > time.Minute {
		return time.Minute
	}
	return p.watcherTTL / 2
}

// Close stops watching repoPath and releases its watcher.
func (p *WatcherPool) Close(repoPath string) {
	p.mu.Lock()
	pw, ok := p.watchers[repoPath]
	if ok {
		delete(p.watchers, repoPath)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	close(pw.done)
	pw.watcher.Close()
}

// Len reports the number of repos currently watched.
func (p *WatcherPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}
