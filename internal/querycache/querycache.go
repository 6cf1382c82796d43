// Package querycache implements the query-cache manager (spec §4.6): a
// file-backed cache of the most recent DOM query results, keyed by
// selector, so that index-based follow-up commands ("click result 2") can
// resolve a prior query's node references across separate CLI invocations
// without the CLI itself holding any state. Writes use the teacher's
// temp-file-then-rename idiom (internal/session session.go, itself adapted
// from daemon.go's writePIDFile) to make them atomic.
package querycache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grantcarthew/webctl/internal/telemetry"
)

// entry is one cached query result plus the navigation id it was captured
// under, used to detect staleness.
type entry struct {
	Result       telemetry.DomQueryResult `json:"result"`
	NavigationID int                      `json:"navigationId"`
	CapturedAt   time.Time                `json:"capturedAt"`
}

// file is the on-disk representation of the whole cache.
type file struct {
	Entries map[string]entry `json:"entries"`
}

// NavIDGetter returns the worker's current navigation id, used to validate
// whether a cached entry is stale.
type NavIDGetter func() int

// Cache is the query-cache manager. One Cache exists per worker process,
// backed by a single query-cache.json file under the session directory.
type Cache struct {
	path    string
	navID   NavIDGetter
	mu      sync.Mutex

	ttlMu      sync.Mutex
	ttlValue   int
	ttlExpires time.Time
	ttl        time.Duration
}

// New creates a Cache backed by path, consulting navID for staleness
// checks and caching its result for ttl (spec §4.6 default 500ms).
func New(path string, navID NavIDGetter, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 500 * time.Millisecond
	}
	return &Cache{path: path, navID: navID, ttl: ttl}
}

// currentNavID returns navID(), cached for ttl so repeated Resolve calls
// within the same burst of commands don't re-derive it (spec §4.6 "500ms
// TTL cache in front of navigation-id lookups").
func (c *Cache) currentNavID() int {
	c.ttlMu.Lock()
	defer c.ttlMu.Unlock()
	if time.Now().Before(c.ttlExpires) {
		return c.ttlValue
	}
	c.ttlValue = c.navID()
	c.ttlExpires = time.Now().Add(c.ttl)
	return c.ttlValue
}

// Invalidate forces the next currentNavID call to re-derive the
// navigation id rather than serving the cached value, used when the
// worker itself knows a navigation just happened.
func (c *Cache) Invalidate() {
	c.ttlMu.Lock()
	c.ttlExpires = time.Time{}
	c.ttlMu.Unlock()
}

// Write persists a query result for selector, stamped with the current
// navigation id.
func (c *Cache) Write(selector string, result telemetry.DomQueryResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.load()
	if err != nil {
		return err
	}
	if f.Entries == nil {
		f.Entries = make(map[string]entry)
	}
	f.Entries[selector] = entry{
		Result:       result,
		NavigationID: c.currentNavID(),
		CapturedAt:   time.Now(),
	}
	return c.save(f)
}

// Resolve implements the four-step staleness validation protocol: (1) load
// the cached entry for selector, returning ok=false if absent; (2) read
// the worker's current navigation id; (3) compare it to the id the entry
// was captured under; (4) return the entry only if they match, otherwise
// report it stale so the caller re-queries instead of acting on dangling
// node references from a page that has since navigated away.
func (c *Cache) Resolve(selector string) (result telemetry.DomQueryResult, ok bool, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.load()
	if err != nil {
		return telemetry.DomQueryResult{}, false, false
	}
	e, found := f.Entries[selector]
	if !found {
		return telemetry.DomQueryResult{}, false, false
	}

	current := c.currentNavID()
	if e.NavigationID != current {
		return telemetry.DomQueryResult{}, true, true
	}
	return e.Result, true, false
}

// Clear removes every cached entry, used by the "clear" command (spec §6).
// A navigation does not clear the cache: Resolve reports entries captured
// under an earlier navigation id as stale.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(file{Entries: make(map[string]entry)})
}

func (c *Cache) load() (file, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return file{Entries: make(map[string]entry)}, nil
		}
		return file{}, fmt.Errorf("read query cache: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		// A corrupt cache file is treated as empty rather than fatal: the
		// cache is a performance optimization, never a source of truth.
		return file{Entries: make(map[string]entry)}, nil
	}
	if f.Entries == nil {
		f.Entries = make(map[string]entry)
	}
	return f, nil
}

func (c *Cache) save(f file) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal query cache: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create query cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write query cache temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename query cache file: %w", err)
	}
	return nil
}
