// Package cache is C9: a URL-keyed LRU of recent PageMap passes with a
// 90-second TTL and a three-tier fingerprint-based freshness decision, so
// repeated Build calls against a page the agent hasn't navigated away
// from don't re-run the whole pipeline.
package cache

import (
	"sync"
	"time"

	"github.com/Retio-ai/Retio-pagemap/internal/pagemap/model"
)

// Tier is the freshness verdict Lookup returns alongside a cached entry.
type Tier int

const (
	// TierMiss: no usable cached entry: fall through to a full build.
	TierMiss Tier = iota
	// TierA: structure and content fingerprints both match and the entry
	// is within TTL — serve the cached PageMap verbatim.
	TierA
	// TierB: structure fingerprint matches but content fingerprint
	// differs — re-run compression over fresh content but reuse the
	// cached page-type classification and interactable template.
	TierB
	// TierC: structure fingerprint differs: the page has meaningfully
	// changed shape, forcing a full rebuild.
	TierC
)

const (
	capacity = 20
	ttl      = 90 * time.Second
)

// InvalidationReason records why an entry was evicted ahead of its TTL,
// for diagnostics.
type InvalidationReason string

const (
	ReasonNavigation      InvalidationReason = "navigation"
	ReasonAction          InvalidationReason = "action"
	ReasonTimeout         InvalidationReason = "timeout"
	ReasonSizeExceeded    InvalidationReason = "size_exceeded"
	ReasonManual          InvalidationReason = "manual"
	ReasonStructureChange InvalidationReason = "structure_changed"
	ReasonURLChanged      InvalidationReason = "url_changed"
	ReasonSessionReset    InvalidationReason = "session_reset"
	ReasonError           InvalidationReason = "error"
	ReasonTTL             InvalidationReason = "ttl"
)

type entry struct {
	pageMap     model.PageMap
	fingerprint model.Fingerprint
	storedAt    time.Time
	// lru doubly-linked list pointers, by key
	prev, next *entry
	key        string
}

// Template is the reusable per-(host,page_type) shape: the interactable
// list and classification, which rarely change even when prose content
// does. Build falls back to it when a full (non-Tier-B) detection pass
// finds no interactables.
type Template struct {
	PageType      string
	Interactables []model.Interactable
	SchemaName    string
}

// Cache is a mutex-guarded, capacity-bounded LRU keyed by URL, plus a
// side table of per-(host,page_type) Templates.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	head, tail *entry // head = most recently used
	templates map[string]Template
}

// New returns an empty Cache at the fixed capacity/TTL policy.
func New() *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		templates: make(map[string]Template),
	}
}

// Lookup resolves the freshness tier for url given the snapshot's current
// fingerprint. A stale (past-TTL) or absent entry returns TierMiss.
func (c *Cache) Lookup(url string, fp model.Fingerprint) (model.PageMap, Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return model.PageMap{}, TierMiss
	}
	if time.Since(e.storedAt) > ttl {
		c.removeLocked(e)
		return model.PageMap{}, TierMiss
	}
	c.touchLocked(e)

	switch {
	case e.fingerprint.StructureHash != fp.StructureHash:
		return model.PageMap{}, TierC
	case e.fingerprint.ContentHash != fp.ContentHash:
		return e.pageMap, TierB
	default:
		return e.pageMap, TierA
	}
}

// Store inserts or refreshes the entry for url, evicting the
// least-recently-used entry if capacity is exceeded.
func (c *Cache) Store(url string, pm model.PageMap) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[url]; ok {
		e.pageMap = pm
		e.fingerprint = pm.Fingerprint
		e.storedAt = time.Now()
		c.touchLocked(e)
		return
	}

	e := &entry{key: url, pageMap: pm, fingerprint: pm.Fingerprint, storedAt: time.Now()}
	c.entries[url] = e
	c.pushFrontLocked(e)

	if len(c.entries) > capacity {
		c.removeLocked(c.tail)
	}
}

// Invalidate removes url's cached entry, regardless of TTL or
// fingerprint. reason is accepted for diagnostics/logging call sites; the
// cache itself does not branch on it.
func (c *Cache) Invalidate(url string, reason InvalidationReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[url]; ok {
		c.removeLocked(e)
	}
}

// StoreTemplate records the reusable interactable/classification shape
// for a (host, pageType) pair, for later builds whose detection comes back
// empty.
func (c *Cache) StoreTemplate(host, pageType string, t Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[host+"|"+pageType] = t
}

// Template returns the stored template for (host, pageType), if any.
func (c *Cache) Template(host, pageType string) (Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[host+"|"+pageType]
	return t, ok
}

// --- LRU list bookkeeping, caller must hold c.mu ---

func (c *Cache) touchLocked(e *entry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushFrontLocked(e)
}

func (c *Cache) pushFrontLocked(e *entry) {
	e.prev, e.next = nil, c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlinkLocked(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *Cache) removeLocked(e *entry) {
	if e == nil {
		return
	}
	c.unlinkLocked(e)
	delete(c.entries, e.key)
}
