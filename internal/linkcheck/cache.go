package linkcheck

import "sync"

// Cache holds verification outcomes for one crawl session, keyed by the
// exact URL string. Entries are never evicted and never overwritten.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Outcome
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Outcome)}
}

// Get returns the stored outcome for url, if any.
func (c *Cache) Get(url string) (Outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.entries[url]
	return o, ok
}

// Put stores the outcome for url. The first write wins; Put returns false
// if an outcome was already stored.
func (c *Cache) Put(url string, o Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[url]; ok {
		return false
	}
	c.entries[url] = o
	return true
}

// Len returns the number of distinct URLs cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
