package fetch

import "sync"

// validators holds the conditional-request headers remembered for one URL.
type validators struct {
	etag         string
	lastModified string
}

// validatorCache remembers ETag and Last-Modified values per URL so repeat
// fetches can be answered upstream with 304 Not Modified. The cache is
// in-process only; a restart refetches everything once.
type validatorCache struct {
	mu      sync.Mutex
	entries map[string]validators
}

func newValidatorCache() *validatorCache {
	return &validatorCache{entries: make(map[string]validators)}
}

func (c *validatorCache) get(url string) (validators, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[url]

	return v, ok
}

func (c *validatorCache) put(url string, v validators) {
	if v.etag == "" && v.lastModified == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = v
}

func (c *validatorCache) drop(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, url)
}

// Len reports the number of cached URLs.
func (c *validatorCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
