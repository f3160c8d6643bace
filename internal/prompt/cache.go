package prompt

import "sync"

// TemplateCache holds loaded template bodies for the life of the process. Clear drops
// everything so edited templates are re-read on next use.
type TemplateCache struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{items: make(map[string]string)}
}

func (c *TemplateCache) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.items[name]
	return body, ok
}

func (c *TemplateCache) Set(name, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[name] = body
}

func (c *TemplateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]string)
}

// Len returns the number of cached templates.
func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
