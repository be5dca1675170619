package exchange

import (
	"fmt"
	"sync"
)

// Container is a thread-safe registry of exchange adapters, keyed by
// account name. Callers aggregating several accounts register one
// adapter per account and iterate.
type Container struct {
	mu       sync.RWMutex
	adapters map[string]Exchange
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		adapters: make(map[string]Exchange),
	}
}

// Register adds an adapter under the given account name, replacing any
// existing registration.
func (c *Container) Register(name string, ex Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[name] = ex
}

// Get retrieves an adapter by account name.
func (c *Container) Get(name string) (Exchange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ex, exists := c.adapters[name]
	if !exists {
		return nil, fmt.Errorf("exchange account %q not found", name)
	}
	return ex, nil
}

// Names returns all registered account names.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.adapters))
	for name := range c.adapters {
		names = append(names, name)
	}
	return names
}

// Unregister removes an adapter by account name.
func (c *Container) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.adapters, name)
}

// Exists reports whether an adapter is registered under the name.
func (c *Container) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.adapters[name]
	return exists
}
