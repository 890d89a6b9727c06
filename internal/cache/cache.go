// Package cache keeps the live pursuers of a session and their collaborators.
package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dontlook/stalker/internal/animation"
	"github.com/dontlook/stalker/internal/navigation"
	"github.com/dontlook/stalker/internal/pursuit"
)

// ErrDuplicatePursuer is returned when a name is already registered.
var ErrDuplicatePursuer = errors.New("pursuer already registered")

// Pursuer bundles an agent with the host-side collaborators it drives.
type Pursuer struct {
	Agent     *pursuit.Agent
	Navigator *navigation.Agent
	Animator  *animation.Animator
}

// PursuerCache holds pursuers keyed by name, iterated in registration order.
type PursuerCache struct {
	m       sync.Mutex
	entries map[string]*Pursuer
	order   []string
}

func NewPursuerCache() *PursuerCache {
	return &PursuerCache{
		entries: make(map[string]*Pursuer),
	}
}

func (c *PursuerCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[string]*Pursuer)
	c.order = nil
}

func (c *PursuerCache) Add(name string, p *Pursuer) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePursuer, name)
	}
	c.entries[name] = p
	c.order = append(c.order, name)
	return nil
}

func (c *PursuerCache) Get(name string) (*Pursuer, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	p, ok := c.entries[name]
	return p, ok
}

func (c *PursuerCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.order)
}

// Names returns the registered names in registration order.
func (c *PursuerCache) Names() []string {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Each calls fn for every pursuer in registration order. fn must not call
// back into the cache.
func (c *PursuerCache) Each(fn func(name string, p *Pursuer)) {
	c.m.Lock()
	defer c.m.Unlock()
	for _, name := range c.order {
		fn(name, c.entries[name])
	}
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
