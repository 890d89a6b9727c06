// Package session holds the state of the running simulation session that
// handlers and backends share: the session record, the target and the clock.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dontlook/stalker/pkg/core"
)

// Context holds the current session, target and tick clock.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	target  *core.TargetState
	tick    uint
	simTime float64
}

// NewContext creates a Context with no active session.
func NewContext() *Context {
	return &Context{
		session: &core.Session{Scenario: "No session loaded"},
	}
}

// Start installs a new session and resets the target and the clock.
func (c *Context) Start(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.target = nil
	c.tick = 0
	c.simTime = 0
}

// Session returns the current session.
func (c *Context) Session() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// End stamps the end time of the current session and returns it.
func (c *Context) End(at time.Time) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.EndTime = at
	return c.session
}

// Active reports whether a session has been started and not yet ended.
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.session.StartTime.IsZero() && c.session.EndTime.IsZero()
}

// SetTarget replaces the target. nil marks it absent.
func (c *Context) SetTarget(t *core.TargetState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = t.Clone()
}

// Target returns a copy of the target, or nil when absent.
func (c *Context) Target() *core.TargetState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target.Clone()
}

// Advance moves the clock one tick forward and returns the new tick index
// and simulated time.
func (c *Context) Advance(dt float64) (uint, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	c.simTime += dt
	return c.tick, c.simTime
}

// Clock returns the current tick index and simulated time.
func (c *Context) Clock() (uint, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick, c.simTime
}

// LogAttrs returns attributes for logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("scenario", c.session.Scenario),
		slog.Uint64("tick", uint64(c.tick)),
		slog.Float64("simTime", c.simTime),
	}
}
