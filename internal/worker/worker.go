// Package worker turns host commands into pursuer ticks: it parses the
// arguments, drives the agents and hands the outcome to storage and metrics.
package worker

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dontlook/stalker/internal/cache"
	"github.com/dontlook/stalker/internal/influx"
	"github.com/dontlook/stalker/internal/parser"
	"github.com/dontlook/stalker/internal/physics"
	"github.com/dontlook/stalker/internal/session"
	"github.com/dontlook/stalker/internal/storage"
	"github.com/dontlook/stalker/internal/vision"
	"github.com/dontlook/stalker/pkg/core"
)

// BodyRadius is the collider radius given to every pursuer.
const BodyRadius = 0.5

// ErrNoSession is returned by commands that need a running session.
var ErrNoSession = errors.New("no active session")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger   *slog.Logger
	Parser   *parser.Parser
	Session  *session.Context
	Pursuers *cache.PursuerCache
	Backend  storage.Backend
	// Influx is optional; nil disables influx points and :METRIC:.
	Influx *influx.Manager
	// Config is stored with every session as its config snapshot.
	Config map[string]any
}

// Stats are the running totals since the manager was created.
type Stats struct {
	Ticks       int `json:"ticks"`
	Skipped     int `json:"skipped"`
	Transitions int `json:"transitions"`
	Pursuers    int `json:"pursuers"`
}

// TickResult is returned by the :TICK: handler.
type TickResult struct {
	Tick     uint
	SimTime  float64
	Commands map[string]core.Command
}

// Manager owns the physics world of the running session and the handlers
// that mutate it.
type Manager struct {
	deps    Dependencies
	metrics *instruments
	// drain waits for queued dispatcher events, set by RegisterHandlers
	drain func()

	// mu serializes session lifecycle against ticks
	mu     sync.Mutex
	world  *physics.World
	vision *vision.Checker

	ticks       cache.SafeCounter
	skipped     cache.SafeCounter
	transitions cache.SafeCounter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	metrics, err := newInstruments()
	if err != nil {
		return nil, err
	}
	world := physics.NewWorld()
	return &Manager{
		deps:    deps,
		metrics: metrics,
		world:   world,
		vision:  vision.NewChecker(vision.DefaultPolicy, world),
	}, nil
}

// World returns the physics world of the current session.
func (m *Manager) World() *physics.World {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.world
}

// Stats returns the running totals.
func (m *Manager) Stats() Stats {
	return Stats{
		Ticks:       m.ticks.Value(),
		Skipped:     m.skipped.Value(),
		Transitions: m.transitions.Value(),
		Pursuers:    m.deps.Pursuers.Len(),
	}
}

// PendingProvider is an optional interface that backends can implement
// to expose how many records are waiting to be written.
type PendingProvider interface {
	Pending() int
}

// Pending returns the number of records the backend has not written yet.
// Returns 0 if the backend doesn't buffer.
func (m *Manager) Pending() int {
	if p, ok := m.deps.Backend.(PendingProvider); ok {
		return p.Pending()
	}
	return 0
}
