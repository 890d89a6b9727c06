// Package memory keeps a session in memory and exports it as (gzipped) JSON
// when the session ends.
package memory

import (
	"path/filepath"
	"sync"

	"github.com/dontlook/stalker/internal/config"
	v1 "github.com/dontlook/stalker/internal/storage/memory/export/v1"
	"github.com/dontlook/stalker/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	pursuers    map[string]*v1.PursuerRecord // keyed by name
	transitions []core.Transition

	idCounter      uint
	sessionCounter uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		pursuers: make(map[string]*v1.PursuerRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessionCounter++
	s.ID = b.sessionCounter
	b.session = s

	// Reset all collections
	b.pursuers = make(map[string]*v1.PursuerRecord)
	b.transitions = nil
	b.idCounter = 0

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	return b.exportJSON()
}

// exportJSON writes the session data to a JSON file
func (b *Backend) exportJSON() error {
	export := v1.Build(b.sessionData())

	outputPath := filepath.Join(b.cfg.OutputDir, v1.FileName(b.session, b.cfg.CompressOutput))
	if err := v1.Write(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) sessionData() *v1.SessionData {
	return &v1.SessionData{
		Session:     b.session,
		Pursuers:    b.pursuers,
		Transitions: b.transitions,
	}
}

// ExportedFilePath returns the path of the last export, empty before the
// first EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// AddPursuer registers a new pursuer
func (b *Backend) AddPursuer(p *core.Pursuer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	p.ID = b.idCounter
	if b.session != nil {
		p.SessionID = b.session.ID
	}

	b.pursuers[p.Name] = &v1.PursuerRecord{
		Pursuer: *p,
		Ticks:   make([]core.TickRecord, 0),
	}
	return nil
}

// GetPursuer looks up a pursuer by name
func (b *Backend) GetPursuer(name string) (*core.Pursuer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.pursuers[name]; ok {
		p := record.Pursuer
		return &p, true
	}
	return nil, false
}

// Ticks returns a copy of the ticks recorded for a pursuer.
func (b *Backend) Ticks(name string) []core.TickRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.pursuers[name]
	if !ok {
		return nil
	}
	out := make([]core.TickRecord, len(record.Ticks))
	copy(out, record.Ticks)
	return out
}

// Transitions returns a copy of the recorded transitions.
func (b *Backend) Transitions() []core.Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Transition, len(b.transitions))
	copy(out, b.transitions)
	return out
}

// RecordTick records a tick for a registered pursuer
func (b *Backend) RecordTick(r *core.TickRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.pursuers[r.Pursuer]
	if !ok {
		return nil // silently ignore if pursuer not found
	}
	record.Ticks = append(record.Ticks, *r)
	return nil
}

// RecordTransition records a motion state change
func (b *Backend) RecordTransition(t *core.Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitions = append(b.transitions, *t)
	return nil
}
