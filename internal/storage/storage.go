// Package storage defines the interface implemented by the tick recording backends.
package storage

import "github.com/dontlook/stalker/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns the session ID)
	StartSession(s *core.Session) error
	EndSession() error

	// Pursuer registration (assigns ID to the passed pointer)
	AddPursuer(p *core.Pursuer) error

	// Recording
	RecordTick(r *core.TickRecord) error
	RecordTransition(t *core.Transition) error
}

// Exporter is an optional interface for backends that write a recording
// file when a session ends.
type Exporter interface {
	ExportedFilePath() string
}

// Flusher is an optional interface for backends with buffered writes.
type Flusher interface {
	Flush() error
}
