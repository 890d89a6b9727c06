// Package monitor periodically snapshots the running session into a status
// file and, when a database is attached, a performance table.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dontlook/stalker/internal/cache"
	"github.com/dontlook/stalker/internal/model"
	"github.com/dontlook/stalker/internal/session"
	"github.com/dontlook/stalker/internal/worker"
	"github.com/dontlook/stalker/pkg/core"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger   *slog.Logger
	Session  *session.Context
	Pursuers *cache.PursuerCache
	Worker   *worker.Manager
	// DB is optional. When set, every snapshot is also stored as a
	// model.Performance row.
	DB         *gorm.DB
	StatusFile string
	Interval   time.Duration
}

// PursuerStatus is one pursuer in a snapshot.
type PursuerStatus struct {
	Name     string           `json:"name"`
	State    core.MotionState `json:"state"`
	Position core.Vec3        `json:"position"`
	Yaw      float64          `json:"yaw"`
}

// Status is a point-in-time view of the session.
type Status struct {
	Time      time.Time       `json:"time"`
	SessionID uint            `json:"sessionId"`
	Scenario  string          `json:"scenario"`
	Active    bool            `json:"active"`
	Tick      uint            `json:"tick"`
	SimTime   float64         `json:"simTime"`
	Stats     worker.Stats    `json:"stats"`
	Pending   int             `json:"pendingWrites"`
	Pursuers  []PursuerStatus `json:"pursuers"`
}

// Advancing counts the pursuers currently advancing.
func (s Status) Advancing() int {
	n := 0
	for _, p := range s.Pursuers {
		if p.State == core.StateAdvancing {
			n++
		}
	}
	return n
}

// Performance converts the snapshot into its database row.
func (s Status) Performance() model.Performance {
	return model.Performance{
		Time:          s.Time,
		SessionID:     s.SessionID,
		Tick:          s.Tick,
		SimTime:       s.SimTime,
		Pursuers:      uint16(len(s.Pursuers)),
		Advancing:     uint16(s.Advancing()),
		Ticks:         uint32(s.Stats.Ticks),
		Skipped:       uint32(s.Stats.Skipped),
		Transitions:   uint32(s.Stats.Transitions),
		PendingWrites: uint32(s.Pending),
	}
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status snapshot.
func (s *Service) GetStatus() Status {
	sess := s.deps.Session.Session()
	tick, simTime := s.deps.Session.Clock()

	status := Status{
		Time:      time.Now(),
		SessionID: sess.ID,
		Scenario:  sess.Scenario,
		Active:    s.deps.Session.Active(),
		Tick:      tick,
		SimTime:   simTime,
		Pursuers:  []PursuerStatus{},
	}
	if s.deps.Worker != nil {
		status.Stats = s.deps.Worker.Stats()
		status.Pending = s.deps.Worker.Pending()
	}
	if s.deps.Pursuers != nil {
		s.deps.Pursuers.Each(func(name string, p *cache.Pursuer) {
			status.Pursuers = append(status.Pursuers, PursuerStatus{
				Name:     name,
				State:    p.Agent.State(),
				Position: p.Navigator.Position(),
				Yaw:      p.Agent.Transform().Yaw(),
			})
		})
	}
	return status
}

// WriteStatus writes a snapshot to the status file and the database.
func (s *Service) WriteStatus(f *os.File) error {
	status := s.GetStatus()

	if f != nil {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding status: %w", err)
		}
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("error truncating status file: %w", err)
		}
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("error rewinding status file: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("error writing status file: %w", err)
		}
	}

	if s.deps.DB != nil && status.Active {
		perf := status.Performance()
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			return fmt.Errorf("error writing performance row: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				// last snapshot so the file reflects the final state
				if err := s.WriteStatus(statusFile); err != nil {
					logger.Error("Error writing status", "error", err)
				}
				return
			case <-ticker.C:
				if !s.deps.Session.Active() {
					continue
				}
				if err := s.WriteStatus(statusFile); err != nil {
					logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the last snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
