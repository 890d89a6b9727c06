package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/dontlook/stalker/internal/animation"
	"github.com/dontlook/stalker/internal/cache"
	"github.com/dontlook/stalker/internal/dispatcher"
	"github.com/dontlook/stalker/internal/influx"
	"github.com/dontlook/stalker/internal/navigation"
	"github.com/dontlook/stalker/internal/physics"
	"github.com/dontlook/stalker/internal/pursuit"
	"github.com/dontlook/stalker/internal/storage"
	"github.com/dontlook/stalker/internal/vision"
	"github.com/dontlook/stalker/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Host commands.
const (
	CmdInitSession = ":INIT:SESSION:"
	CmdAddPursuer  = ":PURSUER:ADD:"
	CmdAddObstacle = ":OBSTACLE:ADD:"
	CmdSetTarget   = ":TARGET:SET:"
	CmdClearTarget = ":TARGET:CLEAR:"
	CmdTick        = ":TICK:"
	CmdEndSession  = ":END:SESSION:"
	CmdMetric      = ":METRIC:"
)

// EndResult is returned by the :END:SESSION: handler.
type EndResult struct {
	Session    core.Session
	ExportPath string
}

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.drain = d.Drain
	inSession := dispatcher.Guarded(m.requireSession)

	// Lifecycle and world setup - sync, later commands depend on them
	d.Register(CmdInitSession, m.handleInitSession, dispatcher.Logged())
	d.Register(CmdAddPursuer, m.handleAddPursuer, inSession, dispatcher.Logged())
	d.Register(CmdAddObstacle, m.handleAddObstacle, inSession, dispatcher.Logged())
	d.Register(CmdEndSession, m.handleEndSession, dispatcher.Logged())

	// Target updates and ticks - sync, a tick must see the target set before it
	d.Register(CmdSetTarget, m.handleSetTarget)
	d.Register(CmdClearTarget, m.handleClearTarget)
	d.Register(CmdTick, m.handleTick, inSession)

	// Free-form metrics - buffered
	if m.deps.Influx != nil {
		d.Register(CmdMetric, m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
	}
}

func (m *Manager) requireSession() error {
	if !m.deps.Session.Active() {
		return ErrNoSession
	}
	return nil
}

func (m *Manager) handleInitSession(e dispatcher.Event) (any, error) {
	s, err := m.deps.Parser.ParseSession(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deps.Session.Active() {
		m.deps.Logger.Warn("Session still active, ending it", "scenario", m.deps.Session.Session().Scenario)
		if _, err := m.endSession(); err != nil {
			m.deps.Logger.Error("Failed to end previous session", "error", err)
		}
	}

	policy, err := vision.ParsePolicy(s.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}

	m.deps.Pursuers.Reset()
	m.world = physics.NewWorld()
	m.vision = vision.NewChecker(policy, m.world)

	s.Config = m.deps.Config
	if err := m.deps.Backend.StartSession(&s); err != nil {
		return nil, fmt.Errorf("failed to start session in storage: %w", err)
	}
	m.deps.Session.Start(&s)

	m.deps.Logger.Info("Session started",
		"id", s.ID,
		"scenario", s.Scenario,
		"policy", s.Policy)
	return s, nil
}

func (m *Manager) handleAddPursuer(e dispatcher.Event) (any, error) {
	spawn, err := m.deps.Parser.ParsePursuer(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add pursuer: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nav := navigation.NewAgent(spawn.Position, spawn.Settings.MoveSpeed, spawn.Settings.StopDistance)
	anim := animation.NewAnimator()
	agent := pursuit.New(spawn.Name, spawn.Settings, core.NewTransform(spawn.Position), pursuit.Dependencies{
		Navigator: nav,
		Animator:  anim,
		Vision:    m.vision,
	})

	if err := m.deps.Pursuers.Add(spawn.Name, &cache.Pursuer{
		Agent:     agent,
		Navigator: nav,
		Animator:  anim,
	}); err != nil {
		return nil, fmt.Errorf("failed to add pursuer: %w", err)
	}
	// the pursuer's own collider, so occlusion rays can hit it
	if err := m.world.Add(spawn.Name, physics.Sphere{Center: spawn.Position, Radius: BodyRadius}); err != nil {
		return nil, fmt.Errorf("failed to add pursuer body: %w", err)
	}
	agent.Start()

	p := core.Pursuer{
		Name:     spawn.Name,
		Spawn:    spawn.Position,
		Settings: spawn.Settings,
	}
	if err := m.deps.Backend.AddPursuer(&p); err != nil {
		m.deps.Logger.Error("Failed to store pursuer", "pursuer", spawn.Name, "error", err)
	}
	return p, nil
}

func (m *Manager) handleAddObstacle(e dispatcher.Event) (any, error) {
	spawn, err := m.deps.Parser.ParseObstacle(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to add obstacle: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.world.Add(spawn.ID, spawn.Collider); err != nil {
		return nil, fmt.Errorf("failed to add obstacle: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleSetTarget(e dispatcher.Event) (any, error) {
	target, err := m.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to set target: %w", err)
	}
	m.deps.Session.SetTarget(target)
	return nil, nil
}

func (m *Manager) handleClearTarget(dispatcher.Event) (any, error) {
	m.deps.Session.SetTarget(nil)
	return nil, nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	dt, err := m.deps.Parser.ParseTick(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to tick: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tick, simTime := m.deps.Session.Advance(dt)
	target := m.deps.Session.Target()
	s := m.deps.Session.Session()
	now := time.Now()

	result := TickResult{
		Tick:     tick,
		SimTime:  simTime,
		Commands: make(map[string]core.Command, m.deps.Pursuers.Len()),
	}

	m.deps.Pursuers.Each(func(name string, p *cache.Pursuer) {
		prev := p.Agent.State()
		cmd := p.Agent.Tick(target, dt)
		// a skipped tick leaves the pursuer exactly where it was
		pos := p.Navigator.Position()
		if !cmd.Skipped {
			pos = p.Navigator.Step(dt)
			if err := m.world.MoveTo(name, pos); err != nil {
				m.deps.Logger.Error("Failed to move pursuer body", "pursuer", name, "error", err)
			}
		}
		result.Commands[name] = cmd

		rec := &core.TickRecord{
			SessionID:     s.ID,
			Pursuer:       name,
			Tick:          tick,
			SimTime:       simTime,
			Time:          now,
			Position:      pos,
			Yaw:           p.Agent.Transform().Yaw(),
			TargetLooking: cmd.TargetLooking,
			Distance:      cmd.Distance,
			Advancing:     cmd.Advancing,
			Skipped:       cmd.Skipped,
		}
		if target != nil {
			tp := target.Position
			rec.TargetPosition = &tp
		}
		m.record(rec, s.Policy)

		if cmd.Skipped {
			return
		}
		if next := cmd.State(); next != prev {
			m.recordTransition(&core.Transition{
				SessionID: s.ID,
				Pursuer:   name,
				Tick:      tick,
				SimTime:   simTime,
				Time:      now,
				From:      prev,
				To:        next,
			})
		}
	})

	return result, nil
}

// record stores a tick. Failures are logged, never returned: a storage
// problem must not stall the simulation.
func (m *Manager) record(rec *core.TickRecord, policy string) {
	m.ticks.Inc()
	outcome := "idle"
	switch {
	case rec.Skipped:
		m.skipped.Inc()
		outcome = "skipped"
	case rec.Advancing:
		outcome = "advancing"
	}

	ctx := context.Background()
	m.metrics.ticks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pursuer", rec.Pursuer),
		attribute.String("outcome", outcome)))
	if !rec.Skipped {
		m.metrics.distance.Record(ctx, rec.Distance,
			metric.WithAttributes(attribute.String("pursuer", rec.Pursuer)))
	}

	if err := m.deps.Backend.RecordTick(rec); err != nil {
		m.deps.Logger.Error("Failed to record tick", "pursuer", rec.Pursuer, "tick", rec.Tick, "error", err)
	}
	if m.deps.Influx != nil {
		if err := m.deps.Influx.RecordTick(rec, policy); err != nil {
			m.deps.Logger.Debug("Failed to write tick point", "error", err)
		}
	}
}

func (m *Manager) recordTransition(t *core.Transition) {
	m.transitions.Inc()
	m.metrics.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pursuer", t.Pursuer),
		attribute.String("to", t.To.String())))

	m.deps.Logger.Debug("Pursuer changed state",
		"pursuer", t.Pursuer,
		"tick", t.Tick,
		"from", t.From.String(),
		"to", t.To.String())

	if err := m.deps.Backend.RecordTransition(t); err != nil {
		m.deps.Logger.Error("Failed to record transition", "pursuer", t.Pursuer, "error", err)
	}
	if m.deps.Influx != nil {
		if err := m.deps.Influx.RecordTransition(t); err != nil {
			m.deps.Logger.Debug("Failed to write transition point", "error", err)
		}
	}
}

func (m *Manager) handleEndSession(dispatcher.Event) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.deps.Session.Active() {
		return nil, ErrNoSession
	}
	return m.endSession()
}

// endSession must be called with m.mu held.
func (m *Manager) endSession() (EndResult, error) {
	s := m.deps.Session.End(time.Now())
	result := EndResult{Session: *s}

	err := m.deps.Backend.EndSession()
	if exp, ok := m.deps.Backend.(storage.Exporter); ok {
		result.ExportPath = exp.ExportedFilePath()
	}
	if m.deps.Influx != nil {
		// queued :METRIC: points belong to this session
		if m.drain != nil {
			m.drain()
		}
		if ferr := m.deps.Influx.Flush(); ferr != nil {
			m.deps.Logger.Warn("Failed to flush influx", "error", ferr)
		}
	}
	if err != nil {
		return result, fmt.Errorf("failed to end session in storage: %w", err)
	}

	tick, simTime := m.deps.Session.Clock()
	m.deps.Logger.Info("Session ended",
		"id", s.ID,
		"scenario", s.Scenario,
		"ticks", tick,
		"simTime", simTime,
		"export", result.ExportPath)
	return result, nil
}

func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	point, err := influx.ParseMetric(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	if err := m.deps.Influx.RecordMetric(point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}
	return nil, nil
}
