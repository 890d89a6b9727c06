// Package sim is the host: it plays the engine's role for a scenario,
// sending setup commands, script changes and fixed-step ticks through the
// dispatcher.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dontlook/stalker/internal/dispatcher"
	"github.com/dontlook/stalker/internal/scenario"
	"github.com/dontlook/stalker/internal/worker"
	"github.com/dontlook/stalker/pkg/core"
)

// ErrNoTicks is returned when neither the scenario nor the config sets a
// positive step and tick count.
var ErrNoTicks = errors.New("nothing to run: dt and ticks must be positive")

// ErrStepTooShort is returned for realtime runs whose step rounds to zero.
var ErrStepTooShort = errors.New("dt is below the clock resolution")

// Dispatcher is the command sink the host drives.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Config holds loop settings. Scenario values take precedence.
type Config struct {
	Dt       float64
	Ticks    int
	Realtime bool
	// Defaults fill in pursuer tuning the scenario leaves out.
	Defaults core.PursuerSettings
	// OnTick is called after every tick when set.
	OnTick func(res worker.TickResult)
}

// Result summarizes a run.
type Result struct {
	Ticks     int
	Cancelled bool
	End       worker.EndResult
}

// Host runs scenarios.
type Host struct {
	d      Dispatcher
	cfg    Config
	logger *slog.Logger
}

// New creates a host.
func New(d Dispatcher, cfg Config, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{d: d, cfg: cfg, logger: logger}
}

// Run plays s to the end or until ctx is cancelled. The session is ended
// either way so the recording is complete.
func (h *Host) Run(ctx context.Context, s *scenario.Scenario) (Result, error) {
	var result Result

	dt, ticks := s.Dt, s.Ticks
	if dt <= 0 {
		dt = h.cfg.Dt
	}
	if ticks <= 0 {
		ticks = h.cfg.Ticks
	}
	if dt <= 0 || ticks <= 0 {
		return result, ErrNoTicks
	}
	period := time.Duration(dt * float64(time.Second))
	if h.cfg.Realtime && period <= 0 {
		return result, fmt.Errorf("%w: %v s", ErrStepTooShort, dt)
	}

	setup, err := s.Setup(dt, h.cfg.Defaults)
	if err != nil {
		return result, err
	}
	for _, c := range setup {
		if _, err := h.send(c.Name, c.Args); err != nil {
			return result, err
		}
	}
	h.logger.Info("Scenario loaded",
		"scenario", s.Name,
		"pursuers", len(s.Pursuers),
		"obstacles", len(s.Obstacles),
		"dt", dt,
		"ticks", ticks)

	player := s.NewPlayer()
	dtArg := strconv.FormatFloat(dt, 'f', -1, 64)

	var pace <-chan time.Time
	if h.cfg.Realtime {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		pace = ticker.C
	}

	runErr := h.loop(ctx, &result, ticks, dtArg, player, pace)

	res, err := h.send(worker.CmdEndSession, nil)
	if err != nil {
		return result, errors.Join(runErr, err)
	}
	if end, ok := res.(worker.EndResult); ok {
		result.End = end
	}
	return result, runErr
}

func (h *Host) loop(ctx context.Context, result *Result, ticks int, dt string, player *scenario.Player, pace <-chan time.Time) error {
	for tick := 1; tick <= ticks; tick++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			h.logger.Info("Run cancelled", "tick", tick)
			return nil
		}

		for _, c := range player.Before(tick) {
			if _, err := h.send(c.Name, c.Args); err != nil {
				return err
			}
		}

		res, err := h.send(worker.CmdTick, []string{dt})
		if err != nil {
			return err
		}
		result.Ticks = tick
		if tr, ok := res.(worker.TickResult); ok && h.cfg.OnTick != nil {
			h.cfg.OnTick(tr)
		}

		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
	}
	return nil
}

func (h *Host) send(command string, args []string) (any, error) {
	res, err := h.d.Dispatch(dispatcher.Event{Command: command, Args: args, Timestamp: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return res, nil
}
