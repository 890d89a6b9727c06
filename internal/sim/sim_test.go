package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dontlook/stalker/internal/cache"
	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/dispatcher"
	"github.com/dontlook/stalker/internal/parser"
	"github.com/dontlook/stalker/internal/scenario"
	"github.com/dontlook/stalker/internal/session"
	"github.com/dontlook/stalker/internal/storage/memory"
	"github.com/dontlook/stalker/internal/worker"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newStack(t *testing.T) (*dispatcher.Dispatcher, *memory.Backend) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})

	m, err := worker.NewManager(worker.Dependencies{
		Logger:   logger,
		Parser:   parser.NewParser(logger, core.DefaultPursuerSettings()),
		Session:  session.NewContext(),
		Pursuers: cache.NewPursuerCache(),
		Backend:  backend,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	m.RegisterHandlers(d)
	return d, backend
}

const chase = `
name: chase
dt: 0.1
ticks: 40
pursuers:
  - {name: stalker, position: [0, 0, 0]}
obstacles:
  - {id: wall, kind: box, min: [-2, 0, 14], max: [2, 3, 15]}
target: {position: [0, 0, 10], forward: [0, 0, 1]}
script:
  - {at: 11, face: [0, 0, -1]}
  - {at: 21, clear: true}
  - {at: 31, restore: true}
`

func TestRun_Chase(t *testing.T) {
	d, backend := newStack(t)
	s, err := scenario.Parse([]byte(chase))
	require.NoError(t, err)

	var results []worker.TickResult
	host := New(d, Config{
		Defaults: core.DefaultPursuerSettings(),
		OnTick:   func(res worker.TickResult) { results = append(results, res) },
	}, nil)

	res, err := host.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 40, res.Ticks)
	assert.False(t, res.Cancelled)
	assert.Equal(t, "chase", res.End.Session.Scenario)
	assert.NotEmpty(t, res.End.ExportPath)
	require.Len(t, results, 40)

	// back turned: advance
	assert.True(t, results[0].Commands["stalker"].Advancing)
	// turned around with nothing between: freeze
	assert.True(t, results[10].Commands["stalker"].TargetLooking)
	assert.False(t, results[10].Commands["stalker"].Advancing)
	// target gone: skipped, still frozen
	assert.True(t, results[20].Commands["stalker"].Skipped)
	assert.False(t, results[20].Commands["stalker"].Advancing)
	// back and still looking
	assert.False(t, results[30].Commands["stalker"].Skipped)
	assert.True(t, results[30].Commands["stalker"].TargetLooking)

	ticks := backend.Ticks("stalker")
	require.Len(t, ticks, 40)
	// moved during the first ten ticks only
	assert.InDelta(t, 10*0.1*core.DefaultMoveSpeed, ticks[39].Position.Z(), 1e-9)
	assert.Len(t, backend.Transitions(), 2)
}

func TestRun_ConfigFallback(t *testing.T) {
	d, backend := newStack(t)
	s, err := scenario.Parse([]byte("name: idle\npursuers: [{name: a, position: [0, 0, 0]}]"))
	require.NoError(t, err)

	res, err := New(d, Config{Dt: 0.05, Ticks: 3, Defaults: core.DefaultPursuerSettings()}, nil).
		Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Ticks)
	assert.Equal(t, 20.0, res.End.Session.TickRate)
	for _, r := range backend.Ticks("a") {
		assert.True(t, r.Skipped)
	}
}

func TestRun_NoTicks(t *testing.T) {
	d, _ := newStack(t)
	s, err := scenario.Parse([]byte("name: empty"))
	require.NoError(t, err)

	_, err = New(d, Config{}, nil).Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrNoTicks)
}

func TestRun_Cancelled(t *testing.T) {
	d, backend := newStack(t)
	s, err := scenario.Parse([]byte(chase))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	host := New(d, Config{
		Defaults: core.DefaultPursuerSettings(),
		OnTick: func(res worker.TickResult) {
			if res.Tick == 5 {
				cancel()
			}
		},
	}, nil)

	res, err := host.Run(ctx, s)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.Equal(t, 5, res.Ticks)
	assert.Len(t, backend.Ticks("stalker"), 5)
	// the session is ended anyway
	assert.False(t, res.End.Session.EndTime.IsZero())
}

func TestRun_Realtime(t *testing.T) {
	d, _ := newStack(t)
	s, err := scenario.Parse([]byte("name: rt\ndt: 0.01\nticks: 5\npursuers: [{name: a, position: [0, 0, 0]}]"))
	require.NoError(t, err)

	start := time.Now()
	res, err := New(d, Config{Realtime: true, Defaults: core.DefaultPursuerSettings()}, nil).
		Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Ticks)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_RealtimeStepTooShort(t *testing.T) {
	d, backend := newStack(t)
	s, err := scenario.Parse([]byte("name: rt\ndt: 1e-12\nticks: 5\npursuers: [{name: a, position: [0, 0, 0]}]"))
	require.NoError(t, err)

	_, err = New(d, Config{Realtime: true, Defaults: core.DefaultPursuerSettings()}, nil).
		Run(context.Background(), s)
	assert.ErrorIs(t, err, ErrStepTooShort)
	assert.Empty(t, backend.Ticks("a"))
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	return nil, errors.New("host gone")
}

func TestRun_SetupError(t *testing.T) {
	s, err := scenario.Parse([]byte("name: x\nticks: 1\ndt: 1"))
	require.NoError(t, err)

	_, err = New(failingDispatcher{}, Config{}, nil).Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":INIT:SESSION:")
}
