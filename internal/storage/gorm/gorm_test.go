package gormstorage

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dontlook/stalker/internal/database"
	"github.com/dontlook/stalker/internal/model"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{Logger: slog.New(slog.DiscardHandler)})
}

// newSQLiteBackend creates an initialized Backend on a private in-memory database.
func newSQLiteBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)

	b := New(Dependencies{
		DB:            db,
		Logger:        slog.New(slog.DiscardHandler),
		DBLog:         zerolog.Nop(),
		FlushInterval: time.Hour,
	})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func tickRecord(tick uint, advancing bool) *core.TickRecord {
	target := core.Vec3{0, 0, 5}
	return &core.TickRecord{
		Pursuer:        "stalker",
		Tick:           tick,
		SimTime:        float64(tick) * 0.02,
		Time:           time.Now(),
		Position:       core.Vec3{0, 0, 0},
		TargetPosition: &target,
		Distance:       5,
		Advancing:      advancing,
	}
}

func TestInitClose_NoDB(t *testing.T) {
	b := newTestBackend()

	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NotNil(t, b.stopChan)

	require.NoError(t, b.Close())
	// second close is harmless
	require.NoError(t, b.Close())
}

func TestRecordTick_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.RecordTick(tickRecord(1, true)))
	require.NoError(t, b.RecordTransition(&core.Transition{Pursuer: "stalker", Tick: 1, To: core.StateAdvancing}))

	assert.Equal(t, 1, b.queues.TickSamples.Len())
	assert.Equal(t, 1, b.queues.Transitions.Len())
	assert.Equal(t, 2, b.Pending())
}

func TestAddPursuer_NoDB_NoError(t *testing.T) {
	b := newTestBackend()
	require.NoError(t, b.Init())
	defer b.Close()

	p := &core.Pursuer{Name: "stalker"}
	require.NoError(t, b.AddPursuer(p))
	assert.Zero(t, p.ID)
}

func TestSessionLifecycle_SQLite(t *testing.T) {
	b := newSQLiteBackend(t)

	s := &core.Session{Scenario: "corridor", Policy: "occlusion", StartTime: time.Now(), TickRate: 50}
	require.NoError(t, b.StartSession(s))
	require.NotZero(t, s.ID)
	assert.Equal(t, s.ID, b.SessionID())

	p := &core.Pursuer{Name: "stalker", Spawn: core.Vec3{1, 0, 2}, Settings: core.DefaultPursuerSettings()}
	require.NoError(t, b.AddPursuer(p))
	assert.NotZero(t, p.ID)
	assert.Equal(t, s.ID, p.SessionID)

	for i := uint(1); i <= 5; i++ {
		require.NoError(t, b.RecordTick(tickRecord(i, i > 2)))
	}
	require.NoError(t, b.RecordTransition(&core.Transition{Pursuer: "stalker", Tick: 3, From: core.StateIdle, To: core.StateAdvancing}))

	require.NoError(t, b.EndSession())
	assert.Zero(t, b.Pending())

	data, err := database.LoadSession(b.DB(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "corridor", data.Session.Scenario)
	assert.True(t, data.Session.EndTime.Valid)
	require.Len(t, data.Pursuers, 1)
	assert.Equal(t, "stalker", data.Pursuers[0].Name)
	require.Len(t, data.TickSamples, 5)
	for _, sample := range data.TickSamples {
		assert.Equal(t, s.ID, sample.SessionID, "rows are stamped with the current session")
		assert.True(t, sample.HasTarget)
	}
	require.Len(t, data.Transitions, 1)
	assert.Equal(t, "advancing", data.Transitions[0].ToState)
}

func TestAddPursuer_BeforeSession(t *testing.T) {
	b := newSQLiteBackend(t)
	err := b.AddPursuer(&core.Pursuer{Name: "early"})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAddPursuer_DuplicateNameFails(t *testing.T) {
	b := newSQLiteBackend(t)
	require.NoError(t, b.StartSession(&core.Session{Scenario: "dup", StartTime: time.Now()}))

	require.NoError(t, b.AddPursuer(&core.Pursuer{Name: "stalker"}))
	assert.Error(t, b.AddPursuer(&core.Pursuer{Name: "stalker"}))
}

func TestFlush_FailedBatchIsRequeued(t *testing.T) {
	b := newSQLiteBackend(t)
	require.NoError(t, b.StartSession(&core.Session{Scenario: "requeue", StartTime: time.Now()}))

	require.NoError(t, b.DB().Migrator().DropTable(&model.TickSample{}))
	require.NoError(t, b.RecordTick(tickRecord(1, false)))

	assert.Error(t, b.Flush())
	assert.Equal(t, 1, b.queues.TickSamples.Len())

	require.NoError(t, b.DB().AutoMigrate(&model.TickSample{}))
	require.NoError(t, b.Flush())
	assert.Zero(t, b.queues.TickSamples.Len())
}

func TestWriter_DrainsPeriodically(t *testing.T) {
	db, err := database.OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)
	b := New(Dependencies{DB: db, Logger: slog.New(slog.DiscardHandler), DBLog: zerolog.Nop(), FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Scenario: "writer", StartTime: time.Now()}))
	require.NoError(t, b.RecordTick(tickRecord(1, false)))

	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&model.TickSample{}).Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordTick_BoundedQueue(t *testing.T) {
	b := New(Dependencies{Logger: slog.New(slog.DiscardHandler), MaxPending: 2})
	require.NoError(t, b.Init())
	defer b.Close()

	for i := range 5 {
		require.NoError(t, b.RecordTick(tickRecord(uint(i), false)))
	}
	assert.Equal(t, 2, b.Pending())
	assert.Equal(t, 3, b.Dropped())
}
