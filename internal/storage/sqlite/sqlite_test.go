package sqlitestorage

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/database"
	"github.com/dontlook/stalker/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, cfg config.SQLiteConfig) *Backend {
	t.Helper()
	b, err := New(cfg, slog.New(slog.DiscardHandler), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestEndSession_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stalker.db")
	b := newBackend(t, config.SQLiteConfig{DumpPath: path})

	s := &core.Session{Scenario: "dump", Policy: "angle", StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.AddPursuer(&core.Pursuer{Name: "stalker"}))
	require.NoError(t, b.RecordTick(&core.TickRecord{Pursuer: "stalker", Tick: 1, Skipped: true}))
	require.NoError(t, b.EndSession())

	assert.Equal(t, path, b.ExportedFilePath())
	_, err := os.Stat(path)
	require.NoError(t, err)

	onDisk, err := database.OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	data, err := database.LoadSession(onDisk, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "angle", data.Session.Policy)
	assert.Len(t, data.TickSamples, 1)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b := newBackend(t, config.SQLiteConfig{DumpPath: path, DumpInterval: 20 * time.Millisecond})

	require.NoError(t, b.StartSession(&core.Session{Scenario: "loop", StartTime: time.Now()}))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEndSession_NoDumpPath(t *testing.T) {
	b := newBackend(t, config.SQLiteConfig{})
	require.NoError(t, b.StartSession(&core.Session{Scenario: "nodump", StartTime: time.Now()}))
	require.NoError(t, b.EndSession())
	assert.Empty(t, b.ExportedFilePath())
}
