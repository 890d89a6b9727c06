package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dontlook/stalker/internal/api"
	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/database"
	"github.com/dontlook/stalker/internal/model/convert"
	v1 "github.com/dontlook/stalker/internal/storage/memory/export/v1"
	"github.com/dontlook/stalker/pkg/core"

	"gorm.io/gorm"
)

func exportCommand(args []string) error {
	fs := newFlagSet("export")
	fs.String("db", "", "SQLite file to read (default: the Postgres server from config)")
	fs.UintSlice("session", nil, "session ids to export (default: the most recent)")
	fs.String("out", "", "output directory (default storage.memory.outputDir)")
	fs.Bool("compress", true, "gzip the output")
	fs.Bool("upload", false, "upload each export to the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := loadConfig(fs, map[string]string{"upload": "api.upload"}); err != nil {
		return err
	}
	setupLogging(nil)

	dbPath, _ := fs.GetString("db")
	ids, _ := fs.GetUintSlice("session")
	outDir, _ := fs.GetString("out")
	compress, _ := fs.GetBool("compress")
	if outDir == "" {
		outDir = config.GetStorageConfig().Memory.OutputDir
	}
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("cannot read database: %w", err)
		}
	}

	db, err := openDB(dbPath)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if len(ids) == 0 {
		ids = []uint{0}
	}
	for _, id := range ids {
		path, err := exportSession(db, id, outDir, compress)
		if err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

// uploadExport sends an export to the viewer when uploads are enabled.
// Failures are logged: the local file is already written.
func uploadExport(ctx context.Context, path string, s core.Session, simTime float64) {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Upload || path == "" {
		return
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Warn("Viewer is offline, skipping upload", "url", apiCfg.ServerURL, "error", err)
		return
	}
	if err := client.Upload(ctx, path, api.SessionMetadata(s, simTime, apiCfg.Tag)); err != nil {
		Logger.Error("Failed to upload session", "path", path, "error", err)
		return
	}
	Logger.Info("Uploaded session", "path", path, "url", apiCfg.ServerURL)
}

// lastSimTime is the simulated length of a recorded session.
func lastSimTime(ticks []core.TickRecord) float64 {
	var t float64
	for _, r := range ticks {
		t = max(t, r.SimTime)
	}
	return t
}

// exportSession writes one recorded session to outDir. id 0 exports the
// most recent session.
func exportSession(db *gorm.DB, id uint, outDir string, compress bool) (string, error) {
	txStart := time.Now()
	data, err := database.LoadSession(db, id)
	if err != nil {
		return "", err
	}
	sd := sessionExportData(data)
	Logger.Debug("Loaded session", "session", data.Session.ID, "ticks", len(data.TickSamples), "duration", time.Since(txStart))

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(outDir, v1.FileName(sd.Session, compress))
	if err := v1.Write(path, v1.Build(sd), compress); err != nil {
		return "", err
	}
	Logger.Info("Exported session", "session", data.Session.ID, "path", path, "duration", time.Since(txStart))

	var ticks []core.TickRecord
	for _, rec := range sd.Pursuers {
		ticks = append(ticks, rec.Ticks...)
	}
	uploadExport(context.Background(), path, *sd.Session, lastSimTime(ticks))
	return path, nil
}

// sessionExportData converts the database rows of a session to export input.
func sessionExportData(data database.SessionData) *v1.SessionData {
	s := convert.SessionToCore(data.Session)

	pursuers := make([]core.Pursuer, len(data.Pursuers))
	for i, p := range data.Pursuers {
		pursuers[i] = convert.PursuerToCore(p)
	}
	ticks := make([]core.TickRecord, len(data.TickSamples))
	for i, t := range data.TickSamples {
		ticks[i] = convert.TickSampleToCore(t)
	}
	transitions := make([]core.Transition, len(data.Transitions))
	for i, t := range data.Transitions {
		transitions[i] = convert.TransitionToCore(t)
	}
	return v1.NewSessionData(&s, pursuers, ticks, transitions)
}

func migrateCommand(args []string) error {
	fs := newFlagSet("migrate")
	fs.String("backups", "", "directory holding SQLite dumps (default: the dump path directory)")
	fs.String("db", "", "SQLite file to migrate into instead of Postgres")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := loadConfig(fs, map[string]string{}); err != nil {
		return err
	}
	setupLogging(nil)

	dir, _ := fs.GetString("backups")
	if dir == "" {
		dir = defaultBackupDir()
	}
	target, _ := fs.GetString("db")
	if target != "" && strings.HasPrefix(filepath.Clean(target), filepath.Clean(dir)+string(filepath.Separator)) && strings.HasSuffix(target, ".db") {
		return fmt.Errorf("target %s is inside the backup directory and would migrate into itself", target)
	}

	dst, err := openDB(target)
	if err != nil {
		return err
	}
	defer closeDB(dst)
	if err := database.Migrate(dst, DBLog); err != nil {
		return err
	}

	migrated, err := database.MigrateBackups(dir, dst, DBLog)
	if err != nil {
		return err
	}
	Logger.Info("Finished migrating backups", "count", len(migrated), "dir", dir)
	for _, p := range migrated {
		fmt.Println(p)
	}
	return nil
}
