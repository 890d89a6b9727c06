// Package postgres implements the storage.Backend interface on PostgreSQL by
// embedding the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/database"
	gormstorage "github.com/dontlook/stalker/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Connector opens the database. Replaced in tests.
type Connector func(cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error)

// Backend connects to Postgres on Init and delegates everything else to the
// embedded GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg     config.DBConfig
	log     *slog.Logger
	dbLog   zerolog.Logger
	connect Connector
}

// New creates a new Postgres storage backend. Nothing is dialed until Init.
func New(cfg config.DBConfig, logger *slog.Logger, dbLog zerolog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:     cfg,
		log:     logger,
		dbLog:   dbLog,
		connect: database.OpenPostgres,
	}
}

// Init connects, enables PostGIS when available, migrates and starts the writer.
func (b *Backend) Init() error {
	db, err := b.connect(b.cfg, b.dbLog)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error; err != nil {
			// geometry columns fall back to WKB blobs
			b.log.Warn("PostGIS extension unavailable", "error", err)
		} else {
			b.log.Info("PostGIS extension created")
		}
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: b.log,
		DBLog:  b.dbLog,
	})
	return b.Backend.Init()
}

// Close stops the writer. Safe before Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
