package storage

import (
	"fmt"
	"log/slog"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/storage/memory"
	"github.com/dontlook/stalker/internal/storage/postgres"
	sqlitestorage "github.com/dontlook/stalker/internal/storage/sqlite"
	"github.com/dontlook/stalker/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// Options carries what the database backed implementations need besides
// their own config section.
type Options struct {
	Logger *slog.Logger
	DBLog  zerolog.Logger
	DB     config.DBConfig
}

// NewBackend creates a storage backend based on configuration. The backend
// still needs Init.
func NewBackend(cfg config.StorageConfig, opts Options) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(opts.DB, opts.Logger, opts.DBLog), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, opts.Logger, opts.DBLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite backend: %w", err)
		}
		return b, nil
	case "websocket":
		return websocket.New(cfg.Websocket, opts.Logger), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
