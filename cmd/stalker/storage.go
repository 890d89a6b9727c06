package main

import (
	"fmt"

	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/database"
	"github.com/dontlook/stalker/internal/storage"

	"gorm.io/gorm"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := storage.NewBackend(storageCfg, storage.Options{
		Logger: Logger,
		DBLog:  DBLog,
		DB:     config.GetDBConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	return backend, nil
}

// backendDB returns the database behind a GORM backed storage, nil for the
// others. It is only valid after Init.
func backendDB(b storage.Backend) *gorm.DB {
	if d, ok := b.(interface{ DB() *gorm.DB }); ok {
		return d.DB()
	}
	return nil
}

// openDB opens a recorded database: the Postgres server from config when
// sqlitePath is empty, the SQLite file otherwise.
func openDB(sqlitePath string) (*gorm.DB, error) {
	if sqlitePath == "" {
		db, err := database.OpenPostgres(config.GetDBConfig(), DBLog)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil
	}
	db, err := database.OpenSQLite(sqlitePath, DBLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", sqlitePath, err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}
