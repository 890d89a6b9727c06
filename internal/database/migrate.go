package database

import (
	"fmt"
	"os"

	"github.com/dontlook/stalker/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MigratedSuffix is appended to backup files once they are copied.
const MigratedSuffix = ".migrated"

// SessionIDs lists the recorded session ids, oldest first.
func SessionIDs(db *gorm.DB) ([]uint, error) {
	var ids []uint
	if err := db.Model(&model.Session{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// CopySession copies a session and its records from src into dst in one
// transaction. Row ids are reassigned by dst; the new session id is returned.
func CopySession(src, dst *gorm.DB, id uint) (uint, error) {
	data, err := LoadSession(src, id)
	if err != nil {
		return 0, err
	}

	s := data.Session
	s.ID = 0
	err = dst.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&s).Error; err != nil {
			return fmt.Errorf("error copying session: %w", err)
		}
		for i := range data.Pursuers {
			data.Pursuers[i].ID = 0
			data.Pursuers[i].SessionID = s.ID
		}
		for i := range data.TickSamples {
			data.TickSamples[i].ID = 0
			data.TickSamples[i].SessionID = s.ID
		}
		for i := range data.Transitions {
			data.Transitions[i].ID = 0
			data.Transitions[i].SessionID = s.ID
		}
		if len(data.Pursuers) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(data.Pursuers, 500).Error; err != nil {
				return fmt.Errorf("error copying pursuers: %w", err)
			}
		}
		if len(data.TickSamples) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(data.TickSamples, 500).Error; err != nil {
				return fmt.Errorf("error copying tick samples: %w", err)
			}
		}
		if len(data.Transitions) > 0 {
			if err := tx.Omit(clause.Associations).CreateInBatches(data.Transitions, 500).Error; err != nil {
				return fmt.Errorf("error copying transitions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}

// MigrateBackups copies every session of every SQLite backup in dir into
// dst and renames each fully copied file with MigratedSuffix. It returns the
// paths that were migrated.
func MigrateBackups(dir string, dst *gorm.DB, log zerolog.Logger) ([]string, error) {
	paths, err := BackupDBPaths(dir)
	if err != nil {
		return nil, fmt.Errorf("error getting backup database paths: %w", err)
	}

	var migrated []string
	for _, path := range paths {
		if err := migrateBackup(path, dst, log); err != nil {
			return migrated, fmt.Errorf("error migrating %s: %w", path, err)
		}
		if err := os.Rename(path, path+MigratedSuffix); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error renaming sqlite file")
			continue
		}
		migrated = append(migrated, path)
	}

	log.Info().Int("count", len(migrated)).Strs("paths", migrated).
		Msg("Migrated backups, delete them to avoid future duplication")
	return migrated, nil
}

func migrateBackup(path string, dst *gorm.DB, log zerolog.Logger) error {
	src, err := OpenSQLite(path, log)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := src.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	ids, err := SessionIDs(src)
	if err != nil {
		return err
	}
	for _, id := range ids {
		newID, err := CopySession(src, dst, id)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Uint("from", id).Uint("to", newID).Msg("Copied session")
	}
	return nil
}
