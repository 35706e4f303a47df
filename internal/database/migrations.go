package database

import (
	"log/slog"
	"report-backend/internal/database/versions"
	"report-backend/internal/database/versions/migration_1"
	"report-backend/internal/database/versions/migration_2"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: versions.Migration0,
		},
		{
			ID:       "1",
			Migrate:  migration_1.Migration,
			Rollback: migration_1.Rollback,
		},
		{
			ID:       "2",
			Migrate:  migration_2.Migration,
			Rollback: migration_2.Rollback,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Runs only against an empty database, creating the latest schema in one
		// step instead of replaying every migration.
		slog.Info("clean database detected, running full schema initialization")

		if isSqlite(txn) {
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling foreign keys for SQLite", "error", err)
			}
		}

		return txn.AutoMigrate(&Report{}, &Company{}, &UploadedFile{}, &AnalysisRun{}, &AnalysisRunFile{}, &AnalysisResult{})
	})

	return migrator
}

func isSqlite(db *gorm.DB) bool {
	name := db.Dialector.Name()
	return name == "sqlite" || name == "sqlite3"
}
