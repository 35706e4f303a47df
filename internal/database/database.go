package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectRetries = 5
	connectBackoff = 2 * time.Second
)

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// SqliteDSN enables foreign keys on every pooled connection, not only the one
// that ran the migrations.
func SqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func openDialector(url string) (gorm.Dialector, error) {
	if isPostgresURL(url) {
		return postgres.Open(url), nil
	}

	path := strings.TrimPrefix(url, "sqlite://")
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}
	return sqlite.Open(SqliteDSN(path)), nil
}

// NewDatabase opens the store named by url (a postgres URL, or otherwise a
// sqlite path), retrying while the server comes up, and migrates it.
func NewDatabase(url string) (*gorm.DB, error) {
	dialector, err := openDialector(url)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for attempt := 1; ; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err == nil {
			break
		}
		if attempt >= connectRetries {
			return nil, fmt.Errorf("error connecting to database after %d attempts: %w", attempt, err)
		}
		slog.Warn("error connecting to database, retrying", "attempt", attempt, "error", err)
		time.Sleep(connectBackoff)
	}

	if err := configurePool(db); err != nil {
		return nil, err
	}

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return db, nil
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("error getting database handle: %w", err)
	}

	if isSqlite(db) {
		// A single connection serializes writers, so sqlite never reports
		// "database is locked" under concurrent runs.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return fmt.Errorf("error enabling foreign keys: %w", err)
		}
		return nil
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxIdleTime(time.Minute)
	return nil
}
