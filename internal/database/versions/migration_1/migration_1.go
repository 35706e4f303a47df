package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Adds run tracking: the analysis_runs table, the run token on reports, and
// the run/file reference on results.

type Report struct {
	Id           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	CurrentRunId uuid.NullUUID `gorm:"type:uuid"`

	Runs []AnalysisRun `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
}

type AnalysisRun struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Status     string    `gorm:"size:20;not null"`
	FileCount  int
	Error      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

type AnalysisResult struct {
	RunId  uuid.UUID     `gorm:"type:uuid;index"`
	FileId uuid.NullUUID `gorm:"type:uuid"`
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Report{}, "CurrentRunId"); err != nil {
		return fmt.Errorf("error adding CurrentRunId column: %w", err)
	}

	if err := db.AutoMigrate(&Report{}, &AnalysisRun{}); err != nil {
		return fmt.Errorf("error creating analysis_runs table: %w", err)
	}

	if err := db.Migrator().AddColumn(&AnalysisResult{}, "RunId"); err != nil {
		return fmt.Errorf("error adding RunId column: %w", err)
	}
	if err := db.Migrator().AddColumn(&AnalysisResult{}, "FileId"); err != nil {
		return fmt.Errorf("error adding FileId column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&AnalysisRun{}); err != nil {
		return fmt.Errorf("error dropping analysis_runs table: %w", err)
	}
	if err := db.Migrator().DropColumn(&Report{}, "CurrentRunId"); err != nil {
		return fmt.Errorf("error dropping CurrentRunId column: %w", err)
	}
	if err := db.Migrator().DropColumn(&AnalysisResult{}, "RunId"); err != nil {
		return fmt.Errorf("error dropping RunId column: %w", err)
	}
	if err := db.Migrator().DropColumn(&AnalysisResult{}, "FileId"); err != nil {
		return fmt.Errorf("error dropping FileId column: %w", err)
	}
	return nil
}
