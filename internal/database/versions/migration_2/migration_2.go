package migration_2

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Adds analysis_run_files, the set of files a run accepted when it started.

type AnalysisRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Files []AnalysisRunFile `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type AnalysisRunFile struct {
	RunId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileId uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&AnalysisRun{}, &AnalysisRunFile{}); err != nil {
		return fmt.Errorf("error creating analysis_run_files table: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&AnalysisRunFile{}); err != nil {
		return fmt.Errorf("error dropping analysis_run_files table: %w", err)
	}
	return nil
}
