package versions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Report struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null"`
	UsagePlan string
	StartDate string `gorm:"size:10;not null"`
	EndDate   string `gorm:"size:10;not null"`
	MinAge    int    `gorm:"not null"`
	MaxAge    int    `gorm:"not null"`
	Notes     string

	Status  string `gorm:"size:20;not null;index"`
	Content datatypes.JSON
	Summary datatypes.JSON

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt sql.NullTime

	Companies []Company        `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
	Files     []UploadedFile   `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
	Results   []AnalysisResult `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
}

type Company struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	Url       string
	Role      string `gorm:"size:10;not null"`
	CreatedAt time.Time
}

type UploadedFile struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId     uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName     string    `gorm:"not null"`
	OriginalName string    `gorm:"not null"`
	StoragePath  string    `gorm:"not null"`
	Size         int64
	FileType     string `gorm:"size:10"`
	AnalysisType string `gorm:"size:20;not null"`
	UploadedAt   time.Time
}

type AnalysisResult struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId     uuid.UUID `gorm:"type:uuid;not null;index"`
	AnalysisType string    `gorm:"size:20;not null"`
	Payload      datatypes.JSON
	CreatedAt    time.Time
}

func Migration0(db *gorm.DB) error {
	err := db.AutoMigrate(&Report{}, &Company{}, &UploadedFile{}, &AnalysisResult{})
	if err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}
