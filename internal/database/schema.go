package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
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

	// CurrentRunId is the run token: while Status is processing it names the
	// only run allowed to write results and transition the report.
	CurrentRunId uuid.NullUUID `gorm:"type:uuid"`

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt sql.NullTime

	Companies []Company        `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
	Files     []UploadedFile   `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
	Results   []AnalysisResult `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
	Runs      []AnalysisRun    `gorm:"foreignKey:ReportId;constraint:OnDelete:CASCADE"`
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

type AnalysisRun struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Status     string    `gorm:"size:20;not null"`
	FileCount  int
	Error      string
	StartedAt  time.Time
	FinishedAt sql.NullTime

	Files []AnalysisRunFile `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

// AnalysisRunFile pins a file to the run that accepted it. FileId is not a
// foreign key so a deleted file shows up as missing when the run executes.
type AnalysisRunFile struct {
	RunId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileId uuid.UUID `gorm:"type:uuid;primaryKey"`
}

type AnalysisResult struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportId uuid.UUID `gorm:"type:uuid;not null;index"`
	RunId    uuid.UUID `gorm:"type:uuid;index"`
	// FileId is not a foreign key: results outlive the file they came from.
	FileId       uuid.NullUUID `gorm:"type:uuid"`
	AnalysisType string        `gorm:"size:20;not null"`
	Payload      datatypes.JSON
	CreatedAt    time.Time
}
