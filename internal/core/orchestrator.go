package core

import (
	"context"
	"fmt"
	"log/slog"

	"report-backend/internal/database"
	"report-backend/internal/messaging"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnalysisAck struct {
	ReportId   uuid.UUID
	RunId      uuid.UUID
	FilesCount int
}

// Orchestrator accepts analysis requests. The run itself is executed by a
// TaskProcessor consuming the published task.
type Orchestrator struct {
	db        *gorm.DB
	publisher messaging.Publisher
	metrics   *Metrics
}

func NewOrchestrator(db *gorm.DB, publisher messaging.Publisher, metrics *Metrics) *Orchestrator {
	return &Orchestrator{db: db, publisher: publisher, metrics: metrics}
}

// StartAnalysis moves the report into processing and queues the run. It
// returns as soon as the run is queued.
func (o *Orchestrator) StartAnalysis(ctx context.Context, reportId uuid.UUID) (AnalysisAck, error) {
	run, err := database.BeginAnalysisRun(ctx, o.db, reportId)
	if err != nil {
		return AnalysisAck{}, err
	}

	if err := o.publisher.PublishAnalysisTask(ctx, messaging.AnalysisTaskPayload{ReportId: reportId, RunId: run.Id}); err != nil {
		slog.Error("error queueing analysis run", "report_id", reportId, "run_id", run.Id, "error", err)
		cause := fmt.Errorf("error queueing analysis run: %w", err)
		if err := database.FailAnalysisRun(context.WithoutCancel(ctx), o.db, reportId, run.Id, cause); err != nil {
			slog.Error("error marking unqueued run failed", "report_id", reportId, "run_id", run.Id, "error", err)
		}
		return AnalysisAck{}, cause
	}

	if o.metrics != nil {
		o.metrics.runsStarted.Inc()
	}
	slog.Info("analysis run queued", "report_id", reportId, "run_id", run.Id, "files", run.FileCount)

	return AnalysisAck{ReportId: reportId, RunId: run.Id, FilesCount: run.FileCount}, nil
}
