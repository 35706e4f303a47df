package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"report-backend/internal/core/types"
	"report-backend/internal/core/utils"
	"report-backend/internal/database"
	"report-backend/internal/messaging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const finishTimeout = 30 * time.Second

// errRunInterrupted marks a run abandoned because the processor is stopping.
// The report stays in processing so the run can be resumed.
var errRunInterrupted = errors.New("analysis run interrupted by shutdown")

type ProcessorOptions struct {
	// Workers is the number of runs executed concurrently.
	Workers int
	// FileConcurrency bounds the per-file analyses of one run. 1 analyzes
	// files sequentially.
	FileConcurrency int
	// RunTimeout fails runs that take longer. Zero disables it.
	RunTimeout time.Duration
}

type TaskProcessor struct {
	db        *gorm.DB
	engine    AnalysisEngine
	publisher messaging.Publisher
	reciever  messaging.Reciever
	metrics   *Metrics
	opts      ProcessorOptions

	handles *utils.RunHandles

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTaskProcessor(db *gorm.DB, engine AnalysisEngine, publisher messaging.Publisher, reciever messaging.Reciever, metrics *Metrics, opts ProcessorOptions) *TaskProcessor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FileConcurrency < 1 {
		opts.FileConcurrency = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskProcessor{
		db:        db,
		engine:    engine,
		publisher: publisher,
		reciever:  reciever,
		metrics:   metrics,
		opts:      opts,
		handles:   utils.NewRunHandles(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start consumes tasks until Stop is called or the task channel is closed.
// It blocks until every worker has returned.
func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor", "workers", proc.opts.Workers, "file_concurrency", proc.opts.FileConcurrency)

	proc.wg.Add(proc.opts.Workers)
	for i := 0; i < proc.opts.Workers; i++ {
		go func() {
			defer proc.wg.Done()
			for {
				select {
				case <-proc.ctx.Done():
					return
				case task, ok := <-proc.reciever.Tasks():
					if !ok {
						return
					}
					proc.ProcessTask(task)
				}
			}
		}()
	}

	proc.wg.Wait()
}

// Stop cancels in-flight runs, which stay in processing, and waits for the
// workers to exit.
func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.cancel()
	proc.reciever.Close()
	proc.wg.Wait()
}

// CancelRun aborts the run executing for the report in this process. The
// report ends up failed. Returns false if no run is executing here.
func (proc *TaskProcessor) CancelRun(reportId uuid.UUID) bool {
	return proc.handles.Cancel(reportId)
}

// RecoverRuns re-queues runs left in processing by a previous process.
func (proc *TaskProcessor) RecoverRuns(ctx context.Context) (int, error) {
	reports, err := database.ListProcessingReports(ctx, proc.db)
	if err != nil {
		return 0, err
	}

	for _, report := range reports {
		payload := messaging.AnalysisTaskPayload{ReportId: report.Id, RunId: report.CurrentRunId.UUID}
		if err := proc.publisher.PublishAnalysisTask(ctx, payload); err != nil {
			return 0, fmt.Errorf("error re-queueing run %s for report %s: %w", payload.RunId, report.Id, err)
		}
		slog.Info("re-queued interrupted analysis run", "report_id", report.Id, "run_id", payload.RunId)
	}

	return len(reports), nil
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	var err error
	switch task.Type() {
	case messaging.AnalysisQueue:
		var payload messaging.AnalysisTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling analysis task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processAnalysisTask(payload)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	switch {
	case errors.Is(err, errRunInterrupted):
		if err := task.Requeue(); err != nil {
			slog.Error("error requeueing interrupted task", "error", err)
		}
	case err != nil:
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	default:
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processAnalysisTask(payload messaging.AnalysisTaskPayload) error {
	reportId, runId := payload.ReportId, payload.RunId

	report, err := database.GetReportWithCompanies(proc.ctx, proc.db, reportId)
	if errors.Is(err, types.ErrNotFound) {
		slog.Info("report deleted, skipping analysis task", "report_id", reportId, "run_id", runId)
		return nil
	}
	if err != nil {
		if proc.ctx.Err() != nil {
			return errRunInterrupted
		}
		return err
	}

	if report.Status != string(types.ReportProcessing) || !report.CurrentRunId.Valid || report.CurrentRunId.UUID != runId {
		slog.Info("stale analysis task, skipping", "report_id", reportId, "run_id", runId, "status", report.Status)
		return nil
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if proc.opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(proc.ctx, proc.opts.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(proc.ctx)
	}
	defer cancel()

	if !proc.handles.Register(reportId, runId, cancel) {
		slog.Info("analysis run already executing, skipping duplicate task", "report_id", reportId, "run_id", runId)
		return nil
	}
	defer proc.handles.Release(reportId, runId)

	proc.metrics.activeRuns.Inc()
	defer proc.metrics.activeRuns.Dec()
	start := time.Now()

	slog.Info("starting analysis run", "report_id", reportId, "run_id", runId)
	runErr := proc.executeRun(runCtx, report, runId)

	switch {
	case runErr == nil:
		proc.metrics.runsFinished.WithLabelValues(types.RunCompleted).Inc()
		proc.metrics.runDuration.Observe(time.Since(start).Seconds())
		slog.Info("analysis run completed", "report_id", reportId, "run_id", runId, "duration", time.Since(start))
		return nil

	case proc.ctx.Err() != nil:
		slog.Warn("analysis run interrupted, report left processing", "report_id", reportId, "run_id", runId)
		return errRunInterrupted

	case errors.Is(runErr, types.ErrConflict):
		slog.Info("analysis run lost its run token, dropping", "report_id", reportId, "run_id", runId, "error", runErr)
		return nil
	}

	if errors.Is(runErr, context.DeadlineExceeded) {
		runErr = fmt.Errorf("analysis run timed out after %s: %w", proc.opts.RunTimeout, runErr)
	} else if errors.Is(runErr, context.Canceled) {
		runErr = fmt.Errorf("analysis run cancelled: %w", runErr)
	}

	slog.Error("analysis run failed", "report_id", reportId, "run_id", runId, "error", runErr)
	proc.metrics.runsFinished.WithLabelValues(types.RunFailed).Inc()
	proc.metrics.runDuration.Observe(time.Since(start).Seconds())

	ctx, cancelFinish := context.WithTimeout(context.Background(), finishTimeout)
	defer cancelFinish()
	if err := database.FailAnalysisRun(ctx, proc.db, reportId, runId, runErr); err != nil && !errors.Is(err, types.ErrConflict) {
		return fmt.Errorf("error recording failed run: %w", err)
	}
	return nil
}

// executeRun analyzes every file pinned to the run that has no result yet,
// waits for all of them, then aggregates and completes the run.
func (proc *TaskProcessor) executeRun(ctx context.Context, report database.Report, runId uuid.UUID) error {
	run, err := database.GetRun(ctx, proc.db, runId)
	if err != nil {
		return err
	}

	files, err := database.ListRunFiles(ctx, proc.db, runId)
	if err != nil {
		return err
	}
	if len(files) != run.FileCount {
		return types.PreconditionErrorf("%d of %d files in run %s were deleted before analysis", run.FileCount-len(files), run.FileCount, runId)
	}

	done, err := database.CompletedFiles(ctx, proc.db, runId)
	if err != nil {
		return err
	}

	reportCtx := newReportContext(report, runId, files)

	var fileErrsMu sync.Mutex
	var fileErrs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(proc.opts.FileConcurrency)

	for _, file := range files {
		if done[file.Id] {
			slog.Debug("file already analyzed in this run", "report_id", report.Id, "file_id", file.Id)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			err := proc.analyzeFile(gctx, reportCtx, runId, file)
			if err != nil && errors.Is(err, types.ErrEngine) && gctx.Err() == nil {
				// Engine failures are recorded and fail the run once every file
				// has been attempted.
				fileErrsMu.Lock()
				fileErrs = append(fileErrs, err)
				fileErrsMu.Unlock()
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if len(fileErrs) > 0 {
		return errors.Join(fileErrs...)
	}

	results, err := database.ListRunResults(ctx, proc.db, runId)
	if err != nil {
		return err
	}

	summary, content, err := proc.engine.Aggregate(ctx, reportCtx, newResultInputs(results))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.EngineError("aggregate results", err)
	}

	return database.CompleteAnalysisRun(ctx, proc.db, report.Id, runId, content, summary)
}

func (proc *TaskProcessor) analyzeFile(ctx context.Context, report ReportContext, runId uuid.UUID, file database.UploadedFile) error {
	analysisType, err := types.ParseAnalysisType(file.AnalysisType)
	if err != nil {
		proc.metrics.filesAnalyzed.WithLabelValues("unknown", "rejected").Inc()
		return fmt.Errorf("file %s: %w", file.OriginalName, err)
	}

	payload, err := proc.engine.Analyze(ctx, analysisType, newFileInput(file), report)
	if err != nil {
		proc.metrics.filesAnalyzed.WithLabelValues(string(analysisType), "failed").Inc()
		switch {
		case errors.Is(err, types.ErrUnknownAnalysisType):
			return fmt.Errorf("file %s: %w", file.OriginalName, err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return types.EngineError(fmt.Sprintf("analyze file %s", file.OriginalName), err)
		}
	}

	result := database.AnalysisResult{
		ReportId:     report.ReportId,
		RunId:        runId,
		FileId:       uuid.NullUUID{UUID: file.Id, Valid: true},
		AnalysisType: string(analysisType),
		Payload:      datatypes.JSON(payload),
	}
	if err := database.SaveAnalysisResult(ctx, proc.db, &result); err != nil {
		return err
	}

	proc.metrics.filesAnalyzed.WithLabelValues(string(analysisType), "succeeded").Inc()
	slog.Info("file analyzed", "report_id", report.ReportId, "run_id", runId, "file_id", file.Id, "analysis_type", analysisType)
	return nil
}
