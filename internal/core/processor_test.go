package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"report-backend/internal/core/types"
	"report-backend/internal/database"
	"report-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixtureEngine returns canned payloads. Types missing from supported are
// rejected as unknown, failing types return an engine error and gate, when
// set, holds every analysis until it is closed or the run is cancelled.
type fixtureEngine struct {
	supported map[types.AnalysisType]bool
	failing   map[types.AnalysisType]bool
	gate      chan struct{}
	started   chan uuid.UUID

	mu       sync.Mutex
	analyzed []uuid.UUID
}

func newFixtureEngine() *fixtureEngine {
	supported := make(map[types.AnalysisType]bool)
	for _, t := range types.AnalysisTypes {
		supported[t] = true
	}
	return &fixtureEngine{
		supported: supported,
		failing:   make(map[types.AnalysisType]bool),
		started:   make(chan uuid.UUID, 100),
	}
}

func (e *fixtureEngine) Analyze(ctx context.Context, analysisType types.AnalysisType, file FileInput, report ReportContext) (json.RawMessage, error) {
	if !e.supported[analysisType] {
		return nil, fmt.Errorf("%w: '%s'", types.ErrUnknownAnalysisType, analysisType)
	}

	e.started <- file.Id

	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failing[analysisType] {
		return nil, errors.New("malformed input")
	}
	e.analyzed = append(e.analyzed, file.Id)

	return json.Marshal(map[string]any{"type": analysisType, "file": file.Name, "report": report.Name})
}

func (e *fixtureEngine) Aggregate(ctx context.Context, report ReportContext, results []ResultInput) (json.RawMessage, json.RawMessage, error) {
	summary, _ := json.Marshal(map[string]any{"report_name": report.Name, "total_files": len(results)})
	content, _ := json.Marshal(map[string]any{"period": report.StartDate + " ~ " + report.EndDate, "companies": len(report.Companies)})
	return summary, content, nil
}

func (e *fixtureEngine) analyzedFiles() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.analyzed...)
}

type testEnv struct {
	db           *gorm.DB
	queue        *messaging.InMemoryQueue
	processor    *TaskProcessor
	orchestrator *Orchestrator
	status       *StatusService
}

func createDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase("file::memory:")
	require.NoError(t, err)
	return db
}

func newProcessor(t *testing.T, db *gorm.DB, engine AnalysisEngine, opts ProcessorOptions) (*TaskProcessor, *messaging.InMemoryQueue) {
	queue := messaging.NewInMemoryQueue(10)
	processor := NewTaskProcessor(db, engine, queue, queue, nil, opts)
	go processor.Start()
	t.Cleanup(processor.Stop)
	return processor, queue
}

func setupEnv(t *testing.T, engine AnalysisEngine, opts ProcessorOptions) testEnv {
	db := createDB(t)
	processor, queue := newProcessor(t, db, engine, opts)
	return testEnv{
		db:           db,
		queue:        queue,
		processor:    processor,
		orchestrator: NewOrchestrator(db, queue, processor.metrics),
		status:       NewStatusService(db),
	}
}

func createQ4Report(t *testing.T, db *gorm.DB) uuid.UUID {
	id, err := database.CreateReport(context.Background(), db, database.ReportSpec{
		Name:      "Q4 Report",
		StartDate: "2024-10-01",
		EndDate:   "2024-12-31",
		Companies: []database.CompanySpec{{Name: "Acme", Role: types.TargetCompany}},
	})
	require.NoError(t, err)
	return id
}

func addFile(t *testing.T, db *gorm.DB, reportId uuid.UUID, analysisType types.AnalysisType) database.UploadedFile {
	file := database.UploadedFile{
		ReportId:     reportId,
		FileName:     string(analysisType) + ".csv",
		OriginalName: string(analysisType) + ".csv",
		StoragePath:  reportId.String() + "/" + string(analysisType) + ".csv",
		Size:         1,
		FileType:     "csv",
		AnalysisType: string(analysisType),
	}
	require.NoError(t, database.CreateUploadedFile(context.Background(), db, &file))
	return file
}

func waitForStatus(t *testing.T, db *gorm.DB, reportId uuid.UUID, status types.ReportStatus) database.Report {
	var report database.Report
	require.Eventually(t, func() bool {
		var err error
		report, err = database.GetReport(context.Background(), db, reportId)
		return err == nil && report.Status == string(status)
	}, 5*time.Second, 10*time.Millisecond, "report never reached %s", status)
	return report
}

func waitForStart(t *testing.T, engine *fixtureEngine) uuid.UUID {
	select {
	case id := <-engine.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("engine was never called")
		return uuid.Nil
	}
}

func TestAnalysisCompletesForAllFiles(t *testing.T) {
	engine := newFixtureEngine()
	env := setupEnv(t, engine, ProcessorOptions{Workers: 2, FileConcurrency: 2})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	for _, typ := range types.AnalysisTypes {
		addFile(t, env.db, reportId, typ)
	}

	ack, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	assert.Equal(t, reportId, ack.ReportId)
	assert.Equal(t, len(types.AnalysisTypes), ack.FilesCount)
	assert.NotEqual(t, uuid.Nil, ack.RunId)

	report := waitForStatus(t, env.db, reportId, types.ReportCompleted)
	assert.True(t, report.CompletedAt.Valid)
	assert.Equal(t, ack.RunId, report.CurrentRunId.UUID)

	results, err := env.status.GetResults(ctx, reportId)
	require.NoError(t, err)
	assert.Equal(t, types.ReportCompleted, results.Status)
	assert.Len(t, results.Results, len(types.AnalysisTypes))
	assert.JSONEq(t, `{"report_name":"Q4 Report","total_files":4}`, string(results.Summary))
	assert.JSONEq(t, `{"period":"2024-10-01 ~ 2024-12-31","companies":1}`, string(results.Content))

	seen := map[types.AnalysisType]bool{}
	for _, r := range results.Results {
		seen[r.AnalysisType] = true
		require.NotNil(t, r.FileId)
	}
	assert.Len(t, seen, len(types.AnalysisTypes))

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Run)
	assert.Equal(t, types.RunCompleted, snapshot.Run.Status)
	assert.NotNil(t, snapshot.Run.FinishedAt)
	assert.Empty(t, snapshot.Run.Error)
	assert.Len(t, snapshot.Results, len(types.AnalysisTypes))
}

func TestQ4ReportScenario(t *testing.T) {
	engine := newFixtureEngine()
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.Demographics)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportCompleted)

	results, err := env.status.GetResults(ctx, reportId)
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, types.Demographics, results.Results[0].AnalysisType)
	assert.Equal(t, "Q4 Report", results.Name)

	detail, err := env.status.GetReportDetail(ctx, reportId)
	require.NoError(t, err)
	require.Len(t, detail.TargetCompanies, 1)
	assert.Equal(t, "Acme", detail.TargetCompanies[0].Name)
	assert.Empty(t, detail.CompareCompanies)
	assert.Len(t, detail.Files, 1)
	assert.Len(t, detail.Results, 1)
}

func TestStartAnalysisRequiresFiles(t *testing.T) {
	env := setupEnv(t, newFixtureEngine(), ProcessorOptions{})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	assert.ErrorIs(t, err, types.ErrPrecondition)

	report, err := database.GetReport(ctx, env.db, reportId)
	require.NoError(t, err)
	assert.Equal(t, string(types.ReportPending), report.Status)

	_, err = env.orchestrator.StartAnalysis(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestStartAnalysisWhileRunningConflicts(t *testing.T) {
	engine := newFixtureEngine()
	engine.gate = make(chan struct{})
	env := setupEnv(t, engine, ProcessorOptions{Workers: 2})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.Demographics)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)

	_, err = env.orchestrator.StartAnalysis(ctx, reportId)
	assert.ErrorIs(t, err, types.ErrConflict)

	waitForStart(t, engine)
	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Equal(t, types.ReportProcessing, snapshot.Status)
	require.NotNil(t, snapshot.Run)
	assert.Equal(t, types.RunProcessing, snapshot.Run.Status)

	_, err = env.status.GetResults(ctx, reportId)
	assert.ErrorIs(t, err, types.ErrPrecondition)

	close(engine.gate)
	waitForStatus(t, env.db, reportId, types.ReportCompleted)

	runs, err := database.ListRuns(ctx, env.db, reportId)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = env.orchestrator.StartAnalysis(ctx, reportId)
	assert.ErrorIs(t, err, types.ErrPrecondition)
}

func TestUnknownAnalysisTypeFailsRun(t *testing.T) {
	engine := newFixtureEngine()
	delete(engine.supported, types.CrossVisit)
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.CrossVisit)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	_, err = env.status.GetResults(ctx, reportId)
	assert.ErrorIs(t, err, types.ErrPrecondition)

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Run)
	assert.Equal(t, types.RunFailed, snapshot.Run.Status)
	assert.Contains(t, snapshot.Run.Error, "unknown analysis type")
}

func TestStoredUnknownAnalysisTypeFailsRun(t *testing.T) {
	env := setupEnv(t, newFixtureEngine(), ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	file := addFile(t, env.db, reportId, types.Demographics)
	require.NoError(t, env.db.Model(&database.UploadedFile{}).Where("id = ?", file.Id).Update("analysis_type", "sentiment").Error)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "sentiment")
	assert.Empty(t, snapshot.Results)
}

func TestUnknownAnalysisTypeStopsRemainingFiles(t *testing.T) {
	engine := newFixtureEngine()
	delete(engine.supported, types.CrossVisit)
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1, FileConcurrency: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.CrossVisit)
	addFile(t, env.db, reportId, types.TimeSeries)
	addFile(t, env.db, reportId, types.Demographics)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	assert.Empty(t, engine.analyzedFiles())
	assert.Empty(t, engine.started, "no file after the unknown one may reach the engine")

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "unknown analysis type")
	assert.Empty(t, snapshot.Results)
}

func TestStoredUnknownTypeStopsRemainingFiles(t *testing.T) {
	engine := newFixtureEngine()
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1, FileConcurrency: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	bad := addFile(t, env.db, reportId, types.Demographics)
	require.NoError(t, env.db.Model(&database.UploadedFile{}).Where("id = ?", bad.Id).Update("analysis_type", "sentiment").Error)
	addFile(t, env.db, reportId, types.TimeSeries)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	assert.Empty(t, engine.analyzedFiles())
	assert.Empty(t, engine.started)
}

func TestRunAnalyzesFilesAcceptedAtStart(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue(10)
	engine := newFixtureEngine()
	orchestrator := NewOrchestrator(db, queue, nil)
	ctx := context.Background()

	reportId := createQ4Report(t, db)
	accepted := addFile(t, db, reportId, types.Demographics)

	ack, err := orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	assert.Equal(t, 1, ack.FilesCount)

	// Uploaded while the task is still queued.
	addFile(t, db, reportId, types.TimeSeries)

	processor := NewTaskProcessor(db, engine, queue, queue, nil, ProcessorOptions{Workers: 1})
	go processor.Start()
	t.Cleanup(processor.Stop)

	waitForStatus(t, db, reportId, types.ReportCompleted)
	assert.Equal(t, []uuid.UUID{accepted.Id}, engine.analyzedFiles())

	run, err := database.GetRun(ctx, db, ack.RunId)
	require.NoError(t, err)
	assert.Equal(t, 1, run.FileCount)

	results, err := NewStatusService(db).GetResults(ctx, reportId)
	require.NoError(t, err)
	require.Len(t, results.Results, 1)
	assert.Equal(t, accepted.Id, *results.Results[0].FileId)
	assert.JSONEq(t, `{"type":"demographics","file":"demographics.csv","report":"Q4 Report"}`, string(results.Results[0].Data))
}

func TestRunFailsWhenAcceptedFileIsDeleted(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue(10)
	engine := newFixtureEngine()
	ctx := context.Background()

	reportId := createQ4Report(t, db)
	addFile(t, db, reportId, types.Demographics)
	removed := addFile(t, db, reportId, types.TimeSeries)

	_, err := NewOrchestrator(db, queue, nil).StartAnalysis(ctx, reportId)
	require.NoError(t, err)

	_, err = database.DeleteUploadedFile(ctx, db, reportId, removed.Id)
	require.NoError(t, err)

	processor := NewTaskProcessor(db, engine, queue, queue, nil, ProcessorOptions{Workers: 1})
	go processor.Start()
	t.Cleanup(processor.Stop)

	waitForStatus(t, db, reportId, types.ReportFailed)
	assert.Empty(t, engine.analyzedFiles())

	snapshot, err := NewStatusService(db).GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "1 of 2 files")
}

func TestEngineErrorStillAttemptsEveryFile(t *testing.T) {
	engine := newFixtureEngine()
	engine.failing[types.Demographics] = true
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.Demographics)
	timeSeries := addFile(t, env.db, reportId, types.TimeSeries)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "malformed input")

	// The successful file keeps its result.
	require.Len(t, snapshot.Results, 1)
	assert.Equal(t, timeSeries.Id, *snapshot.Results[0].FileId)

	// A fresh run after fixing the input completes with only its own results.
	engine.mu.Lock()
	engine.failing = map[types.AnalysisType]bool{}
	engine.mu.Unlock()

	ack, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportCompleted)

	results, err := env.status.GetResults(ctx, reportId)
	require.NoError(t, err)
	assert.Len(t, results.Results, 2)

	all, err := database.ListReportResults(ctx, env.db, reportId)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	current, err := database.ListRunResults(ctx, env.db, ack.RunId)
	require.NoError(t, err)
	assert.Len(t, current, 2)
}

func TestCancelRunFailsReport(t *testing.T) {
	engine := newFixtureEngine()
	engine.gate = make(chan struct{})
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.VisitedSites)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStart(t, engine)

	assert.True(t, env.processor.CancelRun(reportId))
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "cancelled")

	assert.False(t, env.processor.CancelRun(reportId))
}

func TestRunTimeoutFailsReport(t *testing.T) {
	engine := newFixtureEngine()
	engine.gate = make(chan struct{})
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1, RunTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	addFile(t, env.db, reportId, types.Demographics)

	_, err := env.orchestrator.StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStatus(t, env.db, reportId, types.ReportFailed)

	snapshot, err := env.status.GetStatus(ctx, reportId)
	require.NoError(t, err)
	assert.Contains(t, snapshot.Run.Error, "timed out")
}

func TestShutdownLeavesRunForRecovery(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	blocked := newFixtureEngine()
	blocked.gate = make(chan struct{})
	first, queue := newProcessor(t, db, blocked, ProcessorOptions{Workers: 1})

	reportId := createQ4Report(t, db)
	addFile(t, db, reportId, types.Demographics)

	ack, err := NewOrchestrator(db, queue, nil).StartAnalysis(ctx, reportId)
	require.NoError(t, err)
	waitForStart(t, blocked)

	first.Stop()

	report, err := database.GetReport(ctx, db, reportId)
	require.NoError(t, err)
	assert.Equal(t, string(types.ReportProcessing), report.Status)
	assert.Equal(t, ack.RunId, report.CurrentRunId.UUID)

	second, _ := newProcessor(t, db, newFixtureEngine(), ProcessorOptions{Workers: 1})
	recovered, err := second.RecoverRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	report = waitForStatus(t, db, reportId, types.ReportCompleted)
	assert.Equal(t, ack.RunId, report.CurrentRunId.UUID)
}

func TestRedeliveredRunSkipsAnalyzedFiles(t *testing.T) {
	engine := newFixtureEngine()
	env := setupEnv(t, engine, ProcessorOptions{Workers: 1})
	ctx := context.Background()

	reportId := createQ4Report(t, env.db)
	done := addFile(t, env.db, reportId, types.Demographics)
	pending := addFile(t, env.db, reportId, types.TimeSeries)

	run, err := database.BeginAnalysisRun(ctx, env.db, reportId)
	require.NoError(t, err)
	require.NoError(t, database.SaveAnalysisResult(ctx, env.db, &database.AnalysisResult{
		ReportId:     reportId,
		RunId:        run.Id,
		FileId:       uuid.NullUUID{UUID: done.Id, Valid: true},
		AnalysisType: string(types.Demographics),
		Payload:      []byte(`{"type":"demographics"}`),
	}))

	require.NoError(t, env.queue.PublishAnalysisTask(ctx, messaging.AnalysisTaskPayload{ReportId: reportId, RunId: run.Id}))
	waitForStatus(t, env.db, reportId, types.ReportCompleted)

	assert.Equal(t, []uuid.UUID{pending.Id}, engine.analyzedFiles())

	results, err := env.status.GetResults(ctx, reportId)
	require.NoError(t, err)
	assert.Len(t, results.Results, 2)
}

func TestStaleTaskIsDropped(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue(1)
	engine := newFixtureEngine()
	processor := NewTaskProcessor(db, engine, queue, queue, nil, ProcessorOptions{})
	t.Cleanup(processor.Stop)
	ctx := context.Background()

	reportId := createQ4Report(t, db)
	addFile(t, db, reportId, types.Demographics)

	// Pending report: no run owns it.
	require.NoError(t, processor.processAnalysisTask(messaging.AnalysisTaskPayload{ReportId: reportId, RunId: uuid.New()}))

	// Processing report owned by a different run.
	_, err := database.BeginAnalysisRun(ctx, db, reportId)
	require.NoError(t, err)
	require.NoError(t, processor.processAnalysisTask(messaging.AnalysisTaskPayload{ReportId: reportId, RunId: uuid.New()}))

	// Deleted report.
	require.NoError(t, processor.processAnalysisTask(messaging.AnalysisTaskPayload{ReportId: uuid.New(), RunId: uuid.New()}))

	assert.Empty(t, engine.analyzedFiles())
	report, err := database.GetReport(ctx, db, reportId)
	require.NoError(t, err)
	assert.Equal(t, string(types.ReportProcessing), report.Status)
}

type failingPublisher struct{}

func (failingPublisher) PublishAnalysisTask(context.Context, messaging.AnalysisTaskPayload) error {
	return errors.New("broker unavailable")
}

func (failingPublisher) Close() {}

func TestPublishFailureFailsRun(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	reportId := createQ4Report(t, db)
	addFile(t, db, reportId, types.Demographics)

	_, err := NewOrchestrator(db, failingPublisher{}, nil).StartAnalysis(ctx, reportId)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")

	report, err := database.GetReport(ctx, db, reportId)
	require.NoError(t, err)
	assert.Equal(t, string(types.ReportFailed), report.Status)

	runs, err := database.ListRuns(ctx, db, reportId)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, strings.Contains(runs[0].Error, "broker unavailable"))
}

func TestConcurrentReportsRunIndependently(t *testing.T) {
	engine := newFixtureEngine()
	env := setupEnv(t, engine, ProcessorOptions{Workers: 3})
	ctx := context.Background()

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = createQ4Report(t, env.db)
		addFile(t, env.db, ids[i], types.Demographics)
		addFile(t, env.db, ids[i], types.CrossVisit)
	}
	for _, id := range ids {
		_, err := env.orchestrator.StartAnalysis(ctx, id)
		require.NoError(t, err)
	}
	for _, id := range ids {
		waitForStatus(t, env.db, id, types.ReportCompleted)
	}
	assert.Len(t, engine.analyzedFiles(), 10)
}
