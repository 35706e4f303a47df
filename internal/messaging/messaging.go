package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AnalysisQueue   = "report_analysis_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	// Nack drops a task that failed and should not be retried.
	Nack() error

	Reject() error

	// Requeue hands the task back so another worker can resume it.
	Requeue() error
}

// AnalysisTaskPayload identifies one analysis run. The run id must still hold
// the report's run token when the task is processed, otherwise the task is
// stale and is dropped.
type AnalysisTaskPayload struct {
	ReportId uuid.UUID
	RunId    uuid.UUID
}

type Publisher interface {
	PublishAnalysisTask(ctx context.Context, payload AnalysisTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
