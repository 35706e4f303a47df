package utils

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type runHandle struct {
	runId  uuid.UUID
	cancel context.CancelFunc
}

// RunHandles tracks the cancel func of the run currently executing for each
// report in this process.
type RunHandles struct {
	mu   sync.Mutex
	runs map[uuid.UUID]runHandle
}

func NewRunHandles() *RunHandles {
	return &RunHandles{runs: make(map[uuid.UUID]runHandle)}
}

// Register returns false if a run is already registered for the report.
func (h *RunHandles) Register(reportId, runId uuid.UUID, cancel context.CancelFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.runs[reportId]; ok {
		return false
	}
	h.runs[reportId] = runHandle{runId: runId, cancel: cancel}
	return true
}

// Release removes the handle only if it still belongs to runId.
func (h *RunHandles) Release(reportId, runId uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if handle, ok := h.runs[reportId]; ok && handle.runId == runId {
		delete(h.runs, reportId)
	}
}

func (h *RunHandles) Cancel(reportId uuid.UUID) bool {
	h.mu.Lock()
	handle, ok := h.runs[reportId]
	h.mu.Unlock()

	if ok {
		handle.cancel()
	}
	return ok
}

func (h *RunHandles) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runs)
}
