// Package monitor aggregates probe results into monitoring windows, decides
// when a window breaches its thresholds, and supervises one monitor task per
// service.
package monitor

import (
	"sync"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
)

// Window accumulates probe outcomes for one monitoring invocation. It is
// created when monitoring starts and discarded when the window ends or a
// trigger fires.
type Window struct {
	mu sync.Mutex

	service   string
	startedAt time.Time

	checkCount          int
	errorCount          int
	consecutiveFailures int
}

// NewWindow starts an empty window for the service.
func NewWindow(service string) *Window {
	return &Window{service: service, startedAt: time.Now()}
}

// Record folds one probe result into the window. A failure increments both
// the cumulative error count and the failure streak; any success resets the
// streak to zero while the error count stays cumulative.
func (w *Window) Record(result models.ProbeResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.checkCount++
	if result.Success {
		w.consecutiveFailures = 0
	} else {
		w.errorCount++
		w.consecutiveFailures++
	}
}

// Snapshot returns a non-mutating copy of the window's counters.
func (w *Window) Snapshot() models.WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	rate := 0
	if w.checkCount > 0 {
		rate = w.errorCount * 100 / w.checkCount // integer-truncated
	}
	return models.WindowSnapshot{
		Service:             w.service,
		StartedAt:           w.startedAt,
		CheckCount:          w.checkCount,
		ErrorCount:          w.errorCount,
		ConsecutiveFailures: w.consecutiveFailures,
		ErrorRate:           rate,
	}
}
