package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blackkolly/rollback-controller/internal/models"
)

func record(w *Window, success bool, times int) {
	for i := 0; i < times; i++ {
		w.Record(models.ProbeResult{Success: success})
	}
}

func TestWindowErrorRateIsTruncated(t *testing.T) {
	w := NewWindow("web")
	record(w, true, 18)
	record(w, false, 2)

	snap := w.Snapshot()
	assert.Equal(t, 20, snap.CheckCount)
	assert.Equal(t, 2, snap.ErrorCount)
	assert.Equal(t, 10, snap.ErrorRate) // 2*100/20

	// 1 error in 30 checks is 3.33%, truncated to 3.
	w = NewWindow("web")
	record(w, true, 29)
	record(w, false, 1)
	assert.Equal(t, 3, w.Snapshot().ErrorRate)
}

func TestWindowEmptyHasZeroRate(t *testing.T) {
	w := NewWindow("web")
	snap := w.Snapshot()
	assert.Zero(t, snap.CheckCount)
	assert.Zero(t, snap.ErrorRate)
	assert.Zero(t, snap.ConsecutiveFailures)
}

func TestWindowStreakResetsOnSuccess(t *testing.T) {
	w := NewWindow("web")
	record(w, false, 3)
	assert.Equal(t, 3, w.Snapshot().ConsecutiveFailures)

	record(w, true, 1)
	snap := w.Snapshot()
	assert.Zero(t, snap.ConsecutiveFailures, "any success resets the streak")
	assert.Equal(t, 3, snap.ErrorCount, "the cumulative error count does not reset")

	record(w, false, 2)
	assert.Equal(t, 2, w.Snapshot().ConsecutiveFailures)
}

func TestWindowSnapshotDoesNotMutate(t *testing.T) {
	w := NewWindow("web")
	record(w, false, 1)
	first := w.Snapshot()
	second := w.Snapshot()
	assert.Equal(t, first.CheckCount, second.CheckCount)
	assert.Equal(t, first.ErrorCount, second.ErrorCount)
}
