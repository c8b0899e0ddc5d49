package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/pkg/metrics"
	"github.com/blackkolly/rollback-controller/internal/probe"
	"github.com/blackkolly/rollback-controller/internal/rollback"
)

// Snapshotter captures pre-monitoring state. Satisfied by *rollback.Snapshotter.
type Snapshotter interface {
	Capture(ctx context.Context, target models.ServiceTarget) (*models.DeploymentSnapshot, error)
}

// Prober performs one bounded health check. Satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, target models.ServiceTarget) models.ProbeResult
}

// Supervisor runs one monitor task per service. Tasks are independent: they
// share only the executor's per-service locks and the snapshot store.
type Supervisor struct {
	interval     time.Duration
	autoRollback bool

	prober      Prober
	engine      *Engine
	snapshotter Snapshotter
	executor    *rollback.Executor
	events      EventSink
	logger      *slog.Logger

	mu      sync.Mutex
	windows map[string]*Window
}

// NewSupervisor wires the monitoring loop. interval is the tick period;
// autoRollback=false downgrades triggers to logged manual-intervention
// records.
func NewSupervisor(
	interval time.Duration,
	autoRollback bool,
	prober Prober,
	engine *Engine,
	snapshotter Snapshotter,
	executor *rollback.Executor,
	events EventSink,
	logger *slog.Logger,
) *Supervisor {
	if events == nil {
		events = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		interval:     interval,
		autoRollback: autoRollback,
		prober:       prober,
		engine:       engine,
		snapshotter:  snapshotter,
		executor:     executor,
		events:       events,
		logger:       logger,
		windows:      make(map[string]*Window),
	}
}

// Monitor runs one monitoring window for the target: snapshot, then a
// probe/record/evaluate loop until a trigger is handled, the duration
// elapses, or ctx is cancelled. Within the loop, tick N's decision always
// observes tick N's counters — everything is sequential in this goroutine.
//
// The returned outcome is nil when the window ended without a trigger.
func (s *Supervisor) Monitor(ctx context.Context, target models.ServiceTarget, duration time.Duration) (*models.RollbackOutcome, error) {
	if _, err := s.snapshotter.Capture(ctx, target); err != nil {
		// Monitoring proceeds without a fresh snapshot; strategies that
		// need one will hard-fail at execution with snapshot-missing.
		s.logger.Warn("snapshot capture failed", "service", target.Name, "error", err)
	}

	window := NewWindow(target.Name)
	s.register(target.Name, window)
	defer s.deregister(target.Name)

	s.logger.Info("monitoring started",
		"service", target.Name,
		"strategy", target.Strategy,
		"duration", duration,
		"interval", s.interval,
	)

	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("monitoring cancelled", "service", target.Name)
			return nil, ctx.Err()
		case <-deadline.C:
			snap := window.Snapshot()
			s.logger.Info("monitoring window elapsed without trigger",
				"service", target.Name,
				"checks", snap.CheckCount,
				"errors", snap.ErrorCount,
			)
			return nil, nil
		case <-ticker.C:
			if outcome, done := s.tick(ctx, target, window); done {
				return outcome, nil
			}
		}
	}
}

// tick runs one probe/record/evaluate cycle. done=true ends the window.
func (s *Supervisor) tick(ctx context.Context, target models.ServiceTarget, window *Window) (*models.RollbackOutcome, bool) {
	result := s.prober.Probe(ctx, target)
	window.Record(result)
	snap := window.Snapshot()

	metrics.WindowErrorRate.WithLabelValues(target.Name).Set(float64(snap.ErrorRate))
	metrics.WindowConsecutiveFailures.WithLabelValues(target.Name).Set(float64(snap.ConsecutiveFailures))
	s.events.Publish(models.MonitorEvent{
		Type:      models.EventWindowTick,
		Service:   target.Name,
		Timestamp: time.Now().UTC(),
		Window:    &snap,
	})

	decision := s.engine.Evaluate(snap)
	if decision.Verdict != Trigger {
		return nil, false
	}

	record := NewDecisionRecord(target.Name, decision.Reason)
	metrics.TriggerTotal.WithLabelValues(target.Name).Inc()
	s.logger.Warn("rollback triggered",
		"service", target.Name,
		"reason", decision.Reason,
		"checks", snap.CheckCount,
		"errors", snap.ErrorCount,
		"consecutive_failures", snap.ConsecutiveFailures,
	)
	s.events.Publish(models.MonitorEvent{
		Type:      models.EventTrigger,
		Service:   target.Name,
		Timestamp: record.Timestamp,
		Window:    &snap,
		Decision:  &record,
	})

	if !s.autoRollback {
		outcome := s.executor.RecordManualIntervention(ctx, target, decision.Reason)
		s.events.Publish(models.MonitorEvent{
			Type:      models.EventManualIntervention,
			Service:   target.Name,
			Timestamp: time.Now().UTC(),
			Outcome:   outcome,
		})
		return outcome, true
	}

	outcome := s.executor.Execute(ctx, rollback.Request{
		Target: target,
		Source: models.TriggerMonitor,
		Reason: decision.Reason,
	})
	s.events.Publish(models.MonitorEvent{
		Type:      models.EventRollbackCompleted,
		Service:   target.Name,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
	})
	return outcome, true
}

// MonitorAll fans out one monitor task per target and joins them. A sibling
// task's failure is logged, never propagated: it must not cancel the others.
func (s *Supervisor) MonitorAll(ctx context.Context, targets []models.ServiceTarget, duration time.Duration) {
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(t models.ServiceTarget) {
			defer wg.Done()
			if _, err := s.Monitor(ctx, t, duration); err != nil && ctx.Err() == nil {
				s.logger.Error("monitor task failed", "service", t.Name, "error", err)
			}
		}(target)
	}
	wg.Wait()
}

// WindowSnapshots returns the live windows for the status endpoint.
func (s *Supervisor) WindowSnapshots() []models.WindowSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := make([]models.WindowSnapshot, 0, len(s.windows))
	for _, w := range s.windows {
		snaps = append(snaps, w.Snapshot())
	}
	return snaps
}

func (s *Supervisor) register(service string, w *Window) {
	s.mu.Lock()
	s.windows[service] = w
	s.mu.Unlock()
}

func (s *Supervisor) deregister(service string) {
	s.mu.Lock()
	delete(s.windows, service)
	s.mu.Unlock()
	metrics.WindowErrorRate.DeleteLabelValues(service)
	metrics.WindowConsecutiveFailures.DeleteLabelValues(service)
}

var _ Prober = (*probe.Prober)(nil)
