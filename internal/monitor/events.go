package monitor

import "github.com/blackkolly/rollback-controller/internal/models"

// EventSink receives monitor events for live observers. The WebSocket hub
// implements it; NopSink is used when no stream is wired.
type EventSink interface {
	Publish(event models.MonitorEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(models.MonitorEvent) {}
