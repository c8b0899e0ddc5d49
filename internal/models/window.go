package models

import "time"

// ProbeResult is the outcome of a single health check.
type ProbeResult struct {
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Latency   time.Duration `json:"latency"`
	// Detail carries the failure cause (status code, dial error) for logs.
	Detail string `json:"detail,omitempty"`
}

// WindowSnapshot is a point-in-time copy of one monitoring window's counters.
// It is what the status endpoint and the event stream expose; the live,
// mutex-guarded window lives in the monitor package.
type WindowSnapshot struct {
	Service             string    `json:"service"`
	StartedAt           time.Time `json:"started_at"`
	CheckCount          int       `json:"check_count"`
	ErrorCount          int       `json:"error_count"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	// ErrorRate is error_count*100/check_count, integer-truncated;
	// 0 while no checks have run.
	ErrorRate int `json:"error_rate"`
}
