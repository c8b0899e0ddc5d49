// Package probe performs bounded health checks against monitored services.
// A probe is a pure observation: its only side effect is the network call,
// and failures are results fed to the aggregator, never errors.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/blackkolly/rollback-controller/internal/models"
	"github.com/blackkolly/rollback-controller/internal/orchestrator"
	"github.com/blackkolly/rollback-controller/internal/pkg/metrics"
)

// Prober checks one service's health endpoint per call.
type Prober struct {
	orch    orchestrator.Client
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a prober. timeout bounds every check, HTTP or gRPC.
func New(orch orchestrator.Client, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		orch: orch,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Probe checks the target once. Any network error, timeout, or non-2xx
// status is a failure; there is no partial credit. The address is resolved
// fresh on every call unless the target pins a static one.
func (p *Prober) Probe(ctx context.Context, target models.ServiceTarget) models.ProbeResult {
	start := time.Now()

	addr := target.Address
	if addr == "" {
		resolved, err := p.orch.ResolveAddress(ctx, target.Name)
		if err != nil {
			return p.finish(target, start, false, fmt.Sprintf("resolve: %v", err))
		}
		addr = resolved
	}

	if target.Scheme == models.ProbeGRPC {
		return p.probeGRPC(ctx, target, addr, start)
	}
	return p.probeHTTP(ctx, target, addr, start)
}

func (p *Prober) probeHTTP(ctx context.Context, target models.ServiceTarget, addr string, start time.Time) models.ProbeResult {
	url := "http://" + addr + target.HealthPath

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return p.finish(target, start, false, err.Error())
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return p.finish(target, start, false, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.finish(target, start, false, fmt.Sprintf("status %d", resp.StatusCode))
	}
	return p.finish(target, start, true, "")
}

func (p *Prober) probeGRPC(ctx context.Context, target models.ServiceTarget, addr string, start time.Time) models.ProbeResult {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return p.finish(target, start, false, err.Error())
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(reqCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return p.finish(target, start, false, err.Error())
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return p.finish(target, start, false, fmt.Sprintf("serving status %s", resp.GetStatus()))
	}
	return p.finish(target, start, true, "")
}

func (p *Prober) finish(target models.ServiceTarget, start time.Time, success bool, detail string) models.ProbeResult {
	result := models.ProbeResult{
		Timestamp: start,
		Success:   success,
		Latency:   time.Since(start),
		Detail:    detail,
	}
	label := "success"
	if !success {
		label = "failure"
		p.logger.Debug("probe failed", "service", target.Name, "detail", detail)
	}
	metrics.ProbeTotal.WithLabelValues(target.Name, label).Inc()
	return result
}
