package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackkolly/rollback-controller/internal/models"
)

func defaultsConfig() *Config {
	return &Config{
		Port:                   8080,
		LogLevel:               "info",
		DatabaseDriver:         "sqlite",
		DatabasePath:           "./rollback.db",
		PollIntervalSec:        30,
		MonitorWindowSec:       300,
		ErrorThreshold:         5,
		CriticalErrorThreshold: 10,
		AutoRollback:           true,
		ProbeTimeoutSec:        10,
		RollbackWaitTimeoutSec: 300,
		Namespace:              "default",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, defaultsConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll interval", func(c *Config) { c.PollIntervalSec = 0 }},
		{"zero monitor window", func(c *Config) { c.MonitorWindowSec = 0 }},
		{"threshold above 100", func(c *Config) { c.ErrorThreshold = 101 }},
		{"negative critical threshold", func(c *Config) { c.CriticalErrorThreshold = -1 }},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "oracle" }},
		{"unnamed target", func(c *Config) {
			c.Targets = []models.ServiceTarget{{Strategy: models.StrategyRolling}}
		}},
		{"duplicate targets", func(c *Config) {
			c.Targets = []models.ServiceTarget{
				{Name: "web", Strategy: models.StrategyRolling},
				{Name: "web", Strategy: models.StrategyCanary},
			}
		}},
		{"invalid strategy", func(c *Config) {
			c.Targets = []models.ServiceTarget{{Name: "web", Strategy: "big-bang"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultsConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyTargetDefaults(t *testing.T) {
	cfg := defaultsConfig()
	cfg.Namespace = "staging"
	cfg.Targets = []models.ServiceTarget{
		{Name: "web", Strategy: models.StrategyRolling},
		{Name: "api", Strategy: models.StrategyCanary, Namespace: "prod", HealthPath: "/ready", Scheme: models.ProbeGRPC},
	}
	applyTargetDefaults(cfg)

	assert.Equal(t, "staging", cfg.Targets[0].Namespace)
	assert.Equal(t, "/health", cfg.Targets[0].HealthPath)
	assert.Equal(t, models.ProbeHTTP, cfg.Targets[0].Scheme)

	// Explicit values stay untouched.
	assert.Equal(t, "prod", cfg.Targets[1].Namespace)
	assert.Equal(t, "/ready", cfg.Targets[1].HealthPath)
	assert.Equal(t, models.ProbeGRPC, cfg.Targets[1].Scheme)
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultsConfig()
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 5*time.Minute, cfg.MonitorWindow())
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 5*time.Minute, cfg.RollbackWaitTimeout())
}

func TestTargetLookup(t *testing.T) {
	cfg := defaultsConfig()
	cfg.Targets = []models.ServiceTarget{{Name: "web", Strategy: models.StrategyRolling}}

	target := cfg.Target("web")
	require.NotNil(t, target)
	assert.Equal(t, models.StrategyRolling, target.Strategy)
	assert.Nil(t, cfg.Target("ghost"))
}
