package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/blackkolly/rollback-controller/internal/models"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Persistence: sqlite (default, path) or postgres (url).
	DatabaseDriver string `mapstructure:"database_driver"`
	DatabasePath   string `mapstructure:"database_path"`
	DatabaseURL    string `mapstructure:"database_url"`

	// Monitoring thresholds. A window triggers when error_rate exceeds
	// ErrorThreshold (percent) or the failure streak exceeds
	// CriticalErrorThreshold.
	PollIntervalSec  int `mapstructure:"poll_interval_sec"`
	MonitorWindowSec int `mapstructure:"monitor_window_sec"` // length of one monitoring window

	ErrorThreshold         int  `mapstructure:"error_threshold"`
	CriticalErrorThreshold int  `mapstructure:"critical_error_threshold"`
	AutoRollback           bool `mapstructure:"auto_rollback"` // false = log triggers, require manual /rollback

	ProbeTimeoutSec        int `mapstructure:"probe_timeout_sec"`
	RollbackWaitTimeoutSec int `mapstructure:"rollback_wait_timeout_sec"` // cap on WaitForCondition during rollback

	// Orchestrator (Kubernetes) access.
	Namespace          string  `mapstructure:"namespace"`
	KubeconfigPath     string  `mapstructure:"kubeconfig_path"`
	K8sTimeoutSec      int     `mapstructure:"k8s_timeout_sec"`
	K8sRateLimitPerSec float64 `mapstructure:"k8s_rate_limit_per_sec"` // token bucket rate (req/s); 0 = no limit
	K8sRateLimitBurst  int     `mapstructure:"k8s_rate_limit_burst"`

	OTLPEndpoint       string  `mapstructure:"otlp_endpoint"` // empty = tracing disabled
	TraceSamplingRate  float64 `mapstructure:"trace_sampling_rate"`
	ShutdownTimeoutSec int     `mapstructure:"shutdown_timeout_sec"`
	MaxBodyBytes       int     `mapstructure:"max_body_bytes"` // trigger request body cap

	// Targets is the monitored service set, fixed at process start.
	Targets []models.ServiceTarget `mapstructure:"targets"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/rollback-controller/")
	viper.AddConfigPath("$HOME/.rollback-controller")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./rollback.db")
	viper.SetDefault("poll_interval_sec", 30)
	viper.SetDefault("monitor_window_sec", 300)
	viper.SetDefault("error_threshold", 5)
	viper.SetDefault("critical_error_threshold", 10)
	viper.SetDefault("auto_rollback", true)
	viper.SetDefault("probe_timeout_sec", 10)
	viper.SetDefault("rollback_wait_timeout_sec", 300)
	viper.SetDefault("namespace", "default")
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("k8s_timeout_sec", 30)
	viper.SetDefault("k8s_rate_limit_per_sec", 0) // 0 = disabled
	viper.SetDefault("k8s_rate_limit_burst", 0)
	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("trace_sampling_rate", 1.0)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("max_body_bytes", 64*1024)

	// Environment variables
	viper.SetEnvPrefix("ROLLBACK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyTargetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyTargetDefaults fills per-target fields the config file may omit.
func applyTargetDefaults(cfg *Config) {
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.Namespace == "" {
			t.Namespace = cfg.Namespace
		}
		if t.HealthPath == "" {
			t.HealthPath = "/health"
		}
		if t.Scheme == "" {
			t.Scheme = models.ProbeHTTP
		}
	}
}

// Validate rejects configurations that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive, got %d", c.PollIntervalSec)
	}
	if c.MonitorWindowSec <= 0 {
		return fmt.Errorf("monitor_window_sec must be positive, got %d", c.MonitorWindowSec)
	}
	if c.ErrorThreshold < 0 || c.ErrorThreshold > 100 {
		return fmt.Errorf("error_threshold must be 0-100, got %d", c.ErrorThreshold)
	}
	if c.CriticalErrorThreshold < 0 {
		return fmt.Errorf("critical_error_threshold must be non-negative, got %d", c.CriticalErrorThreshold)
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database_driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("target with empty name")
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = struct{}{}
		if !t.Strategy.Valid() {
			return fmt.Errorf("target %q: invalid strategy %q", t.Name, t.Strategy)
		}
	}
	return nil
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// MonitorWindow returns the length of one monitoring window. Counters reset
// between windows so the error rate reflects recent behavior.
func (c *Config) MonitorWindow() time.Duration {
	return time.Duration(c.MonitorWindowSec) * time.Second
}

// ProbeTimeout returns the per-probe bound as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

// RollbackWaitTimeout caps in-rollback waits (WAIT_AVAILABLE, WAIT_ROLLOUT).
func (c *Config) RollbackWaitTimeout() time.Duration {
	return time.Duration(c.RollbackWaitTimeoutSec) * time.Second
}

// Target returns the configured target with the given name, or nil.
func (c *Config) Target(name string) *models.ServiceTarget {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i]
		}
	}
	return nil
}
