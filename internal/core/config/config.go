package config

import (
	"github.com/gardentiller/tiller/internal/core/domain"
	redisresults "github.com/gardentiller/tiller/internal/infra/redis"
	"github.com/gardentiller/tiller/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig        `yaml:"server"`
	Logging    LoggingConfig       `yaml:"logging"`
	Redis      redisresults.Config `yaml:"redis"`
	Database   postgres.Config     `yaml:"database"`
	Validation ValidationConfig    `yaml:"validation"`
	Resilience ResilienceConfig    `yaml:"resilience"`
	Hosts      []HostConfig        `yaml:"hosts"`
}

// ServerConfig holds the diagnostics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ValidationConfig holds orchestration settings.
type ValidationConfig struct {
	Workers int `yaml:"workers"` // parallel per-host pipelines
}

// ResilienceConfig holds the process-wide retry and circuit-breaker
// defaults. Adapters tighten or relax these per operation class.
type ResilienceConfig struct {
	MaxTries         int    `yaml:"max_tries"`         // attempts per invocation
	RetryDelay       int    `yaml:"retry_delay"`       // initial backoff, seconds
	CircuitThreshold int    `yaml:"circuit_threshold"` // consecutive failures before opening
	ResetTimeout     int    `yaml:"reset_timeout"`     // cooldown before a probe, seconds
	Timeout          int    `yaml:"timeout"`           // per-operation deadline, seconds
	FallbackMessage  string `yaml:"fallback_message"`  // sentinel stdout on command exhaustion
	CountTimeouts    bool   `yaml:"count_timeouts"`    // count timeouts toward command breakers
}

// HostConfig holds settings for one lab host. The BMC password is
// resolved from the environment so inventory files stay secret-free.
type HostConfig struct {
	Name        string         `yaml:"name"`
	BMCAddress  string         `yaml:"bmc_address"`
	BMCType     domain.BMCType `yaml:"bmc_type"` // ilo or idrac
	Username    string         `yaml:"username"`
	PasswordEnv string         `yaml:"password_env"`
	VerifySSL   bool           `yaml:"verify_ssl"`
}
