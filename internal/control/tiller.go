// Package control wires the application together and owns its
// lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gardentiller/tiller/internal/core/config"
	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/health"
	"github.com/gardentiller/tiller/internal/infra/bmc"
	"github.com/gardentiller/tiller/internal/infra/command"
	"github.com/gardentiller/tiller/internal/infra/ipmi"
	"github.com/gardentiller/tiller/internal/infra/redfish"
	redisclient "github.com/gardentiller/tiller/internal/infra/redis"
	"github.com/gardentiller/tiller/internal/infra/storage/postgres"
	"github.com/gardentiller/tiller/internal/report"
	"github.com/gardentiller/tiller/internal/resilience"
	"github.com/gardentiller/tiller/internal/validate"
)

// Breaker names, one per operation class. Every caller of a class
// shares its breaker through the registry.
const (
	breakerRedfish = "redfish.get"
	breakerIPMI    = "ipmi.exec"
	breakerCommand = "command.run"
)

// Tiller is the main application struct that manages the validation
// run lifecycle.
type Tiller struct {
	cfg          *config.AppConfig
	log          *slog.Logger
	registry     *resilience.Registry
	orchestrator *validate.Orchestrator
	memSink      *report.MemorySink
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	hosts        []domain.LabHost
}

// NewTiller creates a Tiller instance with all dependencies initialized.
func NewTiller(cfg *config.AppConfig, log *slog.Logger) (*Tiller, error) {
	hosts, err := cfg.ResolveHosts()
	if err != nil {
		return nil, err
	}

	t := &Tiller{
		cfg:      cfg,
		log:      log,
		registry: resilience.NewRegistry(),
		memSink:  report.NewMemorySink(),
		hosts:    hosts,
	}

	// 1. Result sinks. Memory is always on; Redis and Postgres join
	// when configured.
	sinks := report.MultiSink{t.memSink}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, err
		}
		t.db = db
		sinks = append(sinks, postgres.NewRunRepo(db))
		log.Info("run history stored in PostgreSQL")
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		t.redisClient = rc
		sinks = append(sinks, rc)
		log.Info("results mirrored to Redis")
	}

	// 2. Resilience layer: one executor, one breaker per class.
	ex := resilience.NewExecutor(log)
	rcfg := cfg.Resilience

	redfishBreaker := t.registry.Get(breakerRedfish, resilience.BreakerConfig{
		FailMax:      rcfg.CircuitThreshold,
		ResetTimeout: time.Duration(rcfg.ResetTimeout) * time.Second,
		// A BMC that stops answering within the deadline is as down as
		// one refusing connections, so timeouts count here.
		CountTimeouts: true,
		Exclude:       []resilience.Kind{resilience.KindPermanent},
	})
	ipmiBreaker := t.registry.Get(breakerIPMI, resilience.BreakerConfig{
		FailMax:       3,
		ResetTimeout:  time.Duration(rcfg.ResetTimeout) * time.Second,
		CountTimeouts: rcfg.CountTimeouts,
		Exclude:       []resilience.Kind{resilience.KindPermanent},
	})
	commandBreaker := t.registry.Get(breakerCommand, resilience.BreakerConfig{
		FailMax:       rcfg.CircuitThreshold,
		ResetTimeout:  time.Duration(rcfg.ResetTimeout) * time.Second,
		CountTimeouts: rcfg.CountTimeouts,
		Exclude:       []resilience.Kind{resilience.KindPermanent},
	})

	// 3. Adapters.
	newBMC := func(host domain.LabHost) (bmc.Client, error) {
		rf := redfish.NewClient(host.BMCAddress, host.Username, host.Password, redfish.Config{
			MaxTries:   rcfg.MaxTries,
			RetryDelay: time.Duration(rcfg.RetryDelay) * time.Second,
			Timeout:    time.Duration(rcfg.Timeout) * time.Second,
			VerifySSL:  host.VerifySSL,
		}, ex, redfishBreaker)
		return bmc.NewClient(host, rf)
	}

	ipmiClient := ipmi.NewClient(ipmi.Config{
		MaxTries:        rcfg.MaxTries,
		RetryDelay:      time.Duration(rcfg.RetryDelay) * time.Second,
		Timeout:         time.Duration(rcfg.Timeout) * time.Second,
		FallbackMessage: rcfg.FallbackMessage,
		FailOnStderr:    true,
	}, ex, ipmiBreaker)

	scanner := command.NewRunner(command.Config{
		Name:       breakerCommand,
		MaxTries:   rcfg.MaxTries,
		RetryDelay: time.Duration(rcfg.RetryDelay) * time.Second,
		Timeout:    time.Duration(rcfg.Timeout) * time.Second,
	}, ex, commandBreaker)

	// 4. Orchestration and diagnostics.
	pipeline := validate.NewPipeline(log, newBMC, ipmiClient, scanner, t.registry, rcfg.FallbackMessage)
	t.orchestrator = validate.NewOrchestrator(log, cfg.Validation.Workers, pipeline, sinks)
	t.healthServer = health.NewServer(t.registry, cfg.Server.Port)

	return t, nil
}

// Run executes one validation pass over the configured hosts with the
// diagnostics server up for its duration.
func (t *Tiller) Run(ctx context.Context) (*domain.ValidationRun, []*domain.HostResult, error) {
	go func() {
		if err := t.healthServer.Start(); err != nil && ctx.Err() == nil {
			t.log.Warn("diagnostics server stopped", "error", err)
		}
	}()

	if len(t.hosts) == 0 {
		return nil, nil, fmt.Errorf("no hosts configured")
	}

	run, _ := t.orchestrator.Run(ctx, t.hosts)
	return run, t.memSink.Results(), nil
}

// Stop shuts down the diagnostics server and closes external stores.
func (t *Tiller) Stop(ctx context.Context) {
	if err := t.healthServer.Stop(ctx); err != nil {
		t.log.Warn("diagnostics server shutdown failed", "error", err)
	}
	if t.redisClient != nil {
		if err := t.redisClient.Close(); err != nil {
			t.log.Warn("redis close failed", "error", err)
		}
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil {
			t.log.Warn("database close failed", "error", err)
		}
	}
}
