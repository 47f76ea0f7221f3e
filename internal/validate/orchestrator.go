package validate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/core/metrics"
	"github.com/gardentiller/tiller/internal/report"
)

// HostValidator runs the full pipeline for one host.
type HostValidator interface {
	Run(ctx context.Context, host domain.LabHost) *domain.HostResult
}

// Orchestrator fans hosts out over a bounded worker pool. Results are
// keyed by hostname with exactly one writer per key, and each result
// is delivered to the sink as soon as it is produced so an interrupted
// run keeps its partial results.
type Orchestrator struct {
	log      *slog.Logger
	workers  int
	pipeline HostValidator
	sink     report.Sink
}

// NewOrchestrator creates an orchestrator with the given parallelism.
func NewOrchestrator(log *slog.Logger, workers int, pipeline HostValidator, sink report.Sink) *Orchestrator {
	if workers <= 0 {
		workers = 3
	}
	return &Orchestrator{log: log, workers: workers, pipeline: pipeline, sink: sink}
}

// Run validates every host and returns the run record plus results by
// hostname. Cancelling ctx stops submitting new hosts; hosts already
// in flight finish and their results are persisted.
func (o *Orchestrator) Run(ctx context.Context, hosts []domain.LabHost) (*domain.ValidationRun, map[string]*domain.HostResult) {
	run := domain.NewValidationRun(len(hosts))
	o.log.Info("validation run started", "run_id", run.ID, "hosts", len(hosts), "workers", o.workers)

	// Sinks must outlive ctx so partial results survive an interrupt.
	sinkCtx := context.WithoutCancel(ctx)
	if err := o.sink.SaveRun(sinkCtx, run); err != nil {
		o.log.Warn("failed to record run start", "run_id", run.ID, "error", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*domain.HostResult, len(hosts))
		sem     = make(chan struct{}, o.workers)
	)

submit:
	for _, host := range hosts {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			o.log.Warn("run interrupted, no further hosts submitted", "run_id", run.ID)
			break submit
		}

		wg.Add(1)
		go func(h domain.LabHost) {
			defer wg.Done()
			defer func() { <-sem }()

			res := o.pipeline.Run(ctx, h)
			metrics.HostsValidated.WithLabelValues(string(res.Status)).Inc()

			mu.Lock()
			results[h.Name] = res
			mu.Unlock()

			if err := o.sink.SaveHostResult(sinkCtx, run.ID, res); err != nil {
				o.log.Warn("failed to persist host result", "run_id", run.ID, "host", h.Name, "error", err)
			}
		}(host)
	}
	wg.Wait()

	run.Completed = len(results)
	run.FinishedAt = time.Now().UTC()
	run.Status = domain.RunCompleted
	if ctx.Err() != nil {
		run.Status = domain.RunInterrupted
	}
	if err := o.sink.SaveRun(sinkCtx, run); err != nil {
		o.log.Warn("failed to record run finish", "run_id", run.ID, "error", err)
	}

	o.log.Info("validation run finished",
		"run_id", run.ID,
		"status", run.Status,
		"completed", run.Completed,
		"hosts", run.HostCount)
	return run, results
}
