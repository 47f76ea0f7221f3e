package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gardentiller/tiller/internal/core/metrics"
)

// Policy defines retry behavior for one invocation.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultPolicy provides the defaults used by most call sites.
var DefaultPolicy = Policy{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
}

// Result is the outcome of a resilient invocation: the value or the
// final error, plus attempt count and breaker state for diagnostics.
type Result[T any] struct {
	Value        T
	Err          error
	Attempts     int
	BreakerState State
}

// Failed reports whether the invocation ultimately failed.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Operation binds a fallible call to its retry policy and shared
// breaker. Fn must honor ctx for its own deadline handling.
type Operation[T any] struct {
	Name    string // operation class, e.g. "redfish.get"
	Target  string // host, IP or command for logging
	Policy  Policy
	Breaker *Breaker
	Fn      func(ctx context.Context) (T, error)
}

// Executor runs operations with retry, backoff and attempt logging.
// One executor is shared across adapters; it holds no per-operation
// state.
type Executor struct {
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor logging through log. A nil logger
// falls back to slog.Default.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		log: log,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Do runs op through its breaker with up to Policy.MaxAttempts
// attempts and exponential backoff between them. A circuit-open
// rejection or a permanent failure stops the loop immediately. On
// exhaustion the result carries the last attempt's error.
func Do[T any](ctx context.Context, ex *Executor, op Operation[T]) Result[T] {
	policy := op.Policy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultPolicy.InitialDelay
	}

	start := time.Now()
	defer func() {
		metrics.OperationDuration.WithLabelValues(op.Name).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		var value T
		err := op.Breaker.Call(func() error {
			v, callErr := op.Fn(ctx)
			if callErr == nil {
				value = v
			}
			return callErr
		})
		state := op.Breaker.State()
		ex.observe(op.Name, state)

		if err == nil {
			ex.log.Debug("operation succeeded",
				"operation", op.Name,
				"target", op.Target,
				"attempt", attempt,
				"outcome", "success",
				"circuit_state", state.String())
			metrics.OperationAttempts.WithLabelValues(op.Name, "success").Inc()
			return Result[T]{Value: value, Attempts: attempt, BreakerState: state}
		}

		lastErr = err
		kind := Classify(err)

		switch kind {
		case KindCircuitOpen:
			ex.log.Warn("operation rejected, circuit open",
				"operation", op.Name,
				"target", op.Target,
				"attempt", attempt,
				"outcome", "circuit_open",
				"circuit_state", state.String())
			metrics.OperationAttempts.WithLabelValues(op.Name, "circuit_open").Inc()
			return Result[T]{Err: err, Attempts: attempt, BreakerState: state}
		case KindPermanent:
			ex.log.Error("operation failed permanently",
				"operation", op.Name,
				"target", op.Target,
				"attempt", attempt,
				"outcome", "failure",
				"error", err,
				"circuit_state", state.String())
			metrics.OperationAttempts.WithLabelValues(op.Name, "failure").Inc()
			return Result[T]{Err: err, Attempts: attempt, BreakerState: state}
		}

		ex.log.Warn("operation attempt failed",
			"operation", op.Name,
			"target", op.Target,
			"attempt", attempt,
			"outcome", "failure",
			"error", err,
			"circuit_state", state.String())
		metrics.OperationAttempts.WithLabelValues(op.Name, "failure").Inc()

		if attempt == policy.MaxAttempts {
			break
		}
		if sleepErr := ex.sleep(ctx, Delay(policy.InitialDelay, attempt)); sleepErr != nil {
			return Result[T]{
				Err:          sleepErr,
				Attempts:     attempt,
				BreakerState: op.Breaker.State(),
			}
		}
	}

	return Result[T]{
		Err:          fmt.Errorf("%s against %s failed after %d attempts: %w", op.Name, op.Target, policy.MaxAttempts, lastErr),
		Attempts:     policy.MaxAttempts,
		BreakerState: op.Breaker.State(),
	}
}

func (ex *Executor) observe(operation string, state State) {
	metrics.BreakerState.WithLabelValues(operation).Set(float64(state))
}
