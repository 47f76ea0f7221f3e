package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gardentiller/tiller/internal/core/metrics"
	"github.com/gardentiller/tiller/internal/resilience"
)

// ExhaustionPolicy decides what happens when every retry is spent.
type ExhaustionPolicy int

const (
	// ExhaustFail reports failed=true with the last attempt's error.
	ExhaustFail ExhaustionPolicy = iota
	// ExhaustFallback substitutes the fallback sentinel as stdout and
	// reports failed=false, deferring failure policy to the caller.
	ExhaustFallback
)

// Config configures a command runner for one command class.
type Config struct {
	Name            string // operation class, e.g. "command.run" or "ipmi.exec"
	MaxTries        int
	RetryDelay      time.Duration
	Timeout         time.Duration
	OnExhaustion    ExhaustionPolicy
	FallbackMessage string

	// FailOnStderr fails a zero-rc command whose stderr still carries
	// real errors after filtering.
	FailOnStderr bool
	// StderrFilter strips benign noise before the stderr check; nil
	// keeps stderr as-is.
	StderrFilter func(string) string
	// Redact renders argv for logs; nil joins the argv verbatim.
	// IPMI commands use this to hide the -P password argument.
	Redact func(argv []string) string
}

// Result mirrors the field names existing orchestration callers rely
// on; do not rename them.
type Result struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	StderrCleaned string `json:"stderr_cleaned,omitempty"`
	ReturnCode    int    `json:"returncode"`
	CircuitState  string `json:"circuit_state"`
	Attempts      int    `json:"attempts"`
	Failed        bool   `json:"failed"`
	Msg           string `json:"msg,omitempty"`
}

// Runner executes external commands through the resilience layer.
// One runner per command class; all callers share its breaker.
type Runner struct {
	cfg     Config
	ex      *resilience.Executor
	breaker *resilience.Breaker
}

// NewRunner creates a runner. Zero-valued config fields get the
// defaults the original command module used.
func NewRunner(cfg Config, ex *resilience.Executor, breaker *resilience.Breaker) *Runner {
	if cfg.Name == "" {
		cfg.Name = "command.run"
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = "COMMAND_FAILED"
	}
	return &Runner{cfg: cfg, ex: ex, breaker: breaker}
}

type execution struct {
	stdout string
	stderr string
	rc     int
}

// Run executes argv with retries, backoff and the shared breaker, and
// never returns a Go error: all outcomes are folded into the Result
// so orchestration callers decide failure policy themselves.
func (r *Runner) Run(ctx context.Context, argv []string) Result {
	if len(argv) == 0 {
		return Result{ReturnCode: -1, Failed: true, Msg: "empty command"}
	}

	display := strings.Join(argv, " ")
	if r.cfg.Redact != nil {
		display = r.cfg.Redact(argv)
	}

	var last execution
	res := resilience.Do(ctx, r.ex, resilience.Operation[execution]{
		Name:    r.cfg.Name,
		Target:  display,
		Policy:  resilience.Policy{MaxAttempts: r.cfg.MaxTries, InitialDelay: r.cfg.RetryDelay},
		Breaker: r.breaker,
		Fn: func(ctx context.Context) (execution, error) {
			e, err := r.attempt(ctx, argv)
			last = e
			return e, err
		},
	})

	if res.Attempts > 1 {
		metrics.CommandRetries.WithLabelValues(r.cfg.Name).Add(float64(res.Attempts - 1))
	}

	out := Result{
		Stdout:       last.stdout,
		Stderr:       last.stderr,
		ReturnCode:   last.rc,
		CircuitState: res.BreakerState.String(),
		Attempts:     res.Attempts,
	}
	if r.cfg.StderrFilter != nil {
		out.StderrCleaned = r.cfg.StderrFilter(last.stderr)
	}

	if !res.Failed() {
		return out
	}

	switch resilience.Classify(res.Err) {
	case resilience.KindCircuitOpen:
		out.Failed = true
		out.Msg = fmt.Sprintf("circuit breaker is open: %v", res.Err)
		if r.cfg.OnExhaustion == ExhaustFallback {
			out.Stdout = r.cfg.FallbackMessage
		}
		return out
	case resilience.KindPermanent:
		out.Failed = true
		out.Msg = res.Err.Error()
		return out
	}

	if r.cfg.OnExhaustion == ExhaustFallback {
		out.Stdout = r.cfg.FallbackMessage
		out.Failed = false
		out.Msg = fmt.Sprintf("command failed after %d attempts, fallback substituted", res.Attempts)
		return out
	}
	out.Failed = true
	out.Msg = fmt.Sprintf("command failed after %d attempts: %v", res.Attempts, res.Err)
	return out
}

func (r *Runner) attempt(ctx context.Context, argv []string) (execution, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	e := execution{stdout: stdout.String(), stderr: stderr.String()}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		// 124 is the conventional timeout exit code.
		e.rc = 124
		return e, resilience.Timeout(fmt.Errorf("command timed out after %v", r.cfg.Timeout))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			e.rc = exitErr.ExitCode()
			return e, resilience.Transient(fmt.Errorf("command exited with code %d", e.rc))
		case errors.Is(runErr, exec.ErrNotFound):
			e.rc = 127
			return e, resilience.Permanent(fmt.Errorf("command not found: %s", argv[0]))
		default:
			e.rc = -1
			return e, resilience.Transient(runErr)
		}
	}

	if r.cfg.FailOnStderr && r.hasRealStderr(e.stderr) {
		return e, resilience.Permanent(errors.New("command completed but stderr contains real errors"))
	}
	return e, nil
}

func (r *Runner) hasRealStderr(stderr string) bool {
	if r.cfg.StderrFilter != nil {
		stderr = r.cfg.StderrFilter(stderr)
	}
	return strings.TrimSpace(stderr) != ""
}
