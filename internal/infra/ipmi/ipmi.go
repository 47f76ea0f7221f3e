// Package ipmi drives ipmitool through the resilient command runner.
package ipmi

import (
	"context"
	"strings"
	"time"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/infra/command"
	"github.com/gardentiller/tiller/internal/resilience"
)

// Config holds the IPMI command class settings.
type Config struct {
	MaxTries        int
	RetryDelay      time.Duration
	Timeout         time.Duration
	FallbackMessage string
	FailOnStderr    bool
}

// Client executes IPMI commands against lab host BMCs. All commands
// share one breaker: repeated failures against any BMC trip the class.
type Client struct {
	runner *command.Runner
}

// NewClient creates an IPMI client on top of the shared executor and
// the "ipmi.exec" breaker. Exhausted commands substitute the fallback
// sentinel and report failed=false so playbook-style callers can
// handle degraded data themselves.
func NewClient(cfg Config, ex *resilience.Executor, breaker *resilience.Breaker) *Client {
	return &Client{
		runner: command.NewRunner(command.Config{
			Name:            "ipmi.exec",
			MaxTries:        cfg.MaxTries,
			RetryDelay:      cfg.RetryDelay,
			Timeout:         cfg.Timeout,
			OnExhaustion:    command.ExhaustFallback,
			FallbackMessage: cfg.FallbackMessage,
			FailOnStderr:    cfg.FailOnStderr,
			StderrFilter:    CleanStderr,
			Redact:          redactArgs,
		}, ex, breaker),
	}
}

// Exec runs an ipmitool subcommand (e.g. "power status") against the
// host's BMC over lanplus.
func (c *Client) Exec(ctx context.Context, host domain.LabHost, ipmiCmd string) command.Result {
	argv := []string{
		"ipmitool", "-I", "lanplus",
		"-H", host.BMCAddress,
		"-U", host.Username,
		"-P", host.Password,
	}
	argv = append(argv, strings.Fields(ipmiCmd)...)
	return c.runner.Run(ctx, argv)
}

// PowerStatus queries chassis power state.
func (c *Client) PowerStatus(ctx context.Context, host domain.LabHost) command.Result {
	return c.Exec(ctx, host, "power status")
}

// SensorList queries the sensor data repository.
func (c *Client) SensorList(ctx context.Context, host domain.LabHost) command.Result {
	return c.Exec(ctx, host, "sdr list")
}

// redactArgs hides the value following -P in log output.
func redactArgs(argv []string) string {
	out := make([]string, len(argv))
	copy(out, argv)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "-P" {
			out[i+1] = "******"
		}
	}
	return strings.Join(out, " ")
}
