// Package validate orchestrates the per-host validation pipeline.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/infra/bmc"
	"github.com/gardentiller/tiller/internal/infra/command"
	"github.com/gardentiller/tiller/internal/resilience"
)

// Step names, stable for report consumers.
const (
	StepBMCInventory     = "bmc-inventory"
	StepPowerStatus      = "power-status"
	StepNetworkDiscovery = "network-discovery"
)

// redfishBreakerName is the breaker the Redfish client class registers
// under; the inventory step reports its state alongside step results.
const redfishBreakerName = "redfish.get"

// BMCFactory builds a vendor client for one host.
type BMCFactory func(host domain.LabHost) (bmc.Client, error)

// PowerQuerier reports chassis power over IPMI.
type PowerQuerier interface {
	PowerStatus(ctx context.Context, host domain.LabHost) command.Result
}

// Scanner runs network discovery commands.
type Scanner interface {
	Run(ctx context.Context, argv []string) command.Result
}

// Pipeline runs the validation steps for a single host, in order.
// Steps are independent: a failed inventory still lets power and
// network checks produce data for the report.
type Pipeline struct {
	log      *slog.Logger
	newBMC   BMCFactory
	power    PowerQuerier
	scanner  Scanner
	registry *resilience.Registry
	fallback string // sentinel stdout marking a degraded command result
}

// NewPipeline wires the per-host steps.
func NewPipeline(log *slog.Logger, newBMC BMCFactory, power PowerQuerier, scanner Scanner, registry *resilience.Registry, fallback string) *Pipeline {
	return &Pipeline{
		log:      log,
		newBMC:   newBMC,
		power:    power,
		scanner:  scanner,
		registry: registry,
		fallback: fallback,
	}
}

// Run executes every step against the host and aggregates the result.
func (p *Pipeline) Run(ctx context.Context, host domain.LabHost) *domain.HostResult {
	res := &domain.HostResult{
		Host:      host.Name,
		StartedAt: time.Now().UTC(),
	}

	res.Steps = append(res.Steps, p.inventoryStep(ctx, host))
	res.Steps = append(res.Steps, p.commandStep(StepPowerStatus, p.power.PowerStatus(ctx, host)))
	res.Steps = append(res.Steps, p.discoveryStep(ctx, host))

	res.FinishedAt = time.Now().UTC()
	res.Status = res.Aggregate()

	p.log.Info("host validated",
		"host", host.Name,
		"status", res.Status,
		"duration", res.FinishedAt.Sub(res.StartedAt))
	return res
}

func (p *Pipeline) inventoryStep(ctx context.Context, host domain.LabHost) domain.StepResult {
	step := domain.StepResult{
		Step:         StepBMCInventory,
		Attempts:     1,
		CircuitState: p.breakerState(redfishBreakerName),
	}

	client, err := p.newBMC(host)
	if err != nil {
		step.Status = domain.StepFailed
		step.Error = err.Error()
		return step
	}

	inv, err := client.SystemInventory(ctx)
	step.CircuitState = p.breakerState(redfishBreakerName)
	if err != nil {
		step.Status = domain.StepFailed
		step.Error = err.Error()
		return step
	}

	step.Status = domain.StepPassed
	step.Detail = fmt.Sprintf("%s %s serial=%s firmware=%s power=%s",
		inv.Manufacturer, inv.Model, inv.SerialNumber, inv.FirmwareVersion, inv.PowerState)
	return step
}

func (p *Pipeline) discoveryStep(ctx context.Context, host domain.LabHost) domain.StepResult {
	// Ping scan of the BMC address proves L3 reachability from the
	// validation node independently of the Redfish and IPMI paths.
	argv := []string{"nmap", "-sn", "-oX", "-", host.BMCAddress}
	return p.commandStep(StepNetworkDiscovery, p.scanner.Run(ctx, argv))
}

// commandStep maps a command result onto a step: failed commands fail
// the step and a substituted fallback sentinel marks it degraded.
func (p *Pipeline) commandStep(name string, res command.Result) domain.StepResult {
	step := domain.StepResult{
		Step:         name,
		Attempts:     res.Attempts,
		CircuitState: res.CircuitState,
		Detail:       strings.TrimSpace(res.Stdout),
	}

	switch {
	case res.Failed:
		step.Status = domain.StepFailed
		step.Error = res.Msg
	case p.fallback != "" && res.Stdout == p.fallback:
		step.Status = domain.StepDegraded
		step.Error = res.Msg
	default:
		step.Status = domain.StepPassed
	}
	return step
}

func (p *Pipeline) breakerState(name string) string {
	b, ok := p.registry.Lookup(name)
	if !ok {
		return ""
	}
	return b.State().String()
}
