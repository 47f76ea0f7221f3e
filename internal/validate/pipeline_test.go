package validate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/infra/bmc"
	"github.com/gardentiller/tiller/internal/infra/command"
	"github.com/gardentiller/tiller/internal/resilience"
)

type fakeBMC struct {
	inv *bmc.Inventory
	err error
}

func (f *fakeBMC) Vendor() domain.BMCType { return domain.BMCTypeIDRAC }

func (f *fakeBMC) Supports(context.Context, bmc.Capability) bool { return true }

func (f *fakeBMC) PowerState(context.Context) (string, error) { return "On", nil }
func (f *fakeBMC) SystemInventory(context.Context) (*bmc.Inventory, error) {
	return f.inv, f.err
}

type fakePower struct {
	res command.Result
}

func (f *fakePower) PowerStatus(ctx context.Context, host domain.LabHost) command.Result {
	return f.res
}

type fakeScanner struct {
	res  command.Result
	argv []string
}

func (f *fakeScanner) Run(ctx context.Context, argv []string) command.Result {
	f.argv = argv
	return f.res
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newPipeline(t *testing.T, client bmc.Client, bmcErr error, power *fakePower, scanner *fakeScanner) *Pipeline {
	t.Helper()
	factory := func(domain.LabHost) (bmc.Client, error) {
		if bmcErr != nil {
			return nil, bmcErr
		}
		return client, nil
	}
	return NewPipeline(discardLogger(), factory, power, scanner, resilience.NewRegistry(), "COMMAND_FAILED")
}

func stepByName(t *testing.T, res *domain.HostResult, name string) domain.StepResult {
	t.Helper()
	for _, s := range res.Steps {
		if s.Step == name {
			return s
		}
	}
	t.Fatalf("step %q not found in %+v", name, res.Steps)
	return domain.StepResult{}
}

func TestPipelineAllStepsPass(t *testing.T) {
	client := &fakeBMC{inv: &bmc.Inventory{
		Manufacturer: "Dell Inc.", Model: "PowerEdge R650",
		SerialNumber: "ABC1234", FirmwareVersion: "7.10.30.00", PowerState: "On",
	}}
	power := &fakePower{res: command.Result{Stdout: "Chassis Power is on\n", Attempts: 1, CircuitState: "closed"}}
	scanner := &fakeScanner{res: command.Result{Stdout: "<nmaprun/>", Attempts: 1, CircuitState: "closed"}}

	p := newPipeline(t, client, nil, power, scanner)
	res := p.Run(context.Background(), domain.LabHost{Name: "node-0", BMCAddress: "10.0.0.5"})

	if res.Status != domain.StepPassed {
		t.Errorf("host status = %q, want passed", res.Status)
	}
	if len(res.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(res.Steps))
	}

	inv := stepByName(t, res, StepBMCInventory)
	if !strings.Contains(inv.Detail, "PowerEdge R650") {
		t.Errorf("inventory detail = %q, want model included", inv.Detail)
	}

	ps := stepByName(t, res, StepPowerStatus)
	if ps.Detail != "Chassis Power is on" {
		t.Errorf("power detail = %q, want trimmed stdout", ps.Detail)
	}

	if scanner.argv[0] != "nmap" || scanner.argv[len(scanner.argv)-1] != "10.0.0.5" {
		t.Errorf("discovery argv = %v, want nmap scan of the BMC address", scanner.argv)
	}
}

func TestPipelineFallbackSentinelDegradesStep(t *testing.T) {
	client := &fakeBMC{inv: &bmc.Inventory{Manufacturer: "Dell Inc.", Model: "R650"}}
	power := &fakePower{res: command.Result{
		Stdout:   "COMMAND_FAILED",
		Attempts: 3,
		Failed:   false,
		Msg:      "command failed after 3 attempts, fallback substituted",
	}}
	scanner := &fakeScanner{res: command.Result{Attempts: 1}}

	p := newPipeline(t, client, nil, power, scanner)
	res := p.Run(context.Background(), domain.LabHost{Name: "node-0"})

	ps := stepByName(t, res, StepPowerStatus)
	if ps.Status != domain.StepDegraded {
		t.Errorf("power step = %q, want degraded on fallback sentinel", ps.Status)
	}
	if ps.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", ps.Attempts)
	}
	if res.Status != domain.StepDegraded {
		t.Errorf("host status = %q, want degraded", res.Status)
	}
}

func TestPipelineFailedStepFailsHost(t *testing.T) {
	power := &fakePower{res: command.Result{Stdout: "Chassis Power is on", Attempts: 1}}
	scanner := &fakeScanner{res: command.Result{Attempts: 1}}

	p := newPipeline(t, nil, errors.New("unsupported bmc type"), power, scanner)
	res := p.Run(context.Background(), domain.LabHost{Name: "node-0"})

	inv := stepByName(t, res, StepBMCInventory)
	if inv.Status != domain.StepFailed {
		t.Errorf("inventory step = %q, want failed", inv.Status)
	}
	if res.Status != domain.StepFailed {
		t.Errorf("host status = %q, want failed", res.Status)
	}

	// The remaining steps still run; a broken BMC adapter must not
	// suppress power and network data.
	if len(res.Steps) != 3 {
		t.Errorf("got %d steps, want 3", len(res.Steps))
	}
}

func TestPipelineInventoryErrorKeepsDiagnostics(t *testing.T) {
	client := &fakeBMC{err: resilience.Permanent(errors.New("http 401: check BMC credentials"))}
	power := &fakePower{res: command.Result{Stdout: "on", Attempts: 1}}
	scanner := &fakeScanner{res: command.Result{Attempts: 1}}

	p := newPipeline(t, client, nil, power, scanner)
	res := p.Run(context.Background(), domain.LabHost{Name: "node-0"})

	inv := stepByName(t, res, StepBMCInventory)
	if inv.Status != domain.StepFailed {
		t.Fatalf("inventory step = %q, want failed", inv.Status)
	}
	if !strings.Contains(inv.Error, "401") {
		t.Errorf("error = %q, want the underlying cause preserved", inv.Error)
	}
}
