package bmc

import (
	"context"
	"sync"

	"github.com/gardentiller/tiller/internal/infra/redfish"
)

// base carries the shared Redfish plumbing for both vendors: service
// root probing and generic system discovery.
type base struct {
	rf Getter

	mu     sync.Mutex
	caps   map[Capability]bool
	probed bool
}

// Supports probes the service root once per client and reports whether
// the named service is linked from it.
func (b *base) Supports(ctx context.Context, cap Capability) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.probed {
		res := b.rf.Get(ctx, redfish.ServiceRoot)
		if res.Failed() {
			// Leave unprobed so a later call can retry the root.
			return false
		}
		b.caps = make(map[Capability]bool)
		for _, c := range []Capability{CapSystems, CapManagers, CapChassis, CapFirmwareInventory} {
			_, ok := res.Value[string(c)]
			b.caps[c] = ok
		}
		b.probed = true
	}
	return b.caps[cap]
}

// systemPath resolves the first (usually only) computer system.
func (b *base) systemPath(ctx context.Context) (string, error) {
	res := b.rf.Get(ctx, redfish.ServiceRoot+"/Systems")
	if res.Failed() {
		return "", res.Err
	}
	return firstMemberPath(res.Value)
}

// system fetches the first computer system resource.
func (b *base) system(ctx context.Context) (map[string]any, error) {
	path, err := b.systemPath(ctx)
	if err != nil {
		return nil, err
	}
	res := b.rf.Get(ctx, path)
	if res.Failed() {
		return nil, res.Err
	}
	return res.Value, nil
}

// inventoryFrom extracts the common hardware summary fields.
func inventoryFrom(system map[string]any) (*Inventory, error) {
	manufacturer, err := stringField(system, "Manufacturer")
	if err != nil {
		return nil, err
	}
	model, err := stringField(system, "Model")
	if err != nil {
		return nil, err
	}
	return &Inventory{
		Manufacturer: manufacturer,
		Model:        model,
		SerialNumber: optionalStringField(system, "SerialNumber"),
		PowerState:   optionalStringField(system, "PowerState"),
		BIOSVersion:  optionalStringField(system, "BiosVersion"),
	}, nil
}

// powerState reads the chassis power state from the system resource.
func (b *base) powerState(ctx context.Context) (string, error) {
	system, err := b.system(ctx)
	if err != nil {
		return "", err
	}
	return stringField(system, "PowerState")
}
