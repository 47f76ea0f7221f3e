// Package bmc adapts vendor BMC APIs (Dell iDRAC, HPE iLO) behind a
// capability-probed interface. Version skew between BMC firmware
// generations is handled here and never leaks into the resilience
// core.
package bmc

import (
	"context"
	"fmt"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/resilience"
)

// Capability names an optional service a BMC may expose.
type Capability string

const (
	CapSystems           Capability = "Systems"
	CapManagers          Capability = "Managers"
	CapChassis           Capability = "Chassis"
	CapFirmwareInventory Capability = "UpdateService"
)

// Inventory is the hardware summary collected from one BMC.
type Inventory struct {
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	SerialNumber    string `json:"serial_number"`
	PowerState      string `json:"power_state"`
	BIOSVersion     string `json:"bios_version"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// Getter is the resilient fetch shape the Redfish client provides.
type Getter interface {
	Get(ctx context.Context, uri string) resilience.Result[map[string]any]
}

// Client is a vendor BMC adapted to a common contract. Supports lets
// callers probe for optional services instead of poking at endpoints
// and interpreting the failure.
type Client interface {
	Vendor() domain.BMCType
	Supports(ctx context.Context, cap Capability) bool
	SystemInventory(ctx context.Context) (*Inventory, error)
	PowerState(ctx context.Context) (string, error)
}

// NewClient returns the adapter matching the host's BMC vendor.
func NewClient(host domain.LabHost, rf Getter) (Client, error) {
	switch host.BMCType {
	case domain.BMCTypeIDRAC:
		return &idracClient{base: base{rf: rf}}, nil
	case domain.BMCTypeILO:
		return &iloClient{base: base{rf: rf}}, nil
	default:
		return nil, fmt.Errorf("unsupported bmc type %q for host %s", host.BMCType, host.Name)
	}
}

// Malformed-response failures are permanent: retrying a BMC that
// answers with an unexpected shape will not change the shape. They
// are also excluded from breaker counting by the vendor breakers.

func stringField(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", resilience.Permanent(fmt.Errorf("redfish payload is missing %q", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", resilience.Permanent(fmt.Errorf("redfish field %q is not a string", key))
	}
	return s, nil
}

func optionalStringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// firstMemberPath resolves a Redfish collection to its first member's
// @odata.id.
func firstMemberPath(payload map[string]any) (string, error) {
	members, ok := payload["Members"].([]any)
	if !ok || len(members) == 0 {
		return "", resilience.Permanent(fmt.Errorf("redfish collection has no members"))
	}
	first, ok := members[0].(map[string]any)
	if !ok {
		return "", resilience.Permanent(fmt.Errorf("redfish collection member is malformed"))
	}
	return stringField(first, "@odata.id")
}
