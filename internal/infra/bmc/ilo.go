package bmc

import (
	"context"

	"github.com/gardentiller/tiller/internal/core/domain"
)

// iloClient drives HPE iLO Redfish endpoints. iLO4 and iLO5 disagree
// about where firmware details live, so the adapter falls back across
// the known locations instead of assuming one firmware generation.
type iloClient struct {
	base
}

func (c *iloClient) Vendor() domain.BMCType {
	return domain.BMCTypeILO
}

func (c *iloClient) SystemInventory(ctx context.Context) (*Inventory, error) {
	system, err := c.system(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := inventoryFrom(system)
	if err != nil {
		return nil, err
	}

	if fw := c.oemFirmware(system); fw != "" {
		inv.FirmwareVersion = fw
	}
	return inv, nil
}

func (c *iloClient) PowerState(ctx context.Context) (string, error) {
	return c.powerState(ctx)
}

// oemFirmware digs the iLO firmware string out of the system's OEM
// section, trying the iLO5 key first and falling back to iLO4's.
func (c *iloClient) oemFirmware(system map[string]any) string {
	oem, ok := system["Oem"].(map[string]any)
	if !ok {
		return ""
	}
	for _, vendorKey := range []string{"Hpe", "Hp"} {
		section, ok := oem[vendorKey].(map[string]any)
		if !ok {
			continue
		}
		fw, ok := section["Firmware"].(map[string]any)
		if !ok {
			continue
		}
		current, ok := fw["Current"].(map[string]any)
		if !ok {
			continue
		}
		if v := optionalStringField(current, "VersionString"); v != "" {
			return v
		}
	}
	return ""
}
