package bmc

import (
	"context"

	"github.com/gardentiller/tiller/internal/core/domain"
	"github.com/gardentiller/tiller/internal/infra/redfish"
)

// idracClient drives Dell iDRAC Redfish endpoints.
type idracClient struct {
	base
}

func (c *idracClient) Vendor() domain.BMCType {
	return domain.BMCTypeIDRAC
}

func (c *idracClient) SystemInventory(ctx context.Context) (*Inventory, error) {
	system, err := c.system(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := inventoryFrom(system)
	if err != nil {
		return nil, err
	}

	// iDRAC firmware version lives on the manager resource; older
	// generations do not link Managers at all, so probe first.
	if c.Supports(ctx, CapManagers) {
		if fw, err := c.managerFirmware(ctx); err == nil {
			inv.FirmwareVersion = fw
		}
	}
	return inv, nil
}

func (c *idracClient) PowerState(ctx context.Context) (string, error) {
	return c.powerState(ctx)
}

func (c *idracClient) managerFirmware(ctx context.Context) (string, error) {
	res := c.rf.Get(ctx, redfish.ServiceRoot+"/Managers")
	if res.Failed() {
		return "", res.Err
	}
	path, err := firstMemberPath(res.Value)
	if err != nil {
		return "", err
	}
	mgr := c.rf.Get(ctx, path)
	if mgr.Failed() {
		return "", mgr.Err
	}
	return stringField(mgr.Value, "FirmwareVersion")
}
