package miio

import (
	"context"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// buzzerAdapter toggles the key-press buzzer.
type buzzerAdapter struct {
	adapter
}

func newBuzzerAccessory(reg *accessory.Registry, dev Device, logger Logger, name string) (*accessory.Accessory, error) {
	acc, svc, err := newSingleServiceAccessory(reg, AccessoryBuzzer, name, accessory.ServiceSwitch)
	if err != nil {
		return nil, err
	}
	a := &buzzerAdapter{adapter: adapter{device: dev, logger: logger, accessoryID: AccessoryBuzzer}}
	svc.Characteristic(accessory.CharOn).OnGet(a.getOn).OnSet(a.setOn)
	return acc, nil
}

func (a *buzzerAdapter) getOn(ctx context.Context) (any, error) {
	v, err := a.prop(ctx, "get buzzer", propBuzzer)
	if err != nil {
		return nil, err
	}
	return propString(v) == switchOn, nil
}

func (a *buzzerAdapter) setOn(ctx context.Context, v any) error {
	return a.command(ctx, "set buzzer", methodSetBuzzer, onOff(boolValue(v)))
}
