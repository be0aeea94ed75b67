package miio

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// ledAdapter maps the three-level led_b property onto a lightbulb with
// brightness. Writes are skipped when the requested value lands in the band
// the device is already in.
type ledAdapter struct {
	adapter
	on         *accessory.Characteristic
	brightness *accessory.Characteristic
}

func newLEDAccessory(reg *accessory.Registry, dev Device, logger Logger, name string) (*accessory.Accessory, error) {
	acc, svc, err := newSingleServiceAccessory(reg, AccessoryLED, name, accessory.ServiceLightbulb)
	if err != nil {
		return nil, err
	}
	brightness, err := svc.AddCharacteristic(accessory.CharBrightness)
	if err != nil {
		return nil, err
	}

	a := &ledAdapter{
		adapter:    adapter{device: dev, logger: logger, accessoryID: AccessoryLED},
		on:         svc.Characteristic(accessory.CharOn),
		brightness: brightness,
	}
	a.on.OnGet(a.getOn).OnSet(a.setOn)
	a.brightness.OnGet(a.getBrightness).OnSet(a.setBrightness)
	return acc, nil
}

func (a *ledAdapter) level(ctx context.Context, op string) (int, error) {
	v, err := a.numberProp(ctx, op, propLEDBrightness)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (a *ledAdapter) getOn(ctx context.Context) (any, error) {
	level, err := a.level(ctx, "get led on")
	if err != nil {
		return nil, err
	}
	return level != ledOff, nil
}

// setOn restores the band of the cached brightness when switching on.
func (a *ledAdapter) setOn(ctx context.Context, v any) error {
	on := boolValue(v)
	if on == a.on.Bool() {
		return nil
	}

	level := ledOff
	if on {
		level = ledLevelForOn(a.brightness.Int())
	}
	return a.command(ctx, "set led on", methodSetLEDBrightness, level)
}

func (a *ledAdapter) getBrightness(ctx context.Context) (any, error) {
	level, err := a.level(ctx, "get led brightness")
	if err != nil {
		return nil, err
	}
	brightness, ok := brightnessForLevel(level, a.brightness.Int())
	if !ok {
		err := fmt.Errorf("%w: led_b=%d", ErrUnexpectedValue, level)
		a.logError("get led brightness failed", err)
		return nil, err
	}
	return brightness, nil
}

func (a *ledAdapter) setBrightness(ctx context.Context, v any) error {
	level := ledLevelForBrightness(intValue(v))
	if level == ledLevelForBrightness(a.brightness.Int()) {
		return nil
	}
	return a.command(ctx, "set led brightness", methodSetLEDBrightness, level)
}
