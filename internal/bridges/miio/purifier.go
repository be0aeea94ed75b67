package miio

import (
	"context"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// purifierModeAdapter maps power, operating mode, fan speed and child lock.
//
// The silent mode switch, the target state and the rotation speed are three
// views of the same device mode; setters keep the sibling caches in line
// after every successful write. Overlapping writes to those characteristics
// are not serialised and can leave the caches inconsistent until the next
// read.
type purifierModeAdapter struct {
	adapter

	active  *accessory.Characteristic
	current *accessory.Characteristic
	target  *accessory.Characteristic
	lock    *accessory.Characteristic
	speed   *accessory.Characteristic
	silent  *accessory.Characteristic
}

// newAirPurifierAccessory builds the purifier accessory: information,
// silent mode switch and air purifier services.
func newAirPurifierAccessory(reg *accessory.Registry, dev Device, logger Logger, name, silentName string) (*accessory.Accessory, error) {
	acc, err := accessory.New(reg, AccessoryAirPurifier, name, deviceInfo)
	if err != nil {
		return nil, err
	}

	silentSvc, err := reg.NewService(accessory.ServiceSwitch, silentName)
	if err != nil {
		return nil, err
	}
	purifierSvc, err := reg.NewService(accessory.ServiceAirPurifier, name)
	if err != nil {
		return nil, err
	}
	lock, err := purifierSvc.AddCharacteristic(accessory.CharLockPhysicalControls)
	if err != nil {
		return nil, err
	}
	speed, err := purifierSvc.AddCharacteristic(accessory.CharRotationSpeed)
	if err != nil {
		return nil, err
	}

	a := &purifierModeAdapter{
		adapter: adapter{device: dev, logger: logger, accessoryID: AccessoryAirPurifier},
		active:  purifierSvc.Characteristic(accessory.CharActive),
		current: purifierSvc.Characteristic(accessory.CharCurrentAirPurifierState),
		target:  purifierSvc.Characteristic(accessory.CharTargetAirPurifierState),
		lock:    lock,
		speed:   speed,
		silent:  silentSvc.Characteristic(accessory.CharOn),
	}

	a.silent.OnGet(a.getSilent).OnSet(a.setSilent)
	a.active.OnGet(a.getActive).OnSet(a.setActive)
	a.current.OnGet(a.getCurrentState)
	a.lock.OnGet(a.getLock).OnSet(a.setLock)
	a.target.OnGet(a.getTargetState).OnSet(a.setTargetState)
	a.speed.OnGet(a.getRotationSpeed).OnSet(a.setRotationSpeed)

	acc.AddService(silentSvc)
	acc.AddService(purifierSvc)
	return acc, nil
}

func (a *purifierModeAdapter) mode(ctx context.Context, op string) (string, error) {
	v, err := a.prop(ctx, op, propMode)
	if err != nil {
		return "", err
	}
	return propString(v), nil
}

func (a *purifierModeAdapter) getSilent(ctx context.Context) (any, error) {
	mode, err := a.mode(ctx, "get silent mode")
	if err != nil {
		return nil, err
	}
	return mode == modeSilent, nil
}

// setSilent leaving silent mode returns to whichever target state is cached.
func (a *purifierModeAdapter) setSilent(ctx context.Context, v any) error {
	if boolValue(v) {
		if err := a.command(ctx, "set silent mode", methodSetMode, modeSilent); err != nil {
			return err
		}
		a.target.UpdateValue(accessory.TargetStateAuto)
		return nil
	}

	mode := modeFavorite
	if a.target.Int() == accessory.TargetStateAuto {
		mode = modeAuto
	}
	return a.command(ctx, "set silent mode", methodSetMode, mode)
}

func (a *purifierModeAdapter) getActive(ctx context.Context) (any, error) {
	mode, err := a.mode(ctx, "get active")
	if err != nil {
		return nil, err
	}
	if mode == modeIdle {
		return accessory.ActiveInactive, nil
	}
	return accessory.ActiveActive, nil
}

// setActive reports IDLE until the write is acknowledged, then the settled
// state.
func (a *purifierModeAdapter) setActive(ctx context.Context, v any) error {
	on := intValue(v) == accessory.ActiveActive
	if err := a.command(ctx, "set active", methodSetPower, onOff(on)); err != nil {
		return err
	}

	a.current.UpdateValue(accessory.CurrentStateIdle)
	accessory.AfterAck(ctx, func() {
		if on {
			a.current.UpdateValue(accessory.CurrentStatePurifyingAir)
		} else {
			a.current.UpdateValue(accessory.CurrentStateInactive)
		}
	})
	return nil
}

func (a *purifierModeAdapter) getCurrentState(ctx context.Context) (any, error) {
	mode, err := a.mode(ctx, "get current state")
	if err != nil {
		return nil, err
	}
	if mode == modeIdle {
		return accessory.CurrentStateInactive, nil
	}
	return accessory.CurrentStatePurifyingAir, nil
}

func (a *purifierModeAdapter) getLock(ctx context.Context) (any, error) {
	v, err := a.prop(ctx, "get child lock", propChildLock)
	if err != nil {
		return nil, err
	}
	if propString(v) == switchOn {
		return accessory.ControlLockEnabled, nil
	}
	return accessory.ControlLockDisabled, nil
}

func (a *purifierModeAdapter) setLock(ctx context.Context, v any) error {
	on := intValue(v) == accessory.ControlLockEnabled
	return a.command(ctx, "set child lock", methodSetChildLock, onOff(on))
}

func (a *purifierModeAdapter) getTargetState(ctx context.Context) (any, error) {
	mode, err := a.mode(ctx, "get target state")
	if err != nil {
		return nil, err
	}
	if mode == modeFavorite {
		return accessory.TargetStateManual, nil
	}
	return accessory.TargetStateAuto, nil
}

// setTargetState switches between automatic (auto or silent, following the
// silent switch cache) and manual (favorite) operation. Entering manual mode
// re-reads the favorite level and only moves the cached rotation speed when
// it no longer sits in that level's band.
func (a *purifierModeAdapter) setTargetState(ctx context.Context, v any) error {
	if intValue(v) == accessory.TargetStateAuto {
		mode := modeAuto
		if a.silent.Bool() {
			mode = modeSilent
		}
		return a.command(ctx, "set target state", methodSetMode, mode)
	}

	if err := a.command(ctx, "set target state", methodSetMode, modeFavorite); err != nil {
		return err
	}
	level, err := a.numberProp(ctx, "get favorite level", propFavoriteLevel)
	if err != nil {
		return err
	}

	a.silent.UpdateValue(false)
	lvl := int(level)
	if !speedInLevelBand(a.speed.Int(), lvl) {
		a.speed.Store(lvl * 10)
	}
	return nil
}

// getRotationSpeed returns the raw favorite level (1-10), not a percentage.
// Hosts scale it themselves.
func (a *purifierModeAdapter) getRotationSpeed(ctx context.Context) (any, error) {
	return a.numberProp(ctx, "get rotation speed", propFavoriteLevel)
}

// setRotationSpeed writes the favorite level, then switches to favorite
// mode. A failure of the second call leaves the new level in place.
func (a *purifierModeAdapter) setRotationSpeed(ctx context.Context, v any) error {
	speed := intValue(v)
	if speed == 0 {
		return nil
	}

	level := favoriteLevelForSpeed(speed)
	if err := a.command(ctx, "set rotation speed", methodSetLevelFavorite, level); err != nil {
		return err
	}
	if err := a.command(ctx, "set rotation speed", methodSetMode, modeFavorite); err != nil {
		return err
	}

	a.target.UpdateValue(accessory.TargetStateManual)
	a.silent.UpdateValue(false)
	return nil
}
