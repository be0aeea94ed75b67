package miio

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

type purifierChars struct {
	active, current, target, lock, speed, silent *accessory.Characteristic
}

func newPurifierFixture(t *testing.T) (*MockDevice, *Platform, purifierChars) {
	t.Helper()
	dev := NewMockDevice()
	p := newTestPlatform(t, dev)
	return dev, p, purifierChars{
		active:  mustChar(t, p, AccessoryAirPurifier, accessory.ServiceAirPurifier, accessory.CharActive),
		current: mustChar(t, p, AccessoryAirPurifier, accessory.ServiceAirPurifier, accessory.CharCurrentAirPurifierState),
		target:  mustChar(t, p, AccessoryAirPurifier, accessory.ServiceAirPurifier, accessory.CharTargetAirPurifierState),
		lock:    mustChar(t, p, AccessoryAirPurifier, accessory.ServiceAirPurifier, accessory.CharLockPhysicalControls),
		speed:   mustChar(t, p, AccessoryAirPurifier, accessory.ServiceAirPurifier, accessory.CharRotationSpeed),
		silent:  mustChar(t, p, AccessoryAirPurifier, accessory.ServiceSwitch, accessory.CharOn),
	}
}

func commandStrings(calls []mockCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

func assertCalls(t *testing.T, got []mockCall, want ...string) {
	t.Helper()
	gotS := commandStrings(got)
	if fmt.Sprint(gotS) != fmt.Sprint(want) {
		t.Errorf("device calls = %v, want %v", gotS, want)
	}
}

func TestPurifier_ModeReads(t *testing.T) {
	tests := []struct {
		mode        string
		wantActive  int
		wantCurrent int
		wantTarget  int
		wantSilent  bool
	}{
		{modeIdle, accessory.ActiveInactive, accessory.CurrentStateInactive, accessory.TargetStateAuto, false},
		{modeAuto, accessory.ActiveActive, accessory.CurrentStatePurifyingAir, accessory.TargetStateAuto, false},
		{modeSilent, accessory.ActiveActive, accessory.CurrentStatePurifyingAir, accessory.TargetStateAuto, true},
		{modeFavorite, accessory.ActiveActive, accessory.CurrentStatePurifyingAir, accessory.TargetStateManual, false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			dev, _, c := newPurifierFixture(t)
			dev.SetProp(propMode, tt.mode)
			ctx := context.Background()

			checks := []struct {
				char *accessory.Characteristic
				want any
			}{
				{c.active, tt.wantActive},
				{c.current, tt.wantCurrent},
				{c.target, tt.wantTarget},
				{c.silent, tt.wantSilent},
			}
			for _, chk := range checks {
				got, err := chk.char.Get(ctx)
				if err != nil {
					t.Fatalf("%s Get() error = %v", chk.char.Name(), err)
				}
				if got != chk.want {
					t.Errorf("%s = %v, want %v", chk.char.Name(), got, chk.want)
				}
			}
		})
	}
}

func TestPurifier_SetActiveTwoStepState(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantParam string
		wantFinal int
	}{
		{"on", accessory.ActiveActive, "on", accessory.CurrentStatePurifyingAir},
		{"off", accessory.ActiveInactive, "off", accessory.CurrentStateInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, p, c := newPurifierFixture(t)
			c.active.Store(1 - tt.value)

			var states []any
			p.Accessory(AccessoryAirPurifier).Observe(func(e accessory.Event) {
				if e.Characteristic == accessory.CharCurrentAirPurifierState {
					states = append(states, e.Value)
				}
			})

			if err := c.active.Set(context.Background(), tt.value); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			assertCalls(t, dev.Calls(), "set_power["+tt.wantParam+"]")
			if len(states) == 0 || states[0] != accessory.CurrentStateIdle {
				t.Errorf("first current state = %v, want IDLE", states)
			}
			if got := c.current.Int(); got != tt.wantFinal {
				t.Errorf("final current state = %d, want %d", got, tt.wantFinal)
			}
		})
	}
}

func TestPurifier_SetActiveRejected(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	dev.SetReply(methodSetPower, "error")

	err := c.active.Set(context.Background(), accessory.ActiveActive)

	var dr *DeviceRejection
	if !errors.As(err, &dr) {
		t.Fatalf("Set() error = %v, want DeviceRejection", err)
	}
	if dr.Payload() != "error" {
		t.Errorf("payload = %v, want %q", dr.Payload(), "error")
	}
	if c.current.Int() != accessory.CurrentStateInactive {
		t.Errorf("current state changed to %d on failure", c.current.Int())
	}
	if c.active.Int() != accessory.ActiveInactive {
		t.Errorf("active cached %d on failure", c.active.Int())
	}
}

func TestPurifier_TransportErrorUnchanged(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	transportErr := &TransportError{Method: methodGetProp, Err: ErrCallTimeout}
	dev.SetError("get_prop:mode", transportErr)

	for _, char := range []*accessory.Characteristic{c.active, c.current, c.target, c.silent} {
		_, err := char.Get(context.Background())
		if err != transportErr {
			t.Errorf("%s Get() error = %v, want the transport error unchanged", char.Name(), err)
		}
	}
}

func TestPurifier_SetSilent(t *testing.T) {
	t.Run("on selects silent and target auto", func(t *testing.T) {
		dev, _, c := newPurifierFixture(t)
		c.target.Store(accessory.TargetStateManual)

		if err := c.silent.Set(context.Background(), true); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		assertCalls(t, dev.Calls(), "set_mode[silent]")
		if c.target.Int() != accessory.TargetStateAuto {
			t.Errorf("target = %d, want AUTO", c.target.Int())
		}
	})

	tests := []struct {
		name   string
		target int
		want   string
	}{
		{"off returns to auto", accessory.TargetStateAuto, "set_mode[auto]"},
		{"off returns to favorite", accessory.TargetStateManual, "set_mode[favorite]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _, c := newPurifierFixture(t)
			c.silent.Store(true)
			c.target.Store(tt.target)

			if err := c.silent.Set(context.Background(), false); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			assertCalls(t, dev.Calls(), tt.want)
			if c.target.Int() != tt.target {
				t.Errorf("target changed to %d", c.target.Int())
			}
		})
	}
}

func TestPurifier_SetTargetAuto(t *testing.T) {
	tests := []struct {
		silent bool
		want   string
	}{
		{false, "set_mode[auto]"},
		{true, "set_mode[silent]"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("silent=%v", tt.silent), func(t *testing.T) {
			dev, _, c := newPurifierFixture(t)
			c.silent.Store(tt.silent)

			if err := c.target.Set(context.Background(), accessory.TargetStateAuto); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			assertCalls(t, dev.Calls(), tt.want)
		})
	}
}

func TestPurifier_SetTargetManualReconcilesSpeed(t *testing.T) {
	tests := []struct {
		name      string
		cached    int
		level     float64
		wantSpeed int
	}{
		{"cached speed in band", 35, 4, 35},
		{"cached speed at band top", 40, 4, 40},
		{"cached speed above band", 70, 4, 40},
		{"cached speed at lower edge", 30, 4, 40},
		{"nothing cached", 0, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, p, c := newPurifierFixture(t)
			dev.SetProp(propFavoriteLevel, tt.level)
			c.silent.Store(true)
			c.speed.Store(tt.cached)

			var speedEvents int
			p.Accessory(AccessoryAirPurifier).Observe(func(e accessory.Event) {
				if e.Characteristic == accessory.CharRotationSpeed {
					speedEvents++
				}
			})

			if err := c.target.Set(context.Background(), accessory.TargetStateManual); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			assertCalls(t, dev.Calls(), "set_mode[favorite]", "get_prop[favorite_level]")
			if got := c.speed.Int(); got != tt.wantSpeed {
				t.Errorf("rotation speed = %d, want %d", got, tt.wantSpeed)
			}
			if speedEvents != 0 {
				t.Errorf("rotation speed emitted %d events, want silent overwrite", speedEvents)
			}
			if c.silent.Bool() {
				t.Error("silent switch still on")
			}
			if c.target.Int() != accessory.TargetStateManual {
				t.Errorf("target = %d, want MANUAL", c.target.Int())
			}
		})
	}
}

func TestPurifier_ManualKeepsSpeedInEveryBand(t *testing.T) {
	for level := 1; level <= maxFavoriteLevel; level++ {
		dev, _, c := newPurifierFixture(t)
		dev.SetProp(propFavoriteLevel, float64(level))

		if err := c.speed.Set(context.Background(), level*10); err != nil {
			t.Fatalf("level %d: speed Set() error = %v", level, err)
		}
		if err := c.target.Set(context.Background(), accessory.TargetStateManual); err != nil {
			t.Fatalf("level %d: target Set() error = %v", level, err)
		}
		if got := c.speed.Int(); got != level*10 {
			t.Errorf("level %d: rotation speed = %d, want %d", level, got, level*10)
		}
	}
}

func TestPurifier_SetRotationSpeed(t *testing.T) {
	tests := []struct {
		speed     int
		wantLevel int
	}{
		{5, 1},
		{10, 2},
		{55, 6},
		{89, 9},
		{90, 10},
		{95, 10},
		{100, 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.speed), func(t *testing.T) {
			dev, _, c := newPurifierFixture(t)
			c.silent.Store(true)

			if err := c.speed.Set(context.Background(), tt.speed); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			assertCalls(t, dev.Calls(),
				fmt.Sprintf("set_level_favorite[%d]", tt.wantLevel),
				"set_mode[favorite]")
			if c.target.Int() != accessory.TargetStateManual {
				t.Errorf("target = %d, want MANUAL", c.target.Int())
			}
			if c.silent.Bool() {
				t.Error("silent switch still on")
			}
			if c.speed.Int() != tt.speed {
				t.Errorf("cached speed = %d, want %d", c.speed.Int(), tt.speed)
			}
		})
	}
}

func TestPurifier_SetRotationSpeedZeroIsNoop(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	c.speed.Store(40)

	if err := c.speed.Set(context.Background(), 0); err != nil {
		t.Fatalf("Set(0) error = %v", err)
	}
	if n := len(dev.Calls()); n != 0 {
		t.Errorf("device calls = %d, want 0", n)
	}
}

func TestPurifier_SetRotationSpeedPartialFailure(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	dev.SetReply(methodSetMode, "busy")
	c.target.Store(accessory.TargetStateAuto)

	err := c.speed.Set(context.Background(), 30)
	if !IsRejection(err) {
		t.Fatalf("Set() error = %v, want DeviceRejection", err)
	}

	// The level write is not rolled back.
	assertCalls(t, dev.Calls(), "set_level_favorite[4]", "set_mode[favorite]")
	if c.target.Int() != accessory.TargetStateAuto {
		t.Errorf("target = %d, want AUTO after failure", c.target.Int())
	}
}

func TestPurifier_GetRotationSpeedReturnsRawLevel(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	dev.SetProp(propFavoriteLevel, float64(7))

	got, err := c.speed.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 7 {
		t.Errorf("Get() = %v, want raw level 7", got)
	}
}

func TestPurifier_ChildLock(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	ctx := context.Background()

	dev.SetProp(propChildLock, "on")
	if got, _ := c.lock.Get(ctx); got != accessory.ControlLockEnabled {
		t.Errorf("lock Get() = %v, want ENABLED", got)
	}
	dev.SetProp(propChildLock, "off")
	if got, _ := c.lock.Get(ctx); got != accessory.ControlLockDisabled {
		t.Errorf("lock Get() = %v, want DISABLED", got)
	}

	dev.Reset()
	if err := c.lock.Set(ctx, accessory.ControlLockEnabled); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.lock.Set(ctx, accessory.ControlLockDisabled); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	assertCalls(t, dev.Calls(), "set_child_lock[on]", "set_child_lock[off]")
}

func TestPurifier_SilentThenTargetRead(t *testing.T) {
	dev, _, c := newPurifierFixture(t)
	ctx := context.Background()

	if err := c.silent.Set(ctx, true); err != nil {
		t.Fatalf("silent Set() error = %v", err)
	}
	dev.SetProp(propMode, modeSilent)
	if got, _ := c.target.Get(ctx); got != accessory.TargetStateAuto {
		t.Errorf("target Get() = %v, want AUTO", got)
	}

	dev.SetProp(propFavoriteLevel, float64(3))
	if err := c.target.Set(ctx, accessory.TargetStateManual); err != nil {
		t.Fatalf("target Set() error = %v", err)
	}
	dev.SetProp(propMode, modeFavorite)
	if got, _ := c.silent.Get(ctx); got != false {
		t.Errorf("silent Get() = %v, want false", got)
	}
}
