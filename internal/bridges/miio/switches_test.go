package miio

import (
	"context"
	"testing"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

func TestBuzzer(t *testing.T) {
	dev := NewMockDevice()
	p := newTestPlatform(t, dev)
	on := mustChar(t, p, AccessoryBuzzer, accessory.ServiceSwitch, accessory.CharOn)
	ctx := context.Background()

	tests := []struct {
		raw  string
		want bool
	}{
		{"on", true},
		{"off", false},
		{"", false},
	}
	for _, tt := range tests {
		dev.SetProp(propBuzzer, tt.raw)
		got, err := on.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("buzzer=%q: Get() = %v, want %v", tt.raw, got, tt.want)
		}
	}

	dev.Reset()
	if err := on.Set(ctx, true); err != nil {
		t.Fatalf("Set(true) error = %v", err)
	}
	if err := on.Set(ctx, false); err != nil {
		t.Fatalf("Set(false) error = %v", err)
	}
	assertCalls(t, dev.Calls(), "set_buzzer[on]", "set_buzzer[off]")
}

func TestBuzzer_Rejected(t *testing.T) {
	dev := NewMockDevice()
	p := newTestPlatform(t, dev)
	on := mustChar(t, p, AccessoryBuzzer, accessory.ServiceSwitch, accessory.CharOn)
	dev.SetReply(methodSetBuzzer, "unsupported")

	err := on.Set(context.Background(), true)
	if !IsRejection(err) {
		t.Fatalf("Set() error = %v, want rejection", err)
	}
	if on.Bool() {
		t.Error("cached value updated despite rejection")
	}
}
