package miio

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

func TestNewPlatform_AllEnabledInOrder(t *testing.T) {
	p := newTestPlatform(t, NewMockDevice())

	want := []string{
		AccessoryAirPurifier,
		AccessoryTemperature,
		AccessoryHumidity,
		AccessoryBuzzer,
		AccessoryLED,
		AccessoryAirQuality,
	}
	accs := p.Accessories()
	if len(accs) != len(want) {
		t.Fatalf("got %d accessories, want %d", len(accs), len(want))
	}
	for i, id := range want {
		if accs[i].ID() != id {
			t.Errorf("accessory[%d] = %s, want %s", i, accs[i].ID(), id)
		}
	}
}

func TestNewPlatform_PurifierLayout(t *testing.T) {
	p := newTestPlatform(t, NewMockDevice())
	acc := p.Accessory(AccessoryAirPurifier)

	services := acc.Services()
	if len(services) != 3 {
		t.Fatalf("got %d services, want 3", len(services))
	}
	wantTypes := []string{accessory.ServiceAccessoryInformation, accessory.ServiceSwitch, accessory.ServiceAirPurifier}
	for i, typ := range wantTypes {
		if services[i].Type() != typ {
			t.Errorf("service[%d] = %s, want %s", i, services[i].Type(), typ)
		}
	}
	if services[1].Name() != "Silent Mode" {
		t.Errorf("switch name = %q, want Silent Mode", services[1].Name())
	}

	info := services[0]
	if got := info.Characteristic(accessory.CharManufacturer).Value(); got != "XiaoMi" {
		t.Errorf("manufacturer = %v, want XiaoMi", got)
	}
	if got := info.Characteristic(accessory.CharSerialNumber).Value(); got != "Undefined" {
		t.Errorf("serial number = %v, want Undefined", got)
	}
}

func TestNewPlatform_EnableRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *AccessoriesConfig)
		missing string
	}{
		{"purifier disabled", func(a *AccessoriesConfig) { a.AirPurifierDisable = true }, AccessoryAirPurifier},
		{"purifier without silent name", func(a *AccessoriesConfig) { a.AirPurifierSilentModeName = "" }, AccessoryAirPurifier},
		{"temperature blank name", func(a *AccessoriesConfig) { a.TemperatureName = "   " }, AccessoryTemperature},
		{"humidity disabled", func(a *AccessoriesConfig) { a.HumidityDisable = true }, AccessoryHumidity},
		{"buzzer no name", func(a *AccessoriesConfig) { a.BuzzerSwitchName = "" }, AccessoryBuzzer},
		{"led disabled", func(a *AccessoriesConfig) { a.LEDBulbDisable = true }, AccessoryLED},
		{"air quality no name", func(a *AccessoriesConfig) { a.AirQualityName = "" }, AccessoryAirQuality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg.Accessories)

			p, err := NewPlatform(PlatformOptions{
				Config:   cfg,
				Device:   NewMockDevice(),
				Registry: accessory.DefaultRegistry(),
			})
			if err != nil {
				t.Fatalf("NewPlatform() error = %v", err)
			}
			if p.Accessory(tt.missing) != nil {
				t.Errorf("accessory %s built, want skipped", tt.missing)
			}
			if n := len(p.Accessories()); n != 5 {
				t.Errorf("got %d accessories, want 5", n)
			}
		})
	}
}

func TestNewPlatform_NoAccessories(t *testing.T) {
	cfg := testConfig()
	cfg.Accessories = AccessoriesConfig{}

	_, err := NewPlatform(PlatformOptions{
		Config:   cfg,
		Device:   NewMockDevice(),
		Registry: accessory.DefaultRegistry(),
	})
	if !errors.Is(err, ErrNoAccessories) {
		t.Errorf("NewPlatform() error = %v, want ErrNoAccessories", err)
	}
}

func TestNewPlatform_RequiredOptions(t *testing.T) {
	tests := []struct {
		name string
		opts PlatformOptions
		want string
	}{
		{"no config", PlatformOptions{Device: NewMockDevice(), Registry: accessory.DefaultRegistry()}, "config"},
		{"no device", PlatformOptions{Config: testConfig(), Registry: accessory.DefaultRegistry()}, "device"},
		{"no registry", PlatformOptions{Config: testConfig(), Device: NewMockDevice()}, "registry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlatform(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewPlatform() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestNewPlatform_LogsInitialisation(t *testing.T) {
	logger := &MockLogger{}
	_, err := NewPlatform(PlatformOptions{
		Config:   testConfig(),
		Device:   NewMockDevice(),
		Registry: accessory.DefaultRegistry(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewPlatform() error = %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.debugs) == 0 || logger.debugs[0] != "initializing device" {
		t.Errorf("debug logs = %v, want initializing device", logger.debugs)
	}
}

func TestPlatform_ObserveAllAccessories(t *testing.T) {
	p := newTestPlatform(t, NewMockDevice())

	seen := make(map[string]bool)
	p.Observe(func(e accessory.Event) { seen[e.AccessoryID] = true })

	mustChar(t, p, AccessoryTemperature, "", accessory.CharCurrentTemperature).UpdateValue(21.5)
	mustChar(t, p, AccessoryBuzzer, "", accessory.CharOn).UpdateValue(true)

	if !seen[AccessoryTemperature] || !seen[AccessoryBuzzer] {
		t.Errorf("observed accessories = %v", seen)
	}
}
