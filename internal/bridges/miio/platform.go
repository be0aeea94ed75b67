package miio

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// Accessory identifiers, in platform order.
const (
	AccessoryAirPurifier = "air-purifier"
	AccessoryTemperature = "temperature"
	AccessoryHumidity    = "humidity"
	AccessoryBuzzer      = "buzzer"
	AccessoryLED         = "led"
	AccessoryAirQuality  = "air-quality"
)

var deviceInfo = accessory.Info{
	Manufacturer: "XiaoMi",
	Model:        "AirPurifier",
	SerialNumber: "Undefined",
}

// PlatformOptions holds the collaborators of a platform.
type PlatformOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// Device is the handle shared by every accessory.
	Device Device

	// Registry provides the characteristic and service types.
	Registry *accessory.Registry

	// Logger is optional structured logger.
	Logger Logger
}

// Platform is the set of accessories exposed for one purifier. The set is
// fixed at construction.
type Platform struct {
	cfg         *Config
	accessories []*accessory.Accessory
	byID        map[string]*accessory.Accessory
}

// NewPlatform builds the enabled accessories.
//
// Parameters:
//   - opts: Config, Device and Registry are required
//
// Returns:
//   - *Platform: Platform holding the enabled accessories in fixed order
//   - error: Missing collaborator, ErrNoAccessories, or a registry error
func NewPlatform(opts PlatformOptions) (*Platform, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Device == nil {
		return nil, errors.New("device is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}

	cfg := opts.Config
	a := cfg.Accessories
	reg, dev, log := opts.Registry, opts.Device, opts.Logger

	type builder struct {
		id    string
		on    bool
		build func() (*accessory.Accessory, error)
	}
	builders := []builder{
		{AccessoryAirPurifier, a.AirPurifierEnabled(), func() (*accessory.Accessory, error) {
			return newAirPurifierAccessory(reg, dev, log, a.AirPurifierName, a.AirPurifierSilentModeName)
		}},
		{AccessoryTemperature, a.TemperatureEnabled(), func() (*accessory.Accessory, error) {
			return newTemperatureAccessory(reg, dev, log, a.TemperatureName)
		}},
		{AccessoryHumidity, a.HumidityEnabled(), func() (*accessory.Accessory, error) {
			return newHumidityAccessory(reg, dev, log, a.HumidityName)
		}},
		{AccessoryBuzzer, a.BuzzerSwitchEnabled(), func() (*accessory.Accessory, error) {
			return newBuzzerAccessory(reg, dev, log, a.BuzzerSwitchName)
		}},
		{AccessoryLED, a.LEDBulbEnabled(), func() (*accessory.Accessory, error) {
			return newLEDAccessory(reg, dev, log, a.LEDBulbName)
		}},
		{AccessoryAirQuality, a.AirQualityEnabled(), func() (*accessory.Accessory, error) {
			return newAirQualityAccessory(reg, dev, log, a.AirQualityName)
		}},
	}

	p := &Platform{cfg: cfg, byID: make(map[string]*accessory.Accessory)}
	for _, b := range builders {
		if !b.on {
			continue
		}
		acc, err := b.build()
		if err != nil {
			return nil, fmt.Errorf("building %s accessory: %w", b.id, err)
		}
		p.accessories = append(p.accessories, acc)
		p.byID[acc.ID()] = acc
	}
	if len(p.accessories) == 0 {
		return nil, ErrNoAccessories
	}

	if log != nil {
		log.Debug("initializing device",
			"type", cfg.Device.Type,
			"ip", cfg.Device.IP,
			"accessories", len(p.accessories))
	}
	return p, nil
}

// Accessories returns the accessories in platform order.
func (p *Platform) Accessories() []*accessory.Accessory {
	out := make([]*accessory.Accessory, len(p.accessories))
	copy(out, p.accessories)
	return out
}

// Accessory returns the accessory with the given id, or nil.
func (p *Platform) Accessory(id string) *accessory.Accessory {
	return p.byID[id]
}

// Observe registers fn on every accessory.
func (p *Platform) Observe(fn accessory.Observer) {
	for _, acc := range p.accessories {
		acc.Observe(fn)
	}
}

// newSingleServiceAccessory builds an accessory with the information service
// and one service of the given type.
func newSingleServiceAccessory(reg *accessory.Registry, id, name, serviceType string) (*accessory.Accessory, *accessory.Service, error) {
	acc, err := accessory.New(reg, id, name, deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	svc, err := reg.NewService(serviceType, name)
	if err != nil {
		return nil, nil, err
	}
	acc.AddService(svc)
	return acc, svc, nil
}
