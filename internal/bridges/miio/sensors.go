package miio

import (
	"context"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
)

// sensorAdapter serves the read-only environment readings.
type sensorAdapter struct {
	adapter
	pm25 *accessory.Characteristic
}

// newTemperatureAccessory exposes temp_dec in degrees (the device reports
// tenths).
func newTemperatureAccessory(reg *accessory.Registry, dev Device, logger Logger, name string) (*accessory.Accessory, error) {
	acc, svc, err := newSingleServiceAccessory(reg, AccessoryTemperature, name, accessory.ServiceTemperatureSensor)
	if err != nil {
		return nil, err
	}
	a := &sensorAdapter{adapter: adapter{device: dev, logger: logger, accessoryID: AccessoryTemperature}}
	svc.Characteristic(accessory.CharCurrentTemperature).OnGet(a.getTemperature)
	return acc, nil
}

func newHumidityAccessory(reg *accessory.Registry, dev Device, logger Logger, name string) (*accessory.Accessory, error) {
	acc, svc, err := newSingleServiceAccessory(reg, AccessoryHumidity, name, accessory.ServiceHumiditySensor)
	if err != nil {
		return nil, err
	}
	a := &sensorAdapter{adapter: adapter{device: dev, logger: logger, accessoryID: AccessoryHumidity}}
	svc.Characteristic(accessory.CharCurrentRelativeHumidity).OnGet(a.getHumidity)
	return acc, nil
}

// newAirQualityAccessory exposes the aqi band and the raw reading as PM2.5
// density.
func newAirQualityAccessory(reg *accessory.Registry, dev Device, logger Logger, name string) (*accessory.Accessory, error) {
	acc, svc, err := newSingleServiceAccessory(reg, AccessoryAirQuality, name, accessory.ServiceAirQualitySensor)
	if err != nil {
		return nil, err
	}
	pm25, err := svc.AddCharacteristic(accessory.CharPM25Density)
	if err != nil {
		return nil, err
	}
	a := &sensorAdapter{
		adapter: adapter{device: dev, logger: logger, accessoryID: AccessoryAirQuality},
		pm25:    pm25,
	}
	svc.Characteristic(accessory.CharAirQuality).OnGet(a.getAirQuality)
	return acc, nil
}

func (a *sensorAdapter) getTemperature(ctx context.Context) (any, error) {
	v, err := a.numberProp(ctx, "get temperature", propTempDec)
	if err != nil {
		return nil, err
	}
	return v / 10, nil
}

func (a *sensorAdapter) getHumidity(ctx context.Context) (any, error) {
	return a.numberProp(ctx, "get humidity", propHumidity)
}

// getAirQuality pushes the raw reading to PM2.5 density before banding it.
func (a *sensorAdapter) getAirQuality(ctx context.Context) (any, error) {
	aqi, err := a.numberProp(ctx, "get air quality", propAQI)
	if err != nil {
		return nil, err
	}
	a.pm25.UpdateValue(aqi)
	return airQualityForAQI(aqi), nil
}
