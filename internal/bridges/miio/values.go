package miio

import "github.com/nerrad567/gray-logic-airpurifier/internal/accessory"

// Device commands.
const (
	methodGetProp          = "get_prop"
	methodSetMode          = "set_mode"
	methodSetPower         = "set_power"
	methodSetChildLock     = "set_child_lock"
	methodSetLevelFavorite = "set_level_favorite"
	methodSetBuzzer        = "set_buzzer"
	methodSetLEDBrightness = "set_led_b"
)

// Device properties.
const (
	propMode          = "mode"
	propChildLock     = "child_lock"
	propFavoriteLevel = "favorite_level"
	propTempDec       = "temp_dec"
	propHumidity      = "humidity"
	propAQI           = "aqi"
	propBuzzer        = "buzzer"
	propLEDBrightness = "led_b"
)

// Operating modes reported by the mode property.
const (
	modeIdle     = "idle"
	modeAuto     = "auto"
	modeSilent   = "silent"
	modeFavorite = "favorite"
)

const (
	switchOn  = "on"
	switchOff = "off"
)

// LED levels of the led_b property.
const (
	ledBright = 0
	ledDim    = 1
	ledOff    = 2
)

const maxFavoriteLevel = 10

func onOff(on bool) string {
	if on {
		return switchOn
	}
	return switchOff
}

// favoriteLevelForSpeed maps a rotation speed (1-100) to the favorite level
// written to the device: floor(speed/10)+1, capped at 10.
func favoriteLevelForSpeed(speed int) int {
	level := speed / 10
	if level >= maxFavoriteLevel {
		return maxFavoriteLevel
	}
	return level + 1
}

// speedInLevelBand reports whether a cached rotation speed already falls in
// the band (level*10-10, level*10] of a favorite level.
func speedInLevelBand(speed, level int) bool {
	return speed <= level*10 && speed > (level-1)*10
}

// ledLevelForBrightness maps a brightness percentage to the led_b level:
// 0 is off, (0,50] dim, (50,100] bright.
func ledLevelForBrightness(brightness int) int {
	switch {
	case brightness <= 0:
		return ledOff
	case brightness <= 50:
		return ledDim
	default:
		return ledBright
	}
}

// ledLevelForOn picks the level used when the LED is switched on, from the
// cached brightness. Without a usable brightness the LED goes bright.
func ledLevelForOn(brightness int) int {
	if brightness > 0 && brightness <= 50 {
		return ledDim
	}
	return ledBright
}

// brightnessForLevel returns the brightness reported for a device level.
// A cached brightness inside the level's band is kept as-is so the slider
// position survives re-reads.
func brightnessForLevel(level, cached int) (int, bool) {
	switch level {
	case ledBright:
		if cached > 50 && cached <= 100 {
			return cached, true
		}
		return 100, true
	case ledDim:
		if cached > 0 && cached <= 50 {
			return cached, true
		}
		return 50, true
	case ledOff:
		return 0, true
	default:
		return 0, false
	}
}

// airQualityForAQI bands a raw aqi reading into the host air quality scale.
func airQualityForAQI(aqi float64) int {
	switch {
	case aqi <= 50:
		return accessory.AirQualityExcellent
	case aqi <= 100:
		return accessory.AirQualityGood
	case aqi <= 200:
		return accessory.AirQualityFair
	case aqi <= 300:
		return accessory.AirQualityInferior
	case aqi > 300:
		return accessory.AirQualityPoor
	default:
		// NaN
		return accessory.AirQualityUnknown
	}
}
