package accessory

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Format is the wire format of a characteristic value.
type Format string

const (
	FormatBool   Format = "bool"
	FormatUint8  Format = "uint8"
	FormatInt    Format = "int"
	FormatFloat  Format = "float"
	FormatString Format = "string"
)

// Perm is a characteristic permission.
type Perm string

const (
	PermRead   Perm = "pr"
	PermWrite  Perm = "pw"
	PermEvents Perm = "ev"
)

// Characteristic type names.
const (
	CharName                    = "name"
	CharManufacturer            = "manufacturer"
	CharModel                   = "model"
	CharSerialNumber            = "serial_number"
	CharActive                  = "active"
	CharCurrentAirPurifierState = "current_air_purifier_state"
	CharTargetAirPurifierState  = "target_air_purifier_state"
	CharRotationSpeed           = "rotation_speed"
	CharLockPhysicalControls    = "lock_physical_controls"
	CharOn                      = "on"
	CharBrightness              = "brightness"
	CharCurrentTemperature      = "current_temperature"
	CharCurrentRelativeHumidity = "current_relative_humidity"
	CharAirQuality              = "air_quality"
	CharPM25Density             = "pm2_5_density"
)

// Service type names.
const (
	ServiceAccessoryInformation = "accessory_information"
	ServiceAirPurifier          = "air_purifier"
	ServiceSwitch               = "switch"
	ServiceTemperatureSensor    = "temperature_sensor"
	ServiceHumiditySensor       = "humidity_sensor"
	ServiceLightbulb            = "lightbulb"
	ServiceAirQualitySensor     = "air_quality_sensor"
)

// Active values.
const (
	ActiveInactive = 0
	ActiveActive   = 1
)

// CurrentAirPurifierState values.
const (
	CurrentStateInactive     = 0
	CurrentStateIdle         = 1
	CurrentStatePurifyingAir = 2
)

// TargetAirPurifierState values.
const (
	TargetStateManual = 0
	TargetStateAuto   = 1
)

// LockPhysicalControls values.
const (
	ControlLockDisabled = 0
	ControlLockEnabled  = 1
)

// AirQuality values, ordered by severity.
const (
	AirQualityUnknown   = 0
	AirQualityExcellent = 1
	AirQualityGood      = 2
	AirQualityFair      = 3
	AirQualityInferior  = 4
	AirQualityPoor      = 5
)

// Range bounds a numeric characteristic.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// CharacteristicType describes one kind of characteristic.
type CharacteristicType struct {
	Name   string `json:"type"`
	UUID   string `json:"uuid"`
	Format Format `json:"format"`
	Perms  []Perm `json:"perms"`
	Range  *Range `json:"range,omitempty"`
	Valid  []int  `json:"valid_values,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// Has reports whether the type carries the given permission.
func (t CharacteristicType) Has(p Perm) bool {
	return slices.Contains(t.Perms, p)
}

// zero returns the initial cached value for the type.
func (t CharacteristicType) zero() any {
	switch t.Format {
	case FormatBool:
		return false
	case FormatUint8, FormatInt:
		return 0
	case FormatFloat:
		return 0.0
	default:
		return ""
	}
}

// Coerce converts v to the Go representation of the type's format:
// bool, int, float64 or string. JSON numbers, bools and numeric strings
// are accepted for every numeric or boolean format.
func (t CharacteristicType) Coerce(v any) (any, error) {
	switch t.Format {
	case FormatBool:
		return toBool(v)
	case FormatUint8, FormatInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return int(math.Round(f)), nil
	case FormatFloat:
		return toFloat(v)
	default:
		if v == nil {
			return "", nil
		}
		return fmt.Sprint(v), nil
	}
}

// Validate checks a coerced value against the type's range and valid values.
func (t CharacteristicType) Validate(v any) error {
	if t.Format == FormatBool || t.Format == FormatString {
		return nil
	}
	f, err := toFloat(v)
	if err != nil {
		return err
	}
	if t.Range != nil && (f < t.Range.Min || f > t.Range.Max) {
		return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidValue, t.Name, v, t.Range.Min, t.Range.Max)
	}
	if len(t.Valid) > 0 && !slices.Contains(t.Valid, int(f)) {
		return fmt.Errorf("%w: %s=%v not in %v", ErrInvalidValue, t.Name, v, t.Valid)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "on":
			return true, nil
		case "false", "0", "off":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, b)
	default:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

// ServiceType describes one kind of service and the characteristics it may hold.
type ServiceType struct {
	Name     string   `json:"type"`
	UUID     string   `json:"uuid"`
	Required []string `json:"required"`
	Optional []string `json:"optional,omitempty"`
}

func (s ServiceType) allows(char string) bool {
	return slices.Contains(s.Required, char) || slices.Contains(s.Optional, char)
}

// Registry is a catalogue of characteristic and service types.
type Registry struct {
	mu              sync.RWMutex
	characteristics map[string]CharacteristicType
	services        map[string]ServiceType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		characteristics: make(map[string]CharacteristicType),
		services:        make(map[string]ServiceType),
	}
}

// RegisterCharacteristic adds or replaces a characteristic type.
func (r *Registry) RegisterCharacteristic(t CharacteristicType) {
	r.mu.Lock()
	r.characteristics[t.Name] = t
	r.mu.Unlock()
}

// RegisterService adds or replaces a service type.
func (r *Registry) RegisterService(t ServiceType) {
	r.mu.Lock()
	r.services[t.Name] = t
	r.mu.Unlock()
}

// CharacteristicType looks up a characteristic type by name.
func (r *Registry) CharacteristicType(name string) (CharacteristicType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.characteristics[name]
	return t, ok
}

// ServiceType looks up a service type by name.
func (r *Registry) ServiceType(name string) (ServiceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.services[name]
	return t, ok
}

// NewService creates a service of the given type with all of its required
// characteristics attached.
//
// Parameters:
//   - typ: Service type name (e.g. ServiceAirPurifier)
//   - name: Display name shown to the user
//
// Returns:
//   - *Service: New service, not yet attached to an accessory
//   - error: ErrUnknownType if the service or one of its characteristics is not registered
func (r *Registry) NewService(typ, name string) (*Service, error) {
	st, ok := r.ServiceType(typ)
	if !ok {
		return nil, fmt.Errorf("%w: service %q", ErrUnknownType, typ)
	}
	s := &Service{
		typ:      st,
		name:     name,
		registry: r,
		byType:   make(map[string]*Characteristic),
	}
	for _, char := range st.Required {
		if _, err := s.AddCharacteristic(char); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var (
	readOnly   = []Perm{PermRead, PermEvents}
	readWrite  = []Perm{PermRead, PermWrite, PermEvents}
	staticInfo = []Perm{PermRead}
)

// DefaultRegistry returns a registry holding the characteristic and service
// types used by air purifier accessories.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, t := range []CharacteristicType{
		{Name: CharName, UUID: "23", Format: FormatString, Perms: staticInfo},
		{Name: CharManufacturer, UUID: "20", Format: FormatString, Perms: staticInfo},
		{Name: CharModel, UUID: "21", Format: FormatString, Perms: staticInfo},
		{Name: CharSerialNumber, UUID: "30", Format: FormatString, Perms: staticInfo},
		{Name: CharActive, UUID: "B0", Format: FormatUint8, Perms: readWrite,
			Range: &Range{Min: 0, Max: 1, Step: 1}, Valid: []int{ActiveInactive, ActiveActive}},
		{Name: CharCurrentAirPurifierState, UUID: "A9", Format: FormatUint8, Perms: readOnly,
			Range: &Range{Min: 0, Max: 2, Step: 1}},
		{Name: CharTargetAirPurifierState, UUID: "A8", Format: FormatUint8, Perms: readWrite,
			Range: &Range{Min: 0, Max: 1, Step: 1}, Valid: []int{TargetStateManual, TargetStateAuto}},
		{Name: CharRotationSpeed, UUID: "29", Format: FormatInt, Perms: readWrite,
			Range: &Range{Min: 0, Max: 100, Step: 10}, Unit: "percentage"},
		{Name: CharLockPhysicalControls, UUID: "A7", Format: FormatUint8, Perms: readWrite,
			Range: &Range{Min: 0, Max: 1, Step: 1}, Valid: []int{ControlLockDisabled, ControlLockEnabled}},
		{Name: CharOn, UUID: "25", Format: FormatBool, Perms: readWrite},
		{Name: CharBrightness, UUID: "8", Format: FormatInt, Perms: readWrite,
			Range: &Range{Min: 0, Max: 100, Step: 1}, Unit: "percentage"},
		{Name: CharCurrentTemperature, UUID: "11", Format: FormatFloat, Perms: readOnly,
			Range: &Range{Min: -270, Max: 100, Step: 0.1}, Unit: "celsius"},
		{Name: CharCurrentRelativeHumidity, UUID: "10", Format: FormatFloat, Perms: readOnly,
			Range: &Range{Min: 0, Max: 100, Step: 1}, Unit: "percentage"},
		{Name: CharAirQuality, UUID: "95", Format: FormatUint8, Perms: readOnly,
			Range: &Range{Min: 0, Max: 5, Step: 1}},
		{Name: CharPM25Density, UUID: "C6", Format: FormatFloat, Perms: readOnly,
			Range: &Range{Min: 0, Max: 1000, Step: 1}},
	} {
		r.RegisterCharacteristic(t)
	}

	for _, t := range []ServiceType{
		{Name: ServiceAccessoryInformation, UUID: "3E",
			Required: []string{CharName, CharManufacturer, CharModel, CharSerialNumber}},
		{Name: ServiceAirPurifier, UUID: "BB",
			Required: []string{CharActive, CharCurrentAirPurifierState, CharTargetAirPurifierState},
			Optional: []string{CharName, CharLockPhysicalControls, CharRotationSpeed}},
		{Name: ServiceSwitch, UUID: "49", Required: []string{CharOn}, Optional: []string{CharName}},
		{Name: ServiceTemperatureSensor, UUID: "8A",
			Required: []string{CharCurrentTemperature}, Optional: []string{CharName}},
		{Name: ServiceHumiditySensor, UUID: "82",
			Required: []string{CharCurrentRelativeHumidity}, Optional: []string{CharName}},
		{Name: ServiceLightbulb, UUID: "43",
			Required: []string{CharOn}, Optional: []string{CharName, CharBrightness}},
		{Name: ServiceAirQualitySensor, UUID: "8D",
			Required: []string{CharAirQuality}, Optional: []string{CharName, CharPM25Density}},
	} {
		r.RegisterService(t)
	}

	return r
}
