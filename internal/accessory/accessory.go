package accessory

import (
	"fmt"
	"sync"
	"time"
)

// Event describes a change of a cached characteristic value.
type Event struct {
	AccessoryID    string    `json:"accessory_id"`
	Service        string    `json:"service"`
	Characteristic string    `json:"characteristic"`
	Value          any       `json:"value"`
	Source         Source    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// Observer receives change events.
type Observer func(Event)

// Service groups the characteristics of one user-facing function.
type Service struct {
	typ      ServiceType
	name     string
	registry *Registry
	owner    *Accessory

	mu     sync.RWMutex
	chars  []*Characteristic
	byType map[string]*Characteristic
}

// Type returns the service type name.
func (s *Service) Type() string {
	return s.typ.Name
}

// Name returns the service display name.
func (s *Service) Name() string {
	return s.name
}

// AddCharacteristic attaches a characteristic of the given type, or returns
// the existing one if the service already holds it.
func (s *Service) AddCharacteristic(typ string) (*Characteristic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byType[typ]; ok {
		return c, nil
	}
	if !s.typ.allows(typ) {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedCharacteristic, typ, s.typ.Name)
	}
	ct, ok := s.registry.CharacteristicType(typ)
	if !ok {
		return nil, fmt.Errorf("%w: characteristic %q", ErrUnknownType, typ)
	}

	c := newCharacteristic(ct, s)
	s.chars = append(s.chars, c)
	s.byType[typ] = c
	return c, nil
}

// Characteristic returns the characteristic of the given type, or nil.
func (s *Service) Characteristic(typ string) *Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byType[typ]
}

// Characteristics returns the service characteristics in insertion order.
func (s *Service) Characteristics() []*Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Characteristic, len(s.chars))
	copy(out, s.chars)
	return out
}

func (s *Service) emit(c *Characteristic, v any, src Source) {
	s.mu.RLock()
	owner := s.owner
	s.mu.RUnlock()
	if owner == nil {
		return
	}
	owner.emit(Event{
		AccessoryID:    owner.id,
		Service:        s.typ.Name,
		Characteristic: c.typ.Name,
		Value:          v,
		Source:         src,
		Timestamp:      time.Now().UTC(),
	})
}

// Info holds the static identification exposed by every accessory.
type Info struct {
	Manufacturer string
	Model        string
	SerialNumber string
}

// Accessory is one host-visible device made of services.
type Accessory struct {
	id   string
	name string

	mu        sync.RWMutex
	services  []*Service
	observers []Observer
}

// New creates an accessory whose first service is AccessoryInformation.
//
// Parameters:
//   - reg: Type registry used to build the information service
//   - id: Stable accessory identifier (used in topics and URLs)
//   - name: Display name
//   - info: Manufacturer, model and serial number
//
// Returns:
//   - *Accessory: Accessory with the information service attached
//   - error: If the registry lacks the information service type
func New(reg *Registry, id, name string, info Info) (*Accessory, error) {
	a := &Accessory{id: id, name: name}

	infoSvc, err := reg.NewService(ServiceAccessoryInformation, name)
	if err != nil {
		return nil, err
	}
	infoSvc.Characteristic(CharName).Store(name)
	infoSvc.Characteristic(CharManufacturer).Store(info.Manufacturer)
	infoSvc.Characteristic(CharModel).Store(info.Model)
	infoSvc.Characteristic(CharSerialNumber).Store(info.SerialNumber)
	a.AddService(infoSvc)

	return a, nil
}

// ID returns the accessory identifier.
func (a *Accessory) ID() string {
	return a.id
}

// Name returns the accessory display name.
func (a *Accessory) Name() string {
	return a.name
}

// AddService attaches a service. Change events from its characteristics are
// delivered to the accessory observers.
func (a *Accessory) AddService(s *Service) {
	s.mu.Lock()
	s.owner = a
	s.mu.Unlock()

	a.mu.Lock()
	a.services = append(a.services, s)
	a.mu.Unlock()
}

// Services returns the attached services in insertion order.
func (a *Accessory) Services() []*Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Service, len(a.services))
	copy(out, a.services)
	return out
}

// Service returns the first service of the given type, or nil.
func (a *Accessory) Service(typ string) *Service {
	for _, s := range a.Services() {
		if s.Type() == typ {
			return s
		}
	}
	return nil
}

// Find locates a characteristic. An empty service matches the first
// characteristic of that type outside the information service.
func (a *Accessory) Find(service, char string) (*Characteristic, error) {
	for _, s := range a.Services() {
		if service == "" && s.Type() == ServiceAccessoryInformation {
			continue
		}
		if service != "" && s.Type() != service {
			continue
		}
		if c := s.Characteristic(char); c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s on %s", ErrNotFound, service, char, a.id)
}

// Observe registers fn for every change event of the accessory.
func (a *Accessory) Observe(fn Observer) {
	a.mu.Lock()
	a.observers = append(a.observers, fn)
	a.mu.Unlock()
}

func (a *Accessory) emit(e Event) {
	a.mu.RLock()
	observers := make([]Observer, len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	for _, fn := range observers {
		fn(e)
	}
}

// Snapshot returns the cached values keyed by service type, then
// characteristic type. The information service is omitted.
func (a *Accessory) Snapshot() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, s := range a.Services() {
		if s.Type() == ServiceAccessoryInformation {
			continue
		}
		values := make(map[string]any)
		for _, c := range s.Characteristics() {
			values[c.Name()] = c.Value()
		}
		out[s.Type()] = values
	}
	return out
}

// Description is a serialisable view of an accessory layout.
type Description struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Services []ServiceDescription `json:"services"`
}

// ServiceDescription is a serialisable view of a service.
type ServiceDescription struct {
	Type            string                      `json:"type"`
	Name            string                      `json:"name"`
	Characteristics []CharacteristicDescription `json:"characteristics"`
}

// CharacteristicDescription is a serialisable view of a characteristic.
type CharacteristicDescription struct {
	CharacteristicType
	Value any `json:"value"`
}

// Describe returns the accessory layout with cached values.
func (a *Accessory) Describe() Description {
	d := Description{ID: a.id, Name: a.name}
	for _, s := range a.Services() {
		sd := ServiceDescription{Type: s.Type(), Name: s.Name()}
		for _, c := range s.Characteristics() {
			sd.Characteristics = append(sd.Characteristics, CharacteristicDescription{
				CharacteristicType: c.Type(),
				Value:              c.Value(),
			})
		}
		d.Services = append(d.Services, sd)
	}
	return d
}
