package accessory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Source identifies what produced a cached value change.
type Source string

const (
	// SourceGet is a value read from the device through a get handler.
	SourceGet Source = "get"

	// SourceSet is a value written by the host through a set handler.
	SourceSet Source = "set"

	// SourceUpdate is a value pushed by an integration with UpdateValue.
	SourceUpdate Source = "update"
)

// GetFunc reads the current value of a characteristic from the device.
type GetFunc func(ctx context.Context) (any, error)

// SetFunc writes a host-requested value to the device. The value has
// already been coerced to the characteristic format.
type SetFunc func(ctx context.Context, value any) error

// Characteristic is a host-managed cell holding the last known value of one
// capability facet.
type Characteristic struct {
	typ     CharacteristicType
	service *Service

	mu    sync.RWMutex
	value any
	getFn GetFunc
	setFn SetFunc
}

func newCharacteristic(t CharacteristicType, s *Service) *Characteristic {
	return &Characteristic{
		typ:     t,
		service: s,
		value:   t.zero(),
	}
}

// Type returns the characteristic type description.
func (c *Characteristic) Type() CharacteristicType {
	return c.typ
}

// Name returns the characteristic type name.
func (c *Characteristic) Name() string {
	return c.typ.Name
}

// Service returns the service holding the characteristic.
func (c *Characteristic) Service() *Service {
	return c.service
}

// OnGet registers the get handler.
func (c *Characteristic) OnGet(fn GetFunc) *Characteristic {
	c.mu.Lock()
	c.getFn = fn
	c.mu.Unlock()
	return c
}

// OnSet registers the set handler.
func (c *Characteristic) OnSet(fn SetFunc) *Characteristic {
	c.mu.Lock()
	c.setFn = fn
	c.mu.Unlock()
	return c
}

// Readable reports whether the host may read the characteristic.
func (c *Characteristic) Readable() bool {
	return c.typ.Has(PermRead)
}

// Writable reports whether the host may write the characteristic.
func (c *Characteristic) Writable() bool {
	return c.typ.Has(PermWrite)
}

// Get pulls the current value through the get handler and caches it.
// Without a handler the cached value is returned. Handler errors are
// returned unchanged and leave the cache untouched.
func (c *Characteristic) Get(ctx context.Context) (any, error) {
	c.mu.RLock()
	fn := c.getFn
	c.mu.RUnlock()

	if fn == nil {
		return c.Value(), nil
	}

	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	v, err = c.typ.Coerce(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.typ.Name, err)
	}
	c.update(v, SourceGet)
	return v, nil
}

// Set pushes a host value through the set handler. On success the value is
// cached, observers are notified, and any hooks the handler registered with
// AfterAck run in order.
//
// Returns:
//   - error: ErrReadOnly, ErrInvalidValue, or the handler's error unchanged
func (c *Characteristic) Set(ctx context.Context, value any) error {
	if !c.Writable() {
		return fmt.Errorf("%w: %s", ErrReadOnly, c.typ.Name)
	}
	v, err := c.typ.Coerce(value)
	if err != nil {
		return fmt.Errorf("%s: %w", c.typ.Name, err)
	}
	if err := c.typ.Validate(v); err != nil {
		return err
	}

	c.mu.RLock()
	fn := c.setFn
	c.mu.RUnlock()

	hooks := &afterAck{}
	if fn != nil {
		if err := fn(context.WithValue(ctx, afterAckKey{}, hooks), v); err != nil {
			return err
		}
	}
	c.update(v, SourceSet)
	hooks.run()
	return nil
}

// UpdateValue caches a value and notifies observers without a device round-trip.
// Values that cannot be coerced to the format are cached as given.
func (c *Characteristic) UpdateValue(value any) {
	if v, err := c.typ.Coerce(value); err == nil {
		value = v
	}
	c.update(value, SourceUpdate)
}

// Store overwrites the cached value without notifying observers.
func (c *Characteristic) Store(value any) {
	if v, err := c.typ.Coerce(value); err == nil {
		value = v
	}
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

// Value returns the cached value.
func (c *Characteristic) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Int returns the cached value as an int (0 if not numeric).
func (c *Characteristic) Int() int {
	f, err := toFloat(c.Value())
	if err != nil {
		return 0
	}
	return int(f)
}

// Float returns the cached value as a float64 (0 if not numeric).
func (c *Characteristic) Float() float64 {
	f, err := toFloat(c.Value())
	if err != nil {
		return 0
	}
	return f
}

// Bool returns the cached value as a bool (false if not convertible).
func (c *Characteristic) Bool() bool {
	b, err := toBool(c.Value())
	if err != nil {
		return false
	}
	return b
}

// update caches v and emits a change event when the value changed.
func (c *Characteristic) update(v any, src Source) {
	c.mu.Lock()
	old := c.value
	c.value = v
	c.mu.Unlock()

	if reflect.DeepEqual(old, v) {
		return
	}
	if c.service != nil {
		c.service.emit(c, v, src)
	}
}

type afterAckKey struct{}

type afterAck struct {
	mu  sync.Mutex
	fns []func()
}

func (a *afterAck) add(fn func()) {
	a.mu.Lock()
	a.fns = append(a.fns, fn)
	a.mu.Unlock()
}

func (a *afterAck) run() {
	a.mu.Lock()
	fns := a.fns
	a.fns = nil
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// AfterAck schedules fn to run once the Set call that produced ctx has been
// acknowledged and its value cached. Outside a Set call fn runs immediately.
func AfterAck(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(afterAckKey{}).(*afterAck); ok {
		hooks.add(fn)
		return
	}
	fn()
}
