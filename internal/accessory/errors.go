package accessory

import "errors"

// Domain-specific errors for characteristic operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownType is returned when a characteristic or service type is not in the registry.
	ErrUnknownType = errors.New("accessory: unknown type")

	// ErrUnsupportedCharacteristic is returned when a service type does not allow a characteristic.
	ErrUnsupportedCharacteristic = errors.New("accessory: characteristic not supported by service")

	// ErrReadOnly is returned when Set is called on a characteristic without write permission.
	ErrReadOnly = errors.New("accessory: characteristic is read-only")

	// ErrInvalidValue is returned when a value cannot be converted to the
	// characteristic format or falls outside its valid range.
	ErrInvalidValue = errors.New("accessory: invalid value")

	// ErrNotFound is returned when a service or characteristic lookup fails.
	ErrNotFound = errors.New("accessory: not found")
)
