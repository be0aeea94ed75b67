package miio

import (
	"errors"
	"fmt"
)

// Domain errors for the miio bridge package.
var (
	// ErrEmptyResult is returned when a device call resolves without any
	// result elements.
	ErrEmptyResult = errors.New("miio: empty device result")

	// ErrUnexpectedValue is returned when a property value cannot be
	// interpreted (wrong type or outside the device vocabulary).
	ErrUnexpectedValue = errors.New("miio: unexpected property value")

	// ErrCallTimeout is returned when the device did not reply in time.
	ErrCallTimeout = errors.New("miio: device call timed out")

	// ErrRelayClosed is returned for calls issued after the relay was closed.
	ErrRelayClosed = errors.New("miio: relay closed")

	// ErrNoAccessories is returned when the configuration enables no accessory.
	ErrNoAccessories = errors.New("miio: no accessories enabled")
)

// TransportError reports a device call that failed before a result was
// received: publish failures, relay errors and timeouts.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("miio: %s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceRejection reports a device call that resolved but did not indicate
// success. Result holds the device payload verbatim.
type DeviceRejection struct {
	Method string
	Result []any
}

func (e *DeviceRejection) Error() string {
	if len(e.Result) == 0 {
		return fmt.Sprintf("miio: %s: %v", e.Method, ErrEmptyResult)
	}
	return fmt.Sprintf("miio: %s rejected: %v", e.Method, e.Result[0])
}

// Unwrap lets errors.Is(err, ErrEmptyResult) match rejections without payload.
func (e *DeviceRejection) Unwrap() error {
	if len(e.Result) == 0 {
		return ErrEmptyResult
	}
	return nil
}

// Payload returns the first result element, the value the device reported
// in place of the success token.
func (e *DeviceRejection) Payload() any {
	if len(e.Result) == 0 {
		return nil
	}
	return e.Result[0]
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is, or wraps, a DeviceRejection.
func IsRejection(err error) bool {
	var dr *DeviceRejection
	return errors.As(err, &dr)
}
