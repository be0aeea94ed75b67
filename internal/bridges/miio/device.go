package miio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// resultOK is the success token returned by command-type calls.
const resultOK = "ok"

// Device is the RPC contract of a miio appliance. Query calls (get_prop)
// return the requested property values positionally; command calls return
// "ok" as their first element on success.
//
// Implementations report transport failures as *TransportError. Callers
// receive them unchanged.
type Device interface {
	Call(ctx context.Context, method string, params []any) ([]any, error)
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(ctx context.Context, method string, params []any) ([]any, error)

// Call implements Device.
func (f DeviceFunc) Call(ctx context.Context, method string, params []any) ([]any, error) {
	return f(ctx, method, params)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// callOK issues a command and checks for the success token.
//
// Returns:
//   - error: the Call error unchanged, or *DeviceRejection
func callOK(ctx context.Context, d Device, method string, params ...any) ([]any, error) {
	result, err := d.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || result[0] != resultOK {
		return result, &DeviceRejection{Method: method, Result: result}
	}
	return result, nil
}

// getProp reads a single device property.
func getProp(ctx context.Context, d Device, prop string) (any, error) {
	result, err := d.Call(ctx, methodGetProp, []any{prop})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, &DeviceRejection{Method: methodGetProp, Result: result}
	}
	return result[0], nil
}

// propString interprets a property value as a device keyword.
func propString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// propNumber interprets a property value as a number. Device payloads
// decoded from JSON carry float64; numeric strings are tolerated.
func propNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnexpectedValue, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v (%T)", ErrUnexpectedValue, v, v)
	}
}
