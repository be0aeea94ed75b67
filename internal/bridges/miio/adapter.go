package miio

import "context"

// adapter holds what every sub-adapter shares: the device handle and the
// logger. The device is never mutated after construction.
type adapter struct {
	device      Device
	logger      Logger
	accessoryID string
}

// command issues a device command and logs its outcome.
func (a *adapter) command(ctx context.Context, op, method string, params ...any) error {
	result, err := callOK(ctx, a.device, method, params...)
	if err != nil {
		a.logError(op+" failed", err, "method", method, "params", params)
		return err
	}
	a.logDebug(op, "method", method, "params", params, "result", result)
	return nil
}

// prop reads one device property and logs its outcome.
func (a *adapter) prop(ctx context.Context, op, name string) (any, error) {
	v, err := getProp(ctx, a.device, name)
	if err != nil {
		a.logError(op+" failed", err, "prop", name)
		return nil, err
	}
	a.logDebug(op, "prop", name, "value", v)
	return v, nil
}

// numberProp reads a numeric device property.
func (a *adapter) numberProp(ctx context.Context, op, name string) (float64, error) {
	v, err := a.prop(ctx, op, name)
	if err != nil {
		return 0, err
	}
	n, err := propNumber(v)
	if err != nil {
		a.logError(op+" failed", err, "prop", name)
		return 0, err
	}
	return n, nil
}

func (a *adapter) logDebug(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, append([]any{"accessory", a.accessoryID}, keysAndValues...)...)
	}
}

func (a *adapter) logError(msg string, err error, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Error(msg, append([]any{"accessory", a.accessoryID, "error", err}, keysAndValues...)...)
	}
}

// intValue reads a host value already coerced by the characteristic.
func intValue(v any) int {
	n, _ := propNumber(v)
	return int(n)
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}
