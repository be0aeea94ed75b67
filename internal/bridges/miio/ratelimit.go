package miio

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedDevice spaces calls to the wrapped device. It waits for a
// token; it never drops or retries a call.
type RateLimitedDevice struct {
	next    Device
	limiter *rate.Limiter
}

// NewRateLimitedDevice wraps next with a limiter allowing perSecond calls
// and bursts of burst. A non-positive rate returns next unchanged.
func NewRateLimitedDevice(next Device, perSecond float64, burst int) Device {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedDevice{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Call implements Device. A context that ends while waiting is reported
// as a transport failure.
func (d *RateLimitedDevice) Call(ctx context.Context, method string, params []any) ([]any, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	return d.next.Call(ctx, method, params)
}
