// Package miio exposes a Xiaomi air purifier as a set of accessories.
//
// Each accessory characteristic is bound to get and set handlers that
// translate between the host vocabulary (Active, TargetAirPurifierState,
// RotationSpeed, Brightness, ...) and the device property vocabulary
// (mode, favorite_level, led_b, aqi, ...). Handlers issue get_prop and
// set_* calls through a Device and keep sibling characteristics in line
// after writes that affect them.
//
// # Architecture
//
//	┌─────────────────┐   MQTT   ┌─────────────────┐   MQTT   ┌──────────────┐   UDP
//	│   Gray Logic    │◄────────►│   miio Bridge   │◄────────►│ miio gateway │◄──────► Purifier
//	│      Core       │          │   (this pkg)    │  (relay) │              │
//	└─────────────────┘          └─────────────────┘          └──────────────┘
//
// The gateway owns discovery and the encrypted session. RelayDevice only
// publishes calls and waits for the matching reply.
//
// # Errors
//
// A call that fails before a result arrives is a *TransportError. A result
// whose first element is not "ok" is a *DeviceRejection carrying the device
// payload. Both are returned to the caller unchanged; nothing is retried,
// and multi-call writes are not rolled back when a later call fails.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package miio
