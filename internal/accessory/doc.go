// Package accessory models the host side of a device integration: typed
// characteristic cells grouped into services, grouped into accessories.
//
// A Characteristic holds the last known value of one capability facet. The
// integration registers get and set handlers on it; the host invokes Get and
// Set, which run those handlers and cache the result. Handlers may push
// values into any other characteristic with UpdateValue, without a device
// round-trip.
//
// Types are described by a Registry that is passed explicitly to every
// constructor:
//
//	reg := accessory.DefaultRegistry()
//	acc, err := accessory.New(reg, "air-purifier", "Bedroom Purifier", info)
//	svc, err := reg.NewService(accessory.ServiceAirPurifier, "Bedroom Purifier")
//	acc.AddService(svc)
//
// Thread Safety: cached values are guarded per characteristic. Handlers are
// not serialised against each other; two overlapping Set calls on related
// characteristics may interleave their device calls.
package accessory
