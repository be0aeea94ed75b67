// Package api serves the local HTTP API of the air purifier service.
//
// Routes live under /api/v1: health and Prometheus metrics are open, the
// accessory, characteristic, history and WebSocket routes require an HS256
// bearer token signed with security.jwt.secret. Characteristic reads and
// writes go through the same Get/Set path the host platform uses, so a PUT
// here issues the same device commands as an MQTT set command.
//
// The WebSocket hub pushes a characteristic.changed event for every cached
// value change once the client has subscribed to that channel.
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil { ... }
//	platform.Observe(server.PublishEvent)
//	defer server.Close()
package api
