// Package mqtt wraps the paho MQTT client for the air purifier service.
//
// The broker carries two kinds of traffic for this service: the bridge
// message family (commands, acks, state, requests, health) exchanged with
// the host platform, and the RPC relay to the miio gateway that owns the
// device's UDP session.
//
// The client:
//   - reconnects automatically with backoff and restores tracked
//     subscriptions afterwards
//   - registers a Last Will so the broker announces an unexpected
//     disconnect on the service status topic
//   - recovers panics raised by message handlers and logs handler errors
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/miio/#", 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
