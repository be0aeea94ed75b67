// Package influxdb writes characteristic telemetry to InfluxDB v2.
//
// Numeric and boolean characteristic changes become points in the
// device_metrics measurement, tagged by accessory, service and
// characteristic. Writes go through the client's non-blocking batched
// write API; failures surface asynchronously through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	client.WriteCharacteristic("air-purifier", "air_purifier", "rotation_speed", 40, time.Now())
package influxdb
