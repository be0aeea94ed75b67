package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceMetrics is the measurement characteristic points go to.
const MeasurementDeviceMetrics = "device_metrics"

// WriteCharacteristic queues one characteristic value. Values that are not
// numeric or boolean (names, serial numbers) are skipped.
//
// Returns:
//   - bool: true if a point was queued
func (c *Client) WriteCharacteristic(accessoryID, service, characteristic string, value any, ts time.Time) bool {
	if !c.IsConnected() {
		return false
	}
	point, ok := characteristicPoint(accessoryID, service, characteristic, value, ts)
	if !ok {
		return false
	}
	c.writer.WritePoint(point)
	return true
}

// characteristicPoint builds the device_metrics point for a value. Booleans
// are stored as 0/1 so one field type serves every characteristic.
func characteristicPoint(accessoryID, service, characteristic string, value any, ts time.Time) (*write.Point, bool) {
	f, ok := numericValue(value)
	if !ok {
		return nil, false
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementDeviceMetrics,
		map[string]string{
			"accessory_id":   accessoryID,
			"service":        service,
			"characteristic": characteristic,
		},
		map[string]any{"value": f},
		ts,
	), true
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
