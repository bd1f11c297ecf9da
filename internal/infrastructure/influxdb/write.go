package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// Measurement and tag names.
const (
	MeasurementDeviceState = "device_state"

	tagDeviceID = "device_id"
	tagClass    = "class"
	tagName     = "name"
	fieldRSSI   = "rssi"
)

// ObserveState writes one point per device snapshot. Devices without numeric
// readings still record their RSSI.
func (c *Client) ObserveState(d *device.Device) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statePoint(d))
	c.written.Add(1)
}

func statePoint(d *device.Device) *write.Point {
	fields := make(map[string]interface{})
	for k, v := range device.Readings(d.State) {
		fields[k] = v
	}
	fields[fieldRSSI] = d.RSSI

	tags := map[string]string{
		tagDeviceID: d.ID,
		tagClass:    d.Class.String(),
	}
	if d.Name != "" {
		tags[tagName] = d.Name
	}

	ts := d.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementDeviceState, tags, fields, ts)
}
