package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteChannelCurrent mirrors one classified current sample for an LED
// channel. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Tags carry the device id and channel; fields carry the raw measured
// current, the per-unit value used for classification, and the duty rate.
func (c *Client) WriteChannelCurrent(deviceID, channel string, ampere, perUnit float64, duty int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"channel_current",
		map[string]string{
			"device_id": deviceID,
			"channel":   channel,
		},
		map[string]interface{}{
			"ampere":   ampere,
			"per_unit": perUnit,
			"duty":     duty,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTemperature mirrors one controller temperature reading in °C.
func (c *Client) WriteTemperature(deviceID string, celsius float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"controller_temperature",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"celsius": celsius,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields,
// for measurements that do not fit the helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
