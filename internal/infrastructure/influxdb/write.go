package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementHTTPRequests is the measurement written once per served request.
const MeasurementHTTPRequests = "http_requests"

// RecordRequest writes one request sample. route is a route pattern, never a
// raw path, so tag cardinality stays bounded.
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) RecordRequest(method, route string, status int, duration time.Duration) {
	c.WritePoint(MeasurementHTTPRequests,
		map[string]string{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Microseconds()) / 1000,
			"count":       1,
		},
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("sessions",
//	    map[string]string{"host": "grapher-01"},
//	    map[string]interface{}{"active": 12})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
