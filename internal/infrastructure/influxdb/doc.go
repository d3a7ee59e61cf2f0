// Package influxdb writes Grapher Core request metrics to InfluxDB v2.
//
// Every served HTTP request becomes one point in the http_requests
// measurement, tagged by method, route pattern and status code, with the
// handling time in milliseconds. Writes are batched and non-blocking; write
// failures are delivered to the SetOnError callback.
//
// The integration is optional. Connect returns ErrDisabled when
// influxdb.enabled is false and the server runs without metrics.
package influxdb
