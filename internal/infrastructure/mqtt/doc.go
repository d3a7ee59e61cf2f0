// Package mqtt publishes Grapher Core events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Graph changes are published, not retained, on
// grapher/graphs/{owner}/{action}. The server's own status is retained on
// grapher/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.GraphEvent("1234", "created"), event)
package mqtt
