// Package mqtt publishes the graystore change feed to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Change events for committed writes
//
// # Topics
//
//	{prefix}/change/{database}/{table}   change events, not retained
//	{prefix}/status                      online/offline status, retained
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for brokers reached over a network
//   - Change events carry table names and row counts, never row content
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	manager.SetNotifier(mqtt.NewChangeFeed(client, client.Topics(), byte(cfg.MQTT.QoS)))
package mqtt
