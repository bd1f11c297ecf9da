// Package mqtt provides MQTT client connectivity for eltako2mqtt.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Bridge availability: retained "online" on connect, "offline" on
//     graceful close and as the Last Will and Testament
//
// # Topic Layout
//
// See Topics for the namespace-based layout shared by the bridge and the
// discovery descriptors it publishes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := client.Topics().ParseDeviceCommand(topic)
//	        log.Printf("command for %s: %s", id, payload)
//	        return nil
//	    })
package mqtt
