// Package mqtt publishes Communities Core events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing security token lifecycle events
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	{prefix}/system/status                    retained online/offline status
//	{prefix}/auth/token/{type}/{event}        token issued/consumed/rejected
//
// Event payloads carry token and owner IDs only. The token value itself
// never leaves the process except in the email sent to its owner.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishTokenEvent("EMAIL_CONFIRM", "issued", tok.ID, tok.OwnerID)
package mqtt
