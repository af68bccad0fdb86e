// Package influxdb records Communities Core operational metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes, and health monitoring.
//
// # Measurements
//
//   - auth_gate: one point per request-filter decision, tagged stage and outcome
//   - security_tokens: one point per token lifecycle event, tagged token_type and event
//
// Neither carries identities or token values.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.RecordGateOutcome("authorization", "denied")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes on a disconnected or closed client are dropped.
package influxdb
