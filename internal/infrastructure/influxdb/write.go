package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementGate   = "auth_gate"
	measurementTokens = "security_tokens"
)

// RecordGateOutcome counts one request-filter decision. It satisfies the
// auth package's GateRecorder.
//
// Tags: stage (authentication|authorization), outcome.
func (c *Client) RecordGateOutcome(stage, outcome string) {
	c.writePoint(gatePoint(stage, outcome, time.Now()))
}

// RecordTokenEvent counts one security token lifecycle event
// (issued, consumed, rejected).
func (c *Client) RecordTokenEvent(tokenType, event string) {
	c.writePoint(tokenPoint(tokenType, event, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("http_requests",
//	    map[string]string{"route": "/api/v1/auth/login"},
//	    map[string]interface{}{"duration_ms": 12.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func gatePoint(stage, outcome string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementGate,
		map[string]string{
			"stage":   stage,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}

func tokenPoint(tokenType, event string, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementTokens,
		map[string]string{
			"token_type": tokenType,
			"event":      event,
		},
		map[string]interface{}{
			"count": 1,
		},
		ts,
	)
}
