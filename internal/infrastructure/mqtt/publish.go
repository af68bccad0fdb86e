package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Use retained only for state topics such as system status, never for events.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// TokenEvent is the payload published for a security token lifecycle change.
// It never carries the token value.
type TokenEvent struct {
	TokenID   string `json:"token_id"`
	OwnerID   string `json:"owner_id"`
	TokenType string `json:"token_type"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// NewTokenEvent builds a TokenEvent stamped with the current UTC time.
func NewTokenEvent(tokenType, event, tokenID, ownerID string) TokenEvent {
	return TokenEvent{
		TokenID:   tokenID,
		OwnerID:   ownerID,
		TokenType: tokenType,
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// PublishTokenEvent publishes a non-retained token event with the configured QoS.
func (c *Client) PublishTokenEvent(tokenType, event, tokenID, ownerID string) error {
	payload, err := json.Marshal(NewTokenEvent(tokenType, event, tokenID, ownerID))
	if err != nil {
		return fmt.Errorf("%w: encoding token event: %w", ErrPublishFailed, err)
	}
	return c.Publish(c.topics.TokenEvent(tokenType, event), payload, byte(c.cfg.QoS), false)
}
