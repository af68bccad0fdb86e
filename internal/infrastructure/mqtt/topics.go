package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "communities"

// Topics builds Communities MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "communities"}
//	topics.TokenEvent("PASSWORD_RESET", "issued")
//	// Returns: "communities/auth/token/password_reset/issued"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: communities/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// TokenEvent returns the topic for a security token lifecycle event.
// The token type is lowercased.
//
// Example: communities/auth/token/email_confirm/consumed
func (t Topics) TokenEvent(tokenType, event string) string {
	return fmt.Sprintf("%s/auth/token/%s/%s", t.prefix(), strings.ToLower(tokenType), event)
}

// AllTokenEvents returns a wildcard matching every token event.
//
// Example: communities/auth/token/#
func (t Topics) AllTokenEvents() string {
	return t.prefix() + "/auth/token/#"
}
