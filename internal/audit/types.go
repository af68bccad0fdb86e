package audit

import "time"

// Recorded actions.
const (
	ActionRegister      = "register"
	ActionConfirmEmail  = "confirm_email"
	ActionLogin         = "login"
	ActionPasswordReset = "password_reset"
	ActionCreate        = "create"
	ActionGrantAdmin    = "grant_admin"
	ActionCreateAmenity = "create_amenity"
)

// Entity types.
const (
	EntityUser      = "user"
	EntityCommunity = "community"
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
