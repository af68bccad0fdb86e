package community

import "time"

// Community is a tenant: a building or estate managed as one unit.
type Community struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin grants a user administrative rights over one community.
type Admin struct {
	CommunityID string    `json:"community_id"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Amenity is a shared facility belonging to a community (gym, laundry, hall).
type Amenity struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"community_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}
