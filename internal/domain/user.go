package domain

import "time"

// User represents a field inspector identity. Identities are anonymous until
// linked to an account, which this service does not do.
type User struct {
	ID        string    `json:"id"`
	AppID     string    `json:"appId"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"createdAt"`
}
