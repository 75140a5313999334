package user

import "time"

// User is the authenticated account an application belongs to. Account
// management lives elsewhere; the core only resolves bearer tokens to IDs.
type User struct {
	ID        int64
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
}
