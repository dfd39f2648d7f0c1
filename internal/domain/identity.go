package domain

import "time"

// Identity is a signed-in session as seen by the rest of the service.
type Identity struct {
	UID       string
	SessionID string
	Anonymous bool
	Admin     bool
	Email     string
	ExpiresAt time.Time
}

// AuthEvent is delivered to auth listeners on every sign-in and sign-out.
type AuthEvent struct {
	Identity *Identity
	SignedIn bool
}
