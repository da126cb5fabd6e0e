package domain

import "time"

// Identity is the user identity carried inside a session token.
type Identity struct {
	UserID   int64
	Username string
}

// IssuedToken is a signed session token together with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}
