package domain

import "time"

// User is an account that can sign in. Users are never mutated after signup.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
