package presence

import (
	"errors"
	"strconv"
	"strings"
)

// UserKey is the canonical registry key for a user identity. Build it with
// KeyFromID or ParseKey only; converting arbitrary strings skips
// normalization and can split one user across two entries.
type UserKey string

// ErrInvalidKey reports an identity that cannot be canonicalized.
var ErrInvalidKey = errors.New("presence: invalid user key")

// KeyFromID canonicalizes a numeric user id.
func KeyFromID(id int64) UserKey {
	return UserKey(strconv.FormatInt(id, 10))
}

// ParseKey canonicalizes a textual user id, so "7", " 7" and "007" all map
// to the same key as KeyFromID(7). Identities decoded from session tokens
// already carry a numeric id and go through KeyFromID instead.
func ParseKey(raw string) (UserKey, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "", ErrInvalidKey
	}
	return KeyFromID(id), nil
}

func (k UserKey) String() string {
	return string(k)
}
