package models

import "time"

// Session binds a transport session key to the user identity it currently
// represents. A session is re-bound to whatever email was last presented,
// so the same key may serve different identities over its lifetime.
type Session struct {
	SessionKey   string
	UserEmail    string
	UserIDHash   string
	CreatedAt    time.Time
	LastActivity time.Time
}
