// Package model defines the data structures shared by every layer of the application.
package model

// User is a registered account.
//
// PasswordHash is tagged `json:"-"` so the hash can never leak into an API
// response, no matter which handler serializes the struct.
//
// CreatedAt is milliseconds since the Unix epoch. The wire format and both
// database schemas use the same unit, so no conversion happens anywhere.
type User struct {
	ID           string `json:"id"        db:"id"`
	Username     string `json:"username"  db:"username"` // unique, case-sensitive, immutable
	Email        string `json:"email"     db:"email"`    // free-form, never verified
	PasswordHash string `json:"-"         db:"password_hash"`
	CreatedAt    int64  `json:"createdAt" db:"created_at"`
}

// Identity is the claim carried by a session token: who the caller is.
// It is all the auth middleware knows about a request; anything else about
// the user has to be loaded from the Credential Store.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
