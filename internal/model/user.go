// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account identified by a unique email address.
//
// PasswordHash holds the bcrypt hash of the user's password and is never
// serialized to JSON; API responses must not leak credential material, even
// hashed. The plaintext password exists only transiently inside the auth
// service during signup and login.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
