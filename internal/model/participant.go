package model

import "time"

// Participant is the join record linking a user to a room.
//
// At most one record exists per (room, user) pair; joining is idempotent.
// HasVoted flips false→true exactly once, atomically with the vote tally
// increment, so a participant can never be counted twice.
type Participant struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"roomId"`
	UserID   string    `json:"userId"`
	HasVoted bool      `json:"hasVoted"`
	JoinedAt time.Time `json:"joinedAt"`

	// Name is the participant's display name, denormalized from the user
	// record at read time. Falls back to "Unknown User" if the user record
	// is missing.
	Name string `json:"name,omitempty"`
}
