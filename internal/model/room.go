package model

import "time"

// RoomStatus is the lifecycle phase of a decision room.
//
// Transitions are monotonic and one-directional:
//
//	lobby → voting → completed
//
// No operation may move a room backwards, and only the room's creator may
// advance it. The repository enforces the transitions with conditional
// updates so that concurrent advancement attempts yield exactly one success.
type RoomStatus string

const (
	StatusLobby     RoomStatus = "lobby"
	StatusVoting    RoomStatus = "voting"
	StatusCompleted RoomStatus = "completed"
)

// Tiebreaker labels the ceremony used to resolve a tied vote. All three are
// cosmetic names for the same uniform-random draw over the tied options.
type Tiebreaker string

const (
	TiebreakerDice    Tiebreaker = "dice"
	TiebreakerSpinner Tiebreaker = "spinner"
	TiebreakerCoin    Tiebreaker = "coin"
)

// ValidTiebreaker reports whether t is one of the recognised tiebreaker kinds.
func ValidTiebreaker(t Tiebreaker) bool {
	switch t {
	case TiebreakerDice, TiebreakerSpinner, TiebreakerCoin:
		return true
	}
	return false
}

// Room is a single group-decision session.
//
// Code is the public six-character identifier participants use to join
// (uppercase letters and digits). FinalDecision, Tiebreaker and ResolvedAt
// are set exactly once, atomically with the transition to completed.
// MaxParticipants of zero means the room is uncapped.
type Room struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	MaxParticipants int        `json:"maxParticipants,omitempty"`
	CreatorID       string     `json:"creatorId"`
	Status          RoomStatus `json:"status"`
	Tiebreaker      Tiebreaker `json:"tiebreaker,omitempty"`
	FinalDecision   string     `json:"finalDecision,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}
