// Package repository defines the persistence interfaces the service layer
// depends on. The sqlite subpackage provides the real implementation; tests
// substitute in-memory fakes.
//
// Correctness contracts that implementations must honour (the service layer
// assumes them and callers may be spread across processes):
//
//   - Room status transitions are conditional updates: AdvanceToVoting only
//     succeeds while the room is in the lobby, CompleteRoom only while it is
//     voting. Concurrent duplicate calls yield exactly one success; the
//     losers get a typed InvalidState error.
//   - CastVote applies the participant's has-voted flip and the option tally
//     increment as one atomic unit, with a compare-and-set on the flag. N
//     concurrent casts by the same voter count exactly once.
//   - JoinRoom is idempotent per (room, user).
package repository

import (
	"context"

	"github.com/nalvarez/diceydecisions/internal/model"
)

type UserRepository interface {
	// CreateUser persists a new user, generating its ID and CreatedAt.
	// Returns a Conflict error if the email is already registered.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type RoomRepository interface {
	// CreateRoom persists a new room in lobby status, generating its ID and
	// CreatedAt. Returns a Conflict error if the room code is already taken,
	// so callers can redraw and retry.
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoomByID(ctx context.Context, id string) (*model.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*model.Room, error)
	// ListRoomsForUser returns rooms the user created or joined, newest first.
	ListRoomsForUser(ctx context.Context, userID string) ([]model.Room, error)
	// AdvanceToVoting moves a lobby room to voting. InvalidState if the room
	// already left the lobby.
	AdvanceToVoting(ctx context.Context, roomID string) error
	// CompleteRoom moves a voting room to completed, recording the final
	// decision, the tiebreaker kind (empty for a clean win) and the
	// resolution time in the same update. InvalidState if the room is not
	// voting, in particular if a concurrent caller completed it first.
	CompleteRoom(ctx context.Context, roomID, finalDecision string, tiebreaker model.Tiebreaker) error
}

type OptionRepository interface {
	// CreateOption persists a new option with a zero tally.
	CreateOption(ctx context.Context, option *model.Option) error
	GetOptionByID(ctx context.Context, id string) (*model.Option, error)
	// ListOptions returns a room's options in insertion order.
	ListOptions(ctx context.Context, roomID string) ([]model.Option, error)
	CountOptions(ctx context.Context, roomID string) (int, error)
	// DeleteOption removes an option, scoped to its creator. NotFound if no
	// such option exists for that creator.
	DeleteOption(ctx context.Context, optionID, createdBy string) error
}

type ParticipantRepository interface {
	// JoinRoom adds the user to the room's roster, or returns the existing
	// record untouched if they already joined. Returns a Conflict error if
	// the room has a participant cap and it is full.
	JoinRoom(ctx context.Context, participant *model.Participant) error
	GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error)
	// ListParticipants returns the roster in join order, each entry carrying
	// the user's display name.
	ListParticipants(ctx context.Context, roomID string) ([]model.Participant, error)
	CountParticipants(ctx context.Context, roomID string) (int, error)
	// CastVote marks the voter as having voted and increments the option's
	// tally, atomically. Conflict if the voter already voted; Forbidden if
	// they never joined the room; NotFound if the option is not in the room.
	CastVote(ctx context.Context, roomID, userID, optionID string) error
}
