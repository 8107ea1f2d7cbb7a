package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nalvarez/diceydecisions/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func seedUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$fakehashfakehashfakehash",
	}
	require.NoError(t, db.CreateUser(context.Background(), user))
	return user
}

func seedRoom(t *testing.T, db *DB, creatorID, code string) *model.Room {
	t.Helper()

	room := &model.Room{
		Code:      code,
		Title:     "Where to eat",
		CreatorID: creatorID,
	}
	require.NoError(t, db.CreateRoom(context.Background(), room))
	return room
}

func seedOption(t *testing.T, db *DB, roomID, text, createdBy string) *model.Option {
	t.Helper()

	option := &model.Option{
		RoomID:    roomID,
		Text:      text,
		CreatedBy: createdBy,
	}
	require.NoError(t, db.CreateOption(context.Background(), option))
	return option
}

func seedParticipant(t *testing.T, db *DB, roomID, userID string) *model.Participant {
	t.Helper()

	p := &model.Participant{RoomID: roomID, UserID: userID}
	require.NoError(t, db.JoinRoom(context.Background(), p))
	return p
}
