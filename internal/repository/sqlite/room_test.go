package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
)

func TestCreateRoom(t *testing.T) {
	db := newTestDB(t)

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")

	assert.NotEmpty(t, room.ID)
	assert.Equal(t, model.StatusLobby, room.Status)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestCreateRoom_DuplicateCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	seedRoom(t, db, user.ID, "ABC123")

	dup := &model.Room{Code: "ABC123", Title: "Second", CreatorID: user.ID}
	err := db.CreateRoom(ctx, dup)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetRoomByCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	created := seedRoom(t, db, user.ID, "ABC123")

	got, err := db.GetRoomByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Where to eat", got.Title)
	assert.Nil(t, got.ResolvedAt)

	_, err = db.GetRoomByCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListRoomsForUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := seedUser(t, db, "Alice", "alice@example.com")
	bob := seedUser(t, db, "Bob", "bob@example.com")

	created := seedRoom(t, db, alice.ID, "AAAAAA")
	joined := seedRoom(t, db, bob.ID, "BBBBBB")
	seedRoom(t, db, bob.ID, "CCCCCC") // alice has no link to this one

	seedParticipant(t, db, joined.ID, alice.ID)

	rooms, err := db.ListRoomsForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	ids := []string{rooms[0].ID, rooms[1].ID}
	assert.Contains(t, ids, created.ID)
	assert.Contains(t, ids, joined.ID)
}

func TestAdvanceToVoting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")

	require.NoError(t, db.AdvanceToVoting(ctx, room.ID))

	got, err := db.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVoting, got.Status)

	// Second call finds the room already past the lobby.
	err = db.AdvanceToVoting(ctx, room.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestAdvanceToVoting_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.AdvanceToVoting(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAdvanceToVoting_ConcurrentCallsOneSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")

	const callers = 10
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.AdvanceToVoting(ctx, room.ID)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, apperror.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestCompleteRoom(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")
	require.NoError(t, db.AdvanceToVoting(ctx, room.ID))

	require.NoError(t, db.CompleteRoom(ctx, room.ID, "Pizza", model.TiebreakerDice))

	got, err := db.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Pizza", got.FinalDecision)
	assert.Equal(t, model.TiebreakerDice, got.Tiebreaker)
	require.NotNil(t, got.ResolvedAt)

	// The recorded decision is immutable: a second completion loses.
	err = db.CompleteRoom(ctx, room.ID, "Sushi", model.TiebreakerCoin)
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	got, err = db.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", got.FinalDecision)
}

func TestCompleteRoom_FromLobby(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")

	err := db.CompleteRoom(ctx, room.ID, "Pizza", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestCompleteRoom_ConcurrentCallsOneSuccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "Alice", "alice@example.com")
	room := seedRoom(t, db, user.ID, "ABC123")
	require.NoError(t, db.AdvanceToVoting(ctx, room.ID))

	const callers = 10
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.CompleteRoom(ctx, room.ID, "Pizza", "")
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}
