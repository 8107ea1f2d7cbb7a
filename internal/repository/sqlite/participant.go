package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

// compile-time check that *DB implements repository.ParticipantRepository
var _ repository.ParticipantRepository = (*DB)(nil)

// JoinRoom adds the user to the room's roster. Joining is idempotent: if a
// record for (room, user) exists it is returned unchanged. The participant
// cap, when the room has one, is checked inside the INSERT itself so two
// racing joins cannot both squeeze into the last slot.
func (db *DB) JoinRoom(ctx context.Context, p *model.Participant) error {
	id := xid.New().String()
	now := time.Now().UTC()

	// The INSERT only fires when the user isn't on the roster yet and the
	// room is uncapped or below its cap. Re-joins fall through to the
	// SELECT below; a full room leaves nothing to select and maps to
	// Conflict.
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO participants (id, room_id, user_id, has_voted, joined_at)
		 SELECT ?, ?, ?, 0, ?
		 WHERE NOT EXISTS (
		         SELECT 1 FROM participants WHERE room_id = ? AND user_id = ?
		       )
		   AND (
		         (SELECT max_participants FROM rooms WHERE id = ?) = 0
		      OR (SELECT COUNT(*) FROM participants WHERE room_id = ?) <
		         (SELECT max_participants FROM rooms WHERE id = ?)
		       )`,
		id, p.RoomID, p.UserID, now,
		p.RoomID, p.UserID,
		p.RoomID, p.RoomID, p.RoomID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with an identical join; the existing record wins.
		} else {
			return fmt.Errorf("sqlite: joining room %s: %w", p.RoomID, err)
		}
	}

	existing, err := db.GetParticipant(ctx, p.RoomID, p.UserID)
	if err == nil {
		*p = *existing
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	// Nothing inserted and nothing on the roster: the room is either full
	// or missing.
	var exists int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE id = ?`, p.RoomID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: checking room %s: %w", p.RoomID, err)
	}
	if exists == 0 {
		return apperror.NotFound("room", p.RoomID)
	}
	return apperror.Conflict("room is full")
}

// GetParticipant retrieves the join record for (room, user).
func (db *DB) GetParticipant(ctx context.Context, roomID, userID string) (*model.Participant, error) {
	var (
		p        model.Participant
		hasVoted int
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, room_id, user_id, has_voted, joined_at
		 FROM participants WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	).Scan(&p.ID, &p.RoomID, &p.UserID, &hasVoted, &p.JoinedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("participant", userID)
		}
		return nil, fmt.Errorf("sqlite: getting participant: %w", err)
	}

	p.HasVoted = hasVoted != 0
	return &p, nil
}

// ListParticipants returns the roster in join order, each entry enriched
// with the user's display name. A missing user record yields the
// "Unknown User" placeholder instead of failing the whole read.
func (db *DB) ListParticipants(ctx context.Context, roomID string) ([]model.Participant, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT p.id, p.room_id, p.user_id, p.has_voted, p.joined_at,
		        COALESCE(u.name, 'Unknown User')
		 FROM participants p
		 LEFT JOIN users u ON u.id = p.user_id
		 WHERE p.room_id = ?
		 ORDER BY p.joined_at, p.rowid`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing participants for room %s: %w", roomID, err)
	}
	defer rows.Close()

	participants := []model.Participant{}
	for rows.Next() {
		var (
			p        model.Participant
			hasVoted int
		)
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &hasVoted, &p.JoinedAt, &p.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning participant: %w", err)
		}
		p.HasVoted = hasVoted != 0
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating participants: %w", err)
	}

	return participants, nil
}

// CountParticipants returns the roster size for a room.
func (db *DB) CountParticipants(ctx context.Context, roomID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE room_id = ?`, roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting participants for room %s: %w", roomID, err)
	}
	return count, nil
}

// CastVote records one vote: the voter's has_voted flag flips and the target
// option's tally increments inside a single transaction.
//
// The flag flip is a compare-and-set (UPDATE ... WHERE has_voted = 0), so
// of N concurrent casts by the same voter exactly one matches the row and
// increments the tally; the rest roll back with a Conflict. A crash between
// the two statements rolls back too: there is no observable "voted but not
// counted" state.
func (db *DB) CastVote(ctx context.Context, roomID, userID, optionID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning vote transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE participants SET has_voted = 1
		 WHERE room_id = ? AND user_id = ? AND has_voted = 0`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking participant voted: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: marking participant voted: %w", err)
	}
	if affected == 0 {
		// Zero rows means either the voter already voted or they never
		// joined. Tell them apart for a precise error.
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM participants WHERE room_id = ? AND user_id = ?`,
			roomID, userID,
		).Scan(&n); err != nil {
			return fmt.Errorf("sqlite: checking participant: %w", err)
		}
		if n == 0 {
			return apperror.Forbidden("you must join the room before voting")
		}
		return apperror.Conflict("you have already voted in this room")
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE options SET votes = votes + 1 WHERE id = ? AND room_id = ?`,
		optionID, roomID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing vote tally: %w", err)
	}

	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: incrementing vote tally: %w", err)
	}
	if affected == 0 {
		// Option missing or belongs to another room; the deferred rollback
		// undoes the has_voted flip.
		return apperror.NotFound("option", optionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing vote: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
