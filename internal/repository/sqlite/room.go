package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

// compile-time check that *DB implements repository.RoomRepository
var _ repository.RoomRepository = (*DB)(nil)

const roomColumns = `id, code, title, description, max_participants, creator_id,
	status, tiebreaker, final_decision, created_at, resolved_at`

// CreateRoom inserts a new room in lobby status, generating ID and
// CreatedAt. A code collision (UNIQUE on code) comes back as a Conflict so
// the service can draw a fresh code and retry.
func (db *DB) CreateRoom(ctx context.Context, room *model.Room) error {
	room.ID = xid.New().String()
	room.Status = model.StatusLobby
	room.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO rooms (id, code, title, description, max_participants, creator_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID,
		room.Code,
		room.Title,
		room.Description,
		room.MaxParticipants,
		room.CreatorID,
		room.Status,
		room.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("room code already in use")
		}
		return fmt.Errorf("sqlite: inserting room: %w", err)
	}

	return nil
}

// GetRoomByID retrieves a room by internal ID.
func (db *DB) GetRoomByID(ctx context.Context, id string) (*model.Room, error) {
	return db.getRoom(ctx, `WHERE id = ?`, id)
}

// GetRoomByCode retrieves a room by its public code.
func (db *DB) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	return db.getRoom(ctx, `WHERE code = ?`, code)
}

// ListRoomsForUser returns the rooms the user created or joined, newest
// first, the "past decisions" view.
func (db *DB) ListRoomsForUser(ctx context.Context, userID string) ([]model.Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE creator_id = ?
		    OR id IN (SELECT room_id FROM participants WHERE user_id = ?)
		 ORDER BY created_at DESC, id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing rooms for user %s: %w", userID, err)
	}
	defer rows.Close()

	rooms := []model.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rooms: %w", err)
	}

	return rooms, nil
}

// AdvanceToVoting flips a room from lobby to voting with a conditional
// update. The WHERE status = 'lobby' clause is the whole point: of N
// concurrent callers exactly one matches the row, and the rest are told the
// transition already happened instead of silently re-applying it.
func (db *DB) AdvanceToVoting(ctx context.Context, roomID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE rooms SET status = ? WHERE id = ? AND status = ?`,
		model.StatusVoting, roomID, model.StatusLobby,
	)
	if err != nil {
		return fmt.Errorf("sqlite: advancing room %s to voting: %w", roomID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: advancing room %s to voting: %w", roomID, err)
	}
	if affected == 0 {
		return db.explainFailedTransition(ctx, roomID, "voting has already started for this room")
	}

	return nil
}

// CompleteRoom flips a room from voting to completed, recording the final
// decision, tiebreaker kind and resolution time in the same conditional
// update; they are set exactly once, by whichever caller wins the race.
// Losers observe InvalidState ("already completed").
func (db *DB) CompleteRoom(ctx context.Context, roomID, finalDecision string, tiebreaker model.Tiebreaker) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE rooms
		 SET status = ?, final_decision = ?, tiebreaker = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		model.StatusCompleted, finalDecision, string(tiebreaker), time.Now().UTC(),
		roomID, model.StatusVoting,
	)
	if err != nil {
		return fmt.Errorf("sqlite: completing room %s: %w", roomID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: completing room %s: %w", roomID, err)
	}
	if affected == 0 {
		return db.explainFailedTransition(ctx, roomID, "room is already completed")
	}

	return nil
}

// explainFailedTransition distinguishes "room does not exist" from "room is
// in the wrong phase" after a conditional update matched zero rows.
func (db *DB) explainFailedTransition(ctx context.Context, roomID, invalidMsg string) error {
	var status string
	err := db.conn.QueryRowContext(ctx,
		`SELECT status FROM rooms WHERE id = ?`, roomID,
	).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("room", roomID)
		}
		return fmt.Errorf("sqlite: checking room %s status: %w", roomID, err)
	}
	if status == string(model.StatusLobby) {
		return apperror.InvalidState("voting has not started for this room")
	}
	return apperror.InvalidState(invalidMsg)
}

func (db *DB) getRoom(ctx context.Context, where string, arg any) (*model.Room, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms `+where, arg,
	)

	r, err := scanRoom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("room", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting room: %w", err)
	}

	return r, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*model.Room, error) {
	var (
		r          model.Room
		tiebreaker string
		resolvedAt sql.NullTime
	)

	err := s.Scan(
		&r.ID,
		&r.Code,
		&r.Title,
		&r.Description,
		&r.MaxParticipants,
		&r.CreatorID,
		&r.Status,
		&tiebreaker,
		&r.FinalDecision,
		&r.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Tiebreaker = model.Tiebreaker(tiebreaker)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		r.ResolvedAt = &t
	}

	return &r, nil
}
