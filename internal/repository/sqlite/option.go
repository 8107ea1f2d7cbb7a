package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

// compile-time check that *DB implements repository.OptionRepository
var _ repository.OptionRepository = (*DB)(nil)

// CreateOption inserts a new option with a zero tally, generating its ID.
func (db *DB) CreateOption(ctx context.Context, option *model.Option) error {
	option.ID = xid.New().String()
	option.Votes = 0

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO options (id, room_id, text, created_by, votes)
		 VALUES (?, ?, ?, ?, 0)`,
		option.ID,
		option.RoomID,
		option.Text,
		option.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting option: %w", err)
	}

	return nil
}

// GetOptionByID retrieves an option by ID.
func (db *DB) GetOptionByID(ctx context.Context, id string) (*model.Option, error) {
	var o model.Option

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, room_id, text, created_by, votes FROM options WHERE id = ?`,
		id,
	).Scan(&o.ID, &o.RoomID, &o.Text, &o.CreatedBy, &o.Votes)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("option", id)
		}
		return nil, fmt.Errorf("sqlite: getting option %s: %w", id, err)
	}

	return &o, nil
}

// ListOptions returns a room's options in insertion order (rowid order).
func (db *DB) ListOptions(ctx context.Context, roomID string) ([]model.Option, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, room_id, text, created_by, votes
		 FROM options WHERE room_id = ? ORDER BY rowid`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing options for room %s: %w", roomID, err)
	}
	defer rows.Close()

	options := []model.Option{}
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.RoomID, &o.Text, &o.CreatedBy, &o.Votes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning option: %w", err)
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating options: %w", err)
	}

	return options, nil
}

// CountOptions returns how many options a room has. Used by the start-voting
// guard (at least two required).
func (db *DB) CountOptions(ctx context.Context, roomID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM options WHERE room_id = ?`, roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting options for room %s: %w", roomID, err)
	}
	return count, nil
}

// DeleteOption removes an option. The creator scope lives in the WHERE
// clause, so someone else's option id simply matches nothing.
func (db *DB) DeleteOption(ctx context.Context, optionID, createdBy string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM options WHERE id = ? AND created_by = ?`,
		optionID, createdBy,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting option %s: %w", optionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting option %s: %w", optionID, err)
	}
	if affected == 0 {
		return apperror.NotFound("option", optionID)
	}

	return nil
}
