package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

const MaxOptionLength = 200

// OptionService manages a room's candidate options. Options are mutable
// only while the room sits in the lobby; once voting starts the set is
// frozen.
type OptionService struct {
	rooms   repository.RoomRepository
	options repository.OptionRepository
	logger  *slog.Logger
}

func NewOptionService(
	rooms repository.RoomRepository,
	options repository.OptionRepository,
	logger *slog.Logger,
) *OptionService {
	return &OptionService{
		rooms:   rooms,
		options: options,
		logger:  logger,
	}
}

// Add proposes a new option in the room with the given code.
// Fails with InvalidState once the room has left the lobby.
func (s *OptionService) Add(ctx context.Context, code, text, userID string) (*model.Option, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "option text is required")
	}
	if len(text) > MaxOptionLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("option text must be %d characters or less", MaxOptionLength))
	}

	room, err := s.rooms.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if room.Status != model.StatusLobby {
		return nil, apperror.InvalidState("cannot add options after voting has started")
	}

	option := &model.Option{
		RoomID:    room.ID,
		Text:      text,
		CreatedBy: userID,
	}
	if err := s.options.CreateOption(ctx, option); err != nil {
		return nil, fmt.Errorf("service/option: creating option: %w", err)
	}

	s.logger.Info("option added",
		slog.String("roomID", room.ID),
		slog.String("optionID", option.ID),
	)

	return option, nil
}

// Remove deletes an option. Only the option's own creator may remove it,
// and only while the room is still in the lobby.
func (s *OptionService) Remove(ctx context.Context, optionID, userID string) error {
	option, err := s.options.GetOptionByID(ctx, optionID)
	if err != nil {
		return err
	}

	room, err := s.rooms.GetRoomByID(ctx, option.RoomID)
	if err != nil {
		return fmt.Errorf("service/option: loading room %s: %w", option.RoomID, err)
	}
	if room.Status != model.StatusLobby {
		return apperror.InvalidState("cannot remove options after voting has started")
	}
	if option.CreatedBy != userID {
		return apperror.Forbidden("only the option's creator can remove it")
	}

	if err := s.options.DeleteOption(ctx, optionID, userID); err != nil {
		return err
	}

	s.logger.Info("option removed",
		slog.String("roomID", room.ID),
		slog.String("optionID", optionID),
	)

	return nil
}

// List returns a room's options in the order they were proposed.
func (s *OptionService) List(ctx context.Context, roomID string) ([]model.Option, error) {
	return s.options.ListOptions(ctx, roomID)
}
