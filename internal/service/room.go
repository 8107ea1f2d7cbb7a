package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500

	// MinOptionsToVote is how many options a room needs before the creator
	// can open voting.
	MinOptionsToVote = 2

	// codeAlphabet is the unambiguous alphabet room codes are drawn from:
	// 26 uppercase letters plus 10 digits, six independent uniform draws.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// codeRetries bounds how often CreateRoom redraws after a code
	// collision. At ~1/36^6 per draw the loop essentially never exhausts.
	codeRetries = 5
)

// RoomService handles room creation, lookup, membership and the
// lobby → voting transition.
type RoomService struct {
	rooms        repository.RoomRepository
	options      repository.OptionRepository
	participants repository.ParticipantRepository
	logger       *slog.Logger
}

func NewRoomService(
	rooms repository.RoomRepository,
	options repository.OptionRepository,
	participants repository.ParticipantRepository,
	logger *slog.Logger,
) *RoomService {
	return &RoomService{
		rooms:        rooms,
		options:      options,
		participants: participants,
		logger:       logger,
	}
}

// RoomDetails is the full read model for a room page: the room itself, its
// options, its roster, and whether the requesting user is the creator.
type RoomDetails struct {
	Room          *model.Room         `json:"room"`
	Options       []model.Option      `json:"options"`
	Participants  []model.Participant `json:"participants"`
	IsCreator     bool                `json:"isCreator"`
	CurrentUserID string              `json:"currentUserId"`
}

// CreateRoom creates a room in lobby status and joins the creator to it.
// The six-character code is redrawn on the rare collision with an existing
// room.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID, title, description string, maxParticipants int) (*model.Room, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "room title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("room title must be %d characters or less", MaxTitleLength))
	}
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if maxParticipants < 0 {
		return nil, apperror.ValidationFailed("maxParticipants", "participant cap cannot be negative")
	}

	room := &model.Room{
		Title:           title,
		Description:     description,
		MaxParticipants: maxParticipants,
		CreatorID:       creatorID,
	}

	var err error
	for range codeRetries {
		room.Code = generateRoomCode()
		err = s.rooms.CreateRoom(ctx, room)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/room: creating room: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("service/room: exhausted code retries: %w", err)
	}

	// The creator is a participant from the start, like everyone else who
	// joins later.
	if err := s.participants.JoinRoom(ctx, &model.Participant{
		RoomID: room.ID,
		UserID: creatorID,
	}); err != nil {
		return nil, fmt.Errorf("service/room: joining creator to room %s: %w", room.ID, err)
	}

	s.logger.Info("room created",
		slog.String("roomID", room.ID),
		slog.String("code", room.Code),
		slog.String("creatorID", creatorID),
	)

	return room, nil
}

// GetRoomByCode looks a room up by its public code, case-insensitively;
// codes are normalized to uppercase at this boundary.
func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "room code is required")
	}
	return s.rooms.GetRoomByCode(ctx, code)
}

// JoinByCode adds the user to the room with the given code. Joining twice is
// a no-op that returns the same room.
func (s *RoomService) JoinByCode(ctx context.Context, code, userID string) (*model.Room, error) {
	room, err := s.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.participants.JoinRoom(ctx, &model.Participant{
		RoomID: room.ID,
		UserID: userID,
	}); err != nil {
		return nil, fmt.Errorf("service/room: joining room %s: %w", room.ID, err)
	}

	s.logger.Info("user joined room",
		slog.String("roomID", room.ID),
		slog.String("userID", userID),
	)

	return room, nil
}

// Details returns the room, its options and roster, and whether userID is
// the creator.
func (s *RoomService) Details(ctx context.Context, code, userID string) (*RoomDetails, error) {
	room, err := s.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	options, err := s.options.ListOptions(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("service/room: listing options: %w", err)
	}

	participants, err := s.participants.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("service/room: listing participants: %w", err)
	}

	return &RoomDetails{
		Room:          room,
		Options:       options,
		Participants:  participants,
		IsCreator:     room.CreatorID == userID,
		CurrentUserID: userID,
	}, nil
}

// ListUserRooms returns the rooms the user created or joined, newest first.
func (s *RoomService) ListUserRooms(ctx context.Context, userID string) ([]model.Room, error) {
	rooms, err := s.rooms.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/room: listing rooms: %w", err)
	}
	return rooms, nil
}

// StartVoting moves a room from lobby to voting. Creator-only, and the room
// needs at least MinOptionsToVote options. A second call after a successful
// one fails with InvalidState rather than silently re-applying.
func (s *RoomService) StartVoting(ctx context.Context, code, requesterID string) error {
	room, err := s.GetRoomByCode(ctx, code)
	if err != nil {
		return err
	}

	if room.CreatorID != requesterID {
		return apperror.Forbidden("only the room creator can start voting")
	}

	count, err := s.options.CountOptions(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("service/room: counting options: %w", err)
	}
	if count < MinOptionsToVote {
		return apperror.ValidationFailed("options",
			fmt.Sprintf("at least %d options are required to start voting", MinOptionsToVote))
	}

	// The repository applies the transition conditionally, so concurrent
	// double-starts resolve to one success.
	if err := s.rooms.AdvanceToVoting(ctx, room.ID); err != nil {
		return err
	}

	s.logger.Info("voting started",
		slog.String("roomID", room.ID),
		slog.String("code", room.Code),
	)

	return nil
}

// NormalizeCode uppercases and trims a room code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func generateRoomCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for range codeLength {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}
