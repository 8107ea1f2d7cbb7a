package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/nalvarez/diceydecisions/internal/apperror"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/repository"
)

// OutcomeKind classifies the state of a room's vote tallies.
type OutcomeKind string

const (
	// OutcomeUndecided means no votes have been cast yet. A max tally of
	// zero is not a tie; there is nothing to draw between.
	OutcomeUndecided OutcomeKind = "undecided"
	// OutcomeWinner means exactly one option holds the top tally.
	OutcomeWinner OutcomeKind = "winner"
	// OutcomeTie means two or more options share the top tally.
	OutcomeTie OutcomeKind = "tie"
)

// Outcome is the result of ranking a room's options by tally.
type Outcome struct {
	Kind   OutcomeKind
	Winner *model.Option  // set when Kind == OutcomeWinner
	Tied   []model.Option // set when Kind == OutcomeTie
}

// ComputeOutcome ranks options by vote tally, descending, and classifies
// the result as a clean winner, a tie among the top-tally options, or
// undecided when nobody has voted. It is a pure function; the single
// authority on tie detection, called only from the results and tiebreaker
// paths.
func ComputeOutcome(options []model.Option) Outcome {
	if len(options) == 0 {
		return Outcome{Kind: OutcomeUndecided}
	}

	ranked := make([]model.Option, len(options))
	copy(ranked, options)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Votes > ranked[j].Votes
	})

	top := ranked[0].Votes
	if top == 0 {
		return Outcome{Kind: OutcomeUndecided}
	}

	tied := []model.Option{}
	for _, o := range ranked {
		if o.Votes == top {
			tied = append(tied, o)
		}
	}

	if len(tied) == 1 {
		winner := tied[0]
		return Outcome{Kind: OutcomeWinner, Winner: &winner}
	}
	return Outcome{Kind: OutcomeTie, Tied: tied}
}

// VoteResults is the read model for a room's results view. Options are
// ranked by tally, descending.
type VoteResults struct {
	Room        *model.Room    `json:"room"`
	Options     []model.Option `json:"options"`
	Outcome     OutcomeKind    `json:"outcome"`
	Winner      *model.Option  `json:"winner,omitempty"`
	TiedOptions []model.Option `json:"tiedOptions,omitempty"`
}

// VotingService is the voting and resolution engine: it accepts votes,
// detects completion and ties, and drives rooms to their final decision.
type VotingService struct {
	rooms        repository.RoomRepository
	options      repository.OptionRepository
	participants repository.ParticipantRepository
	logger       *slog.Logger

	// drawIndex picks a uniform index in [0, n) for tiebreaker draws.
	// Injected so tests can pin the draw.
	drawIndex func(n int) int
}

func NewVotingService(
	rooms repository.RoomRepository,
	options repository.OptionRepository,
	participants repository.ParticipantRepository,
	logger *slog.Logger,
) *VotingService {
	return &VotingService{
		rooms:        rooms,
		options:      options,
		participants: participants,
		logger:       logger,
		drawIndex:    rand.IntN,
	}
}

// SubmitVote records one participant's vote for an option in the room with
// the given code.
//
// Rejections, in order: the room must be in voting status; the option must
// belong to the room; participants cannot vote for their own option; and
// each participant votes at most once. The final check-and-count is a single
// atomic unit in the repository, so concurrent duplicate submissions from
// one voter produce exactly one tally increment.
func (s *VotingService) SubmitVote(ctx context.Context, code, optionID, voterID string) error {
	room, err := s.rooms.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return err
	}
	if room.Status != model.StatusVoting {
		return apperror.InvalidState("voting is not active for this room")
	}

	option, err := s.options.GetOptionByID(ctx, optionID)
	if err != nil {
		return err
	}
	if option.RoomID != room.ID {
		return apperror.NotFound("option", optionID)
	}
	if option.CreatedBy == voterID {
		return apperror.Forbidden("you cannot vote for your own option")
	}

	if err := s.participants.CastVote(ctx, room.ID, voterID, optionID); err != nil {
		return err
	}

	s.logger.Info("vote submitted",
		slog.String("roomID", room.ID),
		slog.String("optionID", optionID),
	)

	return nil
}

// Results ranks a room's options and reports the outcome.
//
// A clean winner completes the room on the spot (idempotently; if a
// concurrent reader got there first, their completion stands). A tie leaves
// the room in voting and reports the tied set, awaiting a tiebreaker. No
// votes at all is reported as undecided.
func (s *VotingService) Results(ctx context.Context, code string) (*VoteResults, error) {
	room, err := s.rooms.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if room.Status == model.StatusLobby {
		return nil, apperror.InvalidState("voting has not started for this room")
	}

	options, err := s.options.ListOptions(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("service/voting: listing options: %w", err)
	}

	outcome := ComputeOutcome(options)

	if room.Status == model.StatusVoting && outcome.Kind == OutcomeWinner {
		err := s.rooms.CompleteRoom(ctx, room.ID, outcome.Winner.Text, "")
		switch {
		case err == nil:
			s.logger.Info("room completed with clean winner",
				slog.String("roomID", room.ID),
				slog.String("decision", outcome.Winner.Text),
			)
		case isInvalidState(err):
			// Someone else completed the room between our read and write;
			// their decision stands.
		default:
			return nil, fmt.Errorf("service/voting: completing room %s: %w", room.ID, err)
		}

		room, err = s.rooms.GetRoomByID(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("service/voting: reloading room: %w", err)
		}
	}

	return buildResults(room, options, outcome), nil
}

// ResolveTie completes a tied room via a tiebreaker draw. Creator-only.
//
// When winningOptionID is empty the engine draws one option uniformly at
// random from the tied set; dice, spinner and coin are cosmetic labels on
// the same draw. A caller may instead name the winning option, which must be
// one of the tied options.
func (s *VotingService) ResolveTie(ctx context.Context, code, winningOptionID string, kind model.Tiebreaker, requesterID string) (*model.Room, error) {
	if !model.ValidTiebreaker(kind) {
		return nil, apperror.ValidationFailed("tiebreaker", "tiebreaker must be dice, spinner or coin")
	}

	room, err := s.rooms.GetRoomByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if room.CreatorID != requesterID {
		return nil, apperror.Forbidden("only the room creator can run the tiebreaker")
	}
	if room.Status != model.StatusVoting {
		return nil, apperror.InvalidState("room is not awaiting a tiebreaker")
	}

	options, err := s.options.ListOptions(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("service/voting: listing options: %w", err)
	}

	outcome := ComputeOutcome(options)
	if outcome.Kind != OutcomeTie {
		return nil, apperror.InvalidState("there is no tie to resolve")
	}

	var winner model.Option
	if winningOptionID == "" {
		winner = outcome.Tied[s.drawIndex(len(outcome.Tied))]
	} else {
		found := false
		for _, o := range outcome.Tied {
			if o.ID == winningOptionID {
				winner = o
				found = true
				break
			}
		}
		if !found {
			for _, o := range options {
				if o.ID == winningOptionID {
					return nil, apperror.ValidationFailed("optionId", "option is not among the tied options")
				}
			}
			return nil, apperror.NotFound("option", winningOptionID)
		}
	}

	if err := s.rooms.CompleteRoom(ctx, room.ID, winner.Text, kind); err != nil {
		return nil, err
	}

	s.logger.Info("tie resolved",
		slog.String("roomID", room.ID),
		slog.String("tiebreaker", string(kind)),
		slog.String("decision", winner.Text),
	)

	room, err = s.rooms.GetRoomByID(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("service/voting: reloading room: %w", err)
	}
	return room, nil
}

func buildResults(room *model.Room, options []model.Option, outcome Outcome) *VoteResults {
	ranked := make([]model.Option, len(options))
	copy(ranked, options)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Votes > ranked[j].Votes
	})

	res := &VoteResults{
		Room:    room,
		Options: ranked,
	}

	if room.Status == model.StatusCompleted {
		// Report the recorded decision rather than re-deriving it.
		res.Outcome = OutcomeWinner
		for i := range ranked {
			if ranked[i].Text == room.FinalDecision {
				res.Winner = &ranked[i]
				break
			}
		}
		return res
	}

	res.Outcome = outcome.Kind
	res.Winner = outcome.Winner
	res.TiedOptions = outcome.Tied
	return res
}

func isInvalidState(err error) bool {
	return errors.Is(err, apperror.ErrInvalidState)
}
