package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nalvarez/diceydecisions/internal/auth"
	"github.com/nalvarez/diceydecisions/internal/model"
	"github.com/nalvarez/diceydecisions/internal/service"
)

// VotingHandler exposes the voting and resolution engine: casting votes,
// reading results, and running the tiebreaker.
type VotingHandler struct {
	voting *service.VotingService
	logger *slog.Logger
}

func NewVotingHandler(voting *service.VotingService, logger *slog.Logger) *VotingHandler {
	return &VotingHandler{voting: voting, logger: logger}
}

type voteRequest struct {
	OptionID string `json:"optionId"`
}

type tiebreakerRequest struct {
	// OptionID optionally names the winning option; it must be one of the
	// tied options. Left empty, the server draws uniformly at random.
	OptionID   string `json:"optionId"`
	Tiebreaker string `json:"tiebreaker"`
}

// HandleVote casts the caller's vote for an option.
//
// HTTP: POST /api/rooms/{code}/vote
func (h *VotingHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	if err := h.voting.SubmitVote(r.Context(), r.PathValue("code"), req.OptionID, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleResults returns the ranked tallies and the outcome. Reading results
// with a clean winner completes the room; a tie is reported without
// completing it.
//
// HTTP: GET /api/rooms/{code}/results
func (h *VotingHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.voting.Results(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// HandleResolveTie runs the tiebreaker and completes the room. Creator-only.
//
// HTTP: POST /api/rooms/{code}/tiebreaker
func (h *VotingHandler) HandleResolveTie(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req tiebreakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	room, err := h.voting.ResolveTie(
		r.Context(),
		r.PathValue("code"),
		req.OptionID,
		model.Tiebreaker(req.Tiebreaker),
		userID,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}
