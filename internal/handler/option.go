package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nalvarez/diceydecisions/internal/auth"
	"github.com/nalvarez/diceydecisions/internal/service"
)

// OptionHandler manages a room's candidate options.
type OptionHandler struct {
	options *service.OptionService
	logger  *slog.Logger
}

func NewOptionHandler(options *service.OptionService, logger *slog.Logger) *OptionHandler {
	return &OptionHandler{options: options, logger: logger}
}

type addOptionRequest struct {
	Text string `json:"text"`
}

// HandleAdd proposes a new option in the room. Lobby phase only.
//
// HTTP: POST /api/rooms/{code}/options
func (h *OptionHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req addOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	option, err := h.options.Add(r.Context(), r.PathValue("code"), req.Text, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, option)
}

// HandleRemove deletes an option. Only its creator may, and only in the
// lobby phase.
//
// HTTP: DELETE /api/rooms/{code}/options/{optionID}
func (h *OptionHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.options.Remove(r.Context(), r.PathValue("optionID"), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
