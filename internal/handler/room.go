package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nalvarez/diceydecisions/internal/auth"
	"github.com/nalvarez/diceydecisions/internal/service"
)

// RoomHandler manages room creation, joining, listing and the start-voting
// transition.
type RoomHandler struct {
	rooms  *service.RoomService
	logger *slog.Logger
}

func NewRoomHandler(rooms *service.RoomService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, logger: logger}
}

type createRoomRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"maxParticipants"`
}

type roomRef struct {
	RoomID   string `json:"roomId"`
	RoomCode string `json:"roomCode"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

// HandleCreate creates a new decision room with the caller as creator.
//
// HTTP: POST /api/rooms
func (h *RoomHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), userID, req.Title, req.Description, req.MaxParticipants)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, roomRef{RoomID: room.ID, RoomCode: room.Code})
}

// HandleList returns the rooms the caller created or joined, newest first.
//
// HTTP: GET /api/rooms
func (h *RoomHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	rooms, err := h.rooms.ListUserRooms(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rooms)
}

// HandleJoin adds the caller to the room with the posted code. Joining a
// room you're already in succeeds and returns the same room.
//
// HTTP: POST /api/rooms/join
func (h *RoomHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	room, err := h.rooms.JoinByCode(r.Context(), req.Code, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, roomRef{RoomID: room.ID, RoomCode: room.Code})
}

// HandleDetails returns the room, its options, its roster, and whether the
// caller is the creator.
//
// HTTP: GET /api/rooms/{code}
func (h *RoomHandler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	details, err := h.rooms.Details(r.Context(), r.PathValue("code"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// HandleStartVoting moves the room from lobby to voting. Creator-only;
// requires at least two options.
//
// HTTP: POST /api/rooms/{code}/start
func (h *RoomHandler) HandleStartVoting(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.rooms.StartVoting(r.Context(), r.PathValue("code"), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
