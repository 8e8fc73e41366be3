package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/internal/transport/http/middleware"
	"github.com/dpavic/casechat/pkg/validator"
)

// ClientHandler covers the operations that tie chat rooms to client records:
// provisioning the client room, re-syncing membership from assignments and
// cascading archive state.
type ClientHandler struct {
	roomService *service.RoomService
}

func NewClientHandler(roomService *service.RoomService) *ClientHandler {
	return &ClientHandler{roomService: roomService}
}

func (h *ClientHandler) EnsureRoom(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	clientID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateRoomName(body.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	room, err := h.roomService.EnsureClientRoom(r.Context(), staffID, clientID, body.Name)
	if err != nil {
		writeServiceError(w, "ensure client room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *ClientHandler) SyncRooms(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	clientID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	if err := h.roomService.SyncClientRooms(r.Context(), staffID, clientID); err != nil {
		writeServiceError(w, "sync client rooms", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *ClientHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *ClientHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	staffID := middleware.GetStaffID(r.Context())
	clientID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	if err := h.roomService.SetClientArchived(r.Context(), staffID, clientID, archived); err != nil {
		writeServiceError(w, "set client archived", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
