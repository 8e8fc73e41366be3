package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/internal/transport/http/middleware"
	"github.com/dpavic/casechat/pkg/validator"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

func (h *RoomHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())

	var body struct {
		StaffID string `json:"staff_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	otherID, err := uuid.Parse(body.StaffID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid staff ID")
		return
	}
	if otherID == staffID {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Cannot open a direct chat with yourself")
		return
	}

	room, err := h.roomService.CreateDirect(r.Context(), staffID, otherID)
	if err != nil {
		writeServiceError(w, "create direct room", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())

	var body struct {
		Name      string   `json:"name"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateRoomName(body.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(body.MemberIDs))
	for _, raw := range body.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid member ID: "+raw)
			return
		}
		memberIDs = append(memberIDs, id)
	}

	room, err := h.roomService.CreateGroup(r.Context(), staffID, body.Name, memberIDs)
	if err != nil {
		writeServiceError(w, "create group room", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())

	rooms, err := h.roomService.ListForStaff(r.Context(), staffID)
	if err != nil {
		writeServiceError(w, "list rooms", err)
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	room, err := h.roomService.Get(r.Context(), staffID, roomID)
	if err != nil {
		writeServiceError(w, "get room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	participants, err := h.roomService.Participants(r.Context(), staffID, roomID)
	if err != nil {
		writeServiceError(w, "list participants", err)
		return
	}
	if participants == nil {
		participants = []domain.Participant{}
	}
	writeJSON(w, http.StatusOK, participants)
}

func (h *RoomHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var body struct {
		StaffID string `json:"staff_id"`
		Role    string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	targetID, err := uuid.Parse(body.StaffID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid staff ID")
		return
	}
	role := domain.ParticipantRole(body.Role)
	if role == "" {
		role = domain.ParticipantRoleMember
	}
	if role != domain.ParticipantRoleMember && role != domain.ParticipantRoleAdmin {
		writeError(w, http.StatusBadRequest, "INVALID_ROLE", "Role must be member or admin")
		return
	}

	if err := h.roomService.AddParticipant(r.Context(), staffID, roomID, targetID, role); err != nil {
		writeServiceError(w, "add participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}
	targetID, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid staff ID")
		return
	}

	if err := h.roomService.RemoveParticipant(r.Context(), staffID, roomID, targetID); err != nil {
		writeServiceError(w, "remove participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) UpdateParticipantRole(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}
	targetID, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid staff ID")
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	role := domain.ParticipantRole(body.Role)
	if role != domain.ParticipantRoleMember && role != domain.ParticipantRoleAdmin {
		writeError(w, http.StatusBadRequest, "INVALID_ROLE", "Role must be member or admin")
		return
	}

	if err := h.roomService.UpdateParticipantRole(r.Context(), staffID, roomID, targetID, role); err != nil {
		writeServiceError(w, "update participant role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *RoomHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *RoomHandler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	if err := h.roomService.SetLocked(r.Context(), staffID, roomID, locked); err != nil {
		writeServiceError(w, "set room locked", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *RoomHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *RoomHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	if err := h.roomService.SetArchived(r.Context(), staffID, roomID, archived); err != nil {
		writeServiceError(w, "set room archived", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	if err := h.roomService.SoftDelete(r.Context(), staffID, roomID); err != nil {
		writeServiceError(w, "delete room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := h.roomService.AuditLog(r.Context(), staffID, roomID, limit)
	if err != nil {
		writeServiceError(w, "room audit log", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
