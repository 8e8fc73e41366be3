package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/internal/transport/http/middleware"
	"github.com/dpavic/casechat/pkg/validator"
)

type ScheduledHandler struct {
	schedulerService *service.SchedulerService
}

func NewScheduledHandler(schedulerService *service.SchedulerService) *ScheduledHandler {
	return &ScheduledHandler{schedulerService: schedulerService}
}

func (h *ScheduledHandler) Create(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var body struct {
		Content     string    `json:"content"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(body.Content, false); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	m, err := h.schedulerService.Create(r.Context(), staffID, roomID, body.Content, body.ScheduledAt)
	if err != nil {
		writeServiceError(w, "schedule message", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *ScheduledHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid scheduled message ID")
		return
	}

	if err := h.schedulerService.Cancel(r.Context(), staffID, id); err != nil {
		writeServiceError(w, "cancel scheduled message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
