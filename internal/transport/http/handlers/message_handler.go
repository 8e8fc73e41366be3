package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/internal/transport/http/middleware"
	"github.com/dpavic/casechat/pkg/validator"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(input.Content, len(input.Attachments) > 0); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), staffID, roomID, input)
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var before *uuid.UUID
	if raw := r.URL.Query().Get("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid cursor")
			return
		}
		before = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.messageService.List(r.Context(), staffID, roomID, before, limit)
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(body.Content, false); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Edit(r.Context(), staffID, messageID, body.Content)
	if err != nil {
		writeServiceError(w, "edit message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.Delete(r.Context(), staffID, messageID); err != nil {
		writeServiceError(w, "delete message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Pin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, true)
}

func (h *MessageHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.setPinned(w, r, false)
}

func (h *MessageHandler) setPinned(w http.ResponseWriter, r *http.Request, pinned bool) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	msg, err := h.messageService.SetPinned(r.Context(), staffID, messageID, pinned)
	if err != nil {
		writeServiceError(w, "pin message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) ListPinned(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	pinned, err := h.messageService.ListPinned(r.Context(), staffID, roomID)
	if err != nil {
		writeServiceError(w, "list pinned messages", err)
		return
	}
	if pinned == nil {
		pinned = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, pinned)
}

func (h *MessageHandler) Forward(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var body struct {
		RoomID string `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	targetRoomID, err := uuid.Parse(body.RoomID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid target room ID")
		return
	}

	msg, err := h.messageService.Forward(r.Context(), staffID, messageID, targetRoomID)
	if err != nil {
		writeServiceError(w, "forward message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if body.Emoji == "" {
		writeError(w, http.StatusBadRequest, "INVALID_EMOJI", "Emoji is required")
		return
	}

	if err := h.messageService.React(r.Context(), staffID, messageID, body.Emoji, true); err != nil {
		writeServiceError(w, "add reaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}
	emoji := r.PathValue("emoji")
	if emoji == "" {
		writeError(w, http.StatusBadRequest, "INVALID_EMOJI", "Emoji is required")
		return
	}

	if err := h.messageService.React(r.Context(), staffID, messageID, emoji, false); err != nil {
		writeServiceError(w, "remove reaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	var body struct {
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	messageID, err := uuid.Parse(body.MessageID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.MarkRead(r.Context(), staffID, roomID, messageID); err != nil {
		writeServiceError(w, "mark read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messageService.MarkDelivered(r.Context(), staffID, messageID); err != nil {
		writeServiceError(w, "mark delivered", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	staffID := middleware.GetStaffID(r.Context())
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return
	}

	q := r.URL.Query()
	filter := repository.MessageFilter{Query: q.Get("q")}
	if raw := q.Get("sender_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid sender ID")
			return
		}
		filter.SenderID = &id
	}
	if raw := q.Get("type"); raw != "" {
		t := domain.MessageType(raw)
		filter.Type = &t
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TIME", "since must be RFC3339")
			return
		}
		filter.Since = &t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TIME", "until must be RFC3339")
			return
		}
		filter.Until = &t
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	results, err := h.messageService.Search(r.Context(), staffID, roomID, filter)
	if err != nil {
		writeServiceError(w, "search messages", err)
		return
	}
	if results == nil {
		results = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, results)
}
