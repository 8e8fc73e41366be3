package handlers

import (
	"net/http"
	"strconv"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/service"
)

type AttachmentHandler struct {
	retentionService *service.RetentionService
}

func NewAttachmentHandler(retentionService *service.RetentionService) *AttachmentHandler {
	return &AttachmentHandler{retentionService: retentionService}
}

// ExpiringSoon lists attachments whose retention window closes within the
// given number of days, so clients can warn users before files disappear.
func (h *AttachmentHandler) ExpiringSoon(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	attachments, err := h.retentionService.ExpiringSoon(r.Context(), days)
	if err != nil {
		writeServiceError(w, "list expiring attachments", err)
		return
	}
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	writeJSON(w, http.StatusOK, attachments)
}
