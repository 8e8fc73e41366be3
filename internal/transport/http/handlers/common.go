package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/service"
	"github.com/dpavic/casechat/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// writeServiceError maps the service layer's failures to HTTP. Permission
// denials carry the engine's reason through to the client.
func writeServiceError(w http.ResponseWriter, action string, err error) {
	var perm *service.PermissionError
	switch {
	case errors.As(err, &perm):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{
				"code":           "FORBIDDEN",
				"message":        perm.Decision.Reason,
				"requires_admin": perm.Decision.RequiresAdmin,
			},
		})
	case errors.Is(err, service.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
	case errors.Is(err, service.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
	case errors.Is(err, service.ErrScheduledNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Scheduled message not found")
	case errors.Is(err, service.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Staff member not found")
	case errors.Is(err, authz.ErrMediaType):
		writeError(w, http.StatusBadRequest, "INVALID_MEDIA", err.Error())
	case errors.Is(err, authz.ErrMediaTooLarge):
		writeError(w, http.StatusBadRequest, "MEDIA_TOO_LARGE", err.Error())
	case errors.Is(err, service.ErrScheduleInPast):
		writeError(w, http.StatusBadRequest, "INVALID_SCHEDULE", "Scheduled time must be in the future")
	default:
		log.Printf("ERROR %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
