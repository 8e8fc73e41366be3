package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/domain"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrScheduledNotFound = errors.New("scheduled message not found")
	ErrStaffNotFound     = errors.New("staff member not found")
)

// PermissionError carries the engine's denial so callers can surface the
// reason and flags without re-deriving policy.
type PermissionError struct {
	Decision authz.Decision
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Decision.Reason
}

func denied(d authz.Decision) error {
	return &PermissionError{Decision: d}
}

// Notifier broadcasts real-time events to connected clients. Services resolve
// the recipient set (current room participants) before notifying; the
// transport only fans out. All methods are fire-and-forget.
type Notifier interface {
	MessageCreated(msg *domain.Message, recipients []uuid.UUID)
	MessageEdited(msg *domain.Message, recipients []uuid.UUID)
	MessageDeleted(roomID, messageID uuid.UUID, recipients []uuid.UUID)
	MessagePinned(msg *domain.Message, pinned bool, recipients []uuid.UUID)
	ReactionChanged(roomID, messageID, staffID uuid.UUID, emoji string, added bool, recipients []uuid.UUID)
	ReadMarked(roomID, messageID, staffID uuid.UUID, recipients []uuid.UUID)
	RoomUpdated(room *domain.Room, recipients []uuid.UUID)
}
