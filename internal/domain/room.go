package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomType string

const (
	RoomTypeDirect RoomType = "direct"
	RoomTypeGroup  RoomType = "group"
	RoomTypeClient RoomType = "client"
)

// Room is a messaging channel. Locked and archived are independent reversible
// flags; deleted is a terminal soft-delete kept for audit.
type Room struct {
	ID                 uuid.UUID  `json:"id"`
	Type               RoomType   `json:"type"`
	Name               string     `json:"name"`
	ClientID           *uuid.UUID `json:"client_id,omitempty"`
	IsLocked           bool       `json:"is_locked"`
	IsArchived         bool       `json:"is_archived"`
	IsDeleted          bool       `json:"is_deleted"`
	CreatedBy          uuid.UUID  `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
}

type ParticipantRole string

const (
	ParticipantRoleAdmin  ParticipantRole = "admin"
	ParticipantRoleMember ParticipantRole = "member"
)

// Participant is a staff member's membership record in a room. JoinedAt bounds
// which historical messages are visible to them.
type Participant struct {
	RoomID     uuid.UUID       `json:"room_id"`
	StaffID    uuid.UUID       `json:"staff_id"`
	Role       ParticipantRole `json:"role"`
	JoinedAt   time.Time       `json:"joined_at"`
	LastReadAt *time.Time      `json:"last_read_at,omitempty"`
	IsPinned   bool            `json:"is_pinned"`
	IsMuted    bool            `json:"is_muted"`
}
