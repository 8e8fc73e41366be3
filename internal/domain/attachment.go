package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentLifetime is the fixed retention window stamped on every
// attachment at creation.
const AttachmentLifetime = 30 * 24 * time.Hour

// Attachment is created atomically with its parent message and destroyed only
// by the retention sweep. Once expired the storage key is cleared and the row
// survives as audit metadata.
type Attachment struct {
	ID            uuid.UUID `json:"id"`
	MessageID     uuid.UUID `json:"message_id"`
	Type          string    `json:"type"`
	StorageKey    *string   `json:"storage_key,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	MimeType      string    `json:"mime_type"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IsExpired     bool      `json:"is_expired"`
	ExpiredReason *string   `json:"expired_reason,omitempty"`
}

type ScheduledStatus string

const (
	ScheduledPending   ScheduledStatus = "pending"
	ScheduledSent      ScheduledStatus = "sent"
	ScheduledCancelled ScheduledStatus = "cancelled"
	ScheduledFailed    ScheduledStatus = "failed"
)

type ScheduledMessage struct {
	ID          uuid.UUID       `json:"id"`
	RoomID      uuid.UUID       `json:"room_id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	Content     string          `json:"content"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Status      ScheduledStatus `json:"status"`
	FailReason  *string         `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}
