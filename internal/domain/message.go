package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeMedia  MessageType = "media"
	MessageTypeSystem MessageType = "system"
)

// ForwardPreview is a frozen snapshot of the original message taken at forward
// time, so the forwarded copy stays legible if the source is later deleted.
type ForwardPreview struct {
	SenderID uuid.UUID   `json:"sender_id"`
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	SentAt   time.Time   `json:"sent_at"`
}

// Message content is plaintext in memory and ciphertext at rest when
// IsEncrypted is set. RoomID never changes; forwarding creates a new record.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	RoomID      uuid.UUID   `json:"room_id"`
	SenderID    uuid.UUID   `json:"sender_id"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	IsEncrypted bool        `json:"-"`
	KeyVersion  int16       `json:"-"`
	ReplyToID   *uuid.UUID  `json:"reply_to_id,omitempty"`

	EditedAt  *time.Time `json:"edited_at,omitempty"`
	EditedBy  *uuid.UUID `json:"edited_by,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`

	IsPinned bool       `json:"is_pinned"`
	PinnedAt *time.Time `json:"pinned_at,omitempty"`
	PinnedBy *uuid.UUID `json:"pinned_by,omitempty"`

	ForwardedFromMessageID *uuid.UUID      `json:"forwarded_from_message_id,omitempty"`
	ForwardedFromRoomID    *uuid.UUID      `json:"forwarded_from_room_id,omitempty"`
	ForwardPreview         *ForwardPreview `json:"forward_preview,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// Joined fields
	SenderName string `json:"sender_name,omitempty"`
}

// Reaction is unique per (message, staff, emoji).
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type ReceiptKind string

const (
	ReceiptRead      ReceiptKind = "read"
	ReceiptDelivered ReceiptKind = "delivered"
)

// Receipt is unique per (message, staff, kind).
type Receipt struct {
	MessageID uuid.UUID   `json:"message_id"`
	StaffID   uuid.UUID   `json:"staff_id"`
	Kind      ReceiptKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}
