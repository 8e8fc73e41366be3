package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeMessage = "message"
	EventTypeTyping  = "typing"
	EventTypeRead    = "read"
	EventTypeJoin    = "join"
	EventTypeLeave   = "leave"
	EventTypePing    = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessageNew     = "message.new"
	EventTypeMessageEdited  = "message.edited"
	EventTypeMessageDeleted = "message.deleted"
	EventTypeMessagePinned  = "message.pinned"
	EventTypeTypingUpdate   = "typing.update"
	EventTypeReadUpdate     = "read.update"
	EventTypeReaction       = "reaction"
	EventTypeRoomUpdated    = "room.updated"
	EventTypePresence       = "presence"
	EventTypePong           = "pong"
	EventTypeError          = "error"
)

// Event is the base envelope for all WebSocket frames.
type Event struct {
	Type      string          `json:"type"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type TypingInput struct {
	IsTyping bool `json:"is_typing"`
}

type ReadInput struct {
	MessageID uuid.UUID `json:"message_id"`
}

// --- Server → Client payloads ---

type MessagePayload struct {
	domain.Message
}

type MessageDeletedPayload struct {
	ID uuid.UUID `json:"id"`
}

type MessagePinnedPayload struct {
	domain.Message
	Pinned bool `json:"pinned"`
}

type TypingPayload struct {
	StaffID  uuid.UUID `json:"staff_id"`
	IsTyping bool      `json:"is_typing"`
}

type ReadPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	StaffID   uuid.UUID `json:"staff_id"`
}

type ReactionPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	Emoji     string    `json:"emoji"`
	Added     bool      `json:"added"`
}

type RoomPayload struct {
	domain.Room
}

type PresencePayload struct {
	StaffID uuid.UUID `json:"staff_id"`
	Status  string    `json:"status"` // "online" | "offline"
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, roomID *uuid.UUID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
