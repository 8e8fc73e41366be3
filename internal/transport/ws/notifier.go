package ws

import (
	"log"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
)

// HubNotifier adapts the Hub to the service layer's notifier interface.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) MessageCreated(msg *domain.Message, recipients []uuid.UUID) {
	// Posting a message implies the sender stopped typing.
	n.hub.ClearTyping(msg.RoomID, msg.SenderID, recipients)
	n.send(EventTypeMessageNew, msg.RoomID, MessagePayload{Message: *msg}, recipients, nil)
}

func (n *HubNotifier) MessageEdited(msg *domain.Message, recipients []uuid.UUID) {
	n.send(EventTypeMessageEdited, msg.RoomID, MessagePayload{Message: *msg}, recipients, nil)
}

func (n *HubNotifier) MessageDeleted(roomID, messageID uuid.UUID, recipients []uuid.UUID) {
	n.send(EventTypeMessageDeleted, roomID, MessageDeletedPayload{ID: messageID}, recipients, nil)
}

func (n *HubNotifier) MessagePinned(msg *domain.Message, pinned bool, recipients []uuid.UUID) {
	n.send(EventTypeMessagePinned, msg.RoomID, MessagePinnedPayload{Message: *msg, Pinned: pinned}, recipients, nil)
}

func (n *HubNotifier) ReactionChanged(roomID, messageID, staffID uuid.UUID, emoji string, added bool, recipients []uuid.UUID) {
	payload := ReactionPayload{MessageID: messageID, StaffID: staffID, Emoji: emoji, Added: added}
	n.send(EventTypeReaction, roomID, payload, recipients, nil)
}

func (n *HubNotifier) ReadMarked(roomID, messageID, staffID uuid.UUID, recipients []uuid.UUID) {
	n.send(EventTypeReadUpdate, roomID, ReadPayload{MessageID: messageID, StaffID: staffID}, recipients, nil)
}

func (n *HubNotifier) RoomUpdated(room *domain.Room, recipients []uuid.UUID) {
	n.send(EventTypeRoomUpdated, room.ID, RoomPayload{Room: *room}, recipients, nil)
}

func (n *HubNotifier) send(eventType string, roomID uuid.UUID, payload any, recipients []uuid.UUID, excludeID *uuid.UUID) {
	evt, err := NewEvent(eventType, &roomID, payload)
	if err != nil {
		log.Printf("ws notifier: building %s event: %v", eventType, err)
		return
	}
	n.hub.BroadcastToStaff(recipients, evt, excludeID)
}
