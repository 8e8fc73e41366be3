package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/repository"
)

// Hub is the process-wide connection registry. Each staff member may hold
// several simultaneous connections (multi-device); the registry maps staff id
// to the set of live connections. All registry mutations happen inside the
// run loop, so no lock guards the clients map.
type Hub struct {
	// clients maps staffID → set of live connections.
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *fanout

	// typing state is ephemeral and in-memory only, keyed by room.
	typingMu sync.Mutex
	typing   map[uuid.UUID]map[uuid.UUID]struct{}

	participants repository.ParticipantRepository
}

// fanout targets the live connections of a recipient set. Sends to dead or
// slow connections are dropped, never awaited.
type fanout struct {
	recipients []uuid.UUID
	excludeID  *uuid.UUID
	data       []byte
}

func NewHub(participants repository.ParticipantRepository) *Hub {
	return &Hub{
		clients:      make(map[uuid.UUID]map[*Client]struct{}),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *fanout, 256),
		typing:       make(map[uuid.UUID]map[uuid.UUID]struct{}),
		participants: participants,
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			conns := h.clients[client.staffID]
			if conns == nil {
				conns = make(map[*Client]struct{})
				h.clients[client.staffID] = conns
			}
			conns[client] = struct{}{}
			log.Printf("ws hub: staff %s connected (%d connections)", client.staffID, len(conns))

			// Presence only fires on the zero→one transition.
			if len(conns) == 1 {
				h.broadcastPresence(client.staffID, "online")
			}

		case client := <-h.unregister:
			conns := h.clients[client.staffID]
			if _, ok := conns[client]; !ok {
				continue
			}
			delete(conns, client)
			close(client.send)
			close(client.done)
			log.Printf("ws hub: staff %s disconnected (%d connections)", client.staffID, len(conns))

			if len(conns) == 0 {
				delete(h.clients, client.staffID)
				h.broadcastPresence(client.staffID, "offline")
			}

		case msg := <-h.broadcast:
			for _, staffID := range msg.recipients {
				if msg.excludeID != nil && staffID == *msg.excludeID {
					continue
				}
				for client := range h.clients[staffID] {
					h.deliver(client, msg.data)
				}
			}
		}
	}
}

// deliver is best-effort: a full send buffer means the connection is slow or
// dead, and it is torn down rather than blocking the fan-out.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		conns := h.clients[client.staffID]
		delete(conns, client)
		close(client.send)
		close(client.done)
		if len(conns) == 0 {
			delete(h.clients, client.staffID)
			h.broadcastPresence(client.staffID, "offline")
		}
	}
}

// BroadcastToStaff queues an event for every live connection of the given
// staff members.
func (h *Hub) BroadcastToStaff(recipients []uuid.UUID, event *Event, excludeID *uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.broadcast <- &fanout{recipients: recipients, excludeID: excludeID, data: data}
}

// SetTyping records an ephemeral typing indicator and broadcasts it to the
// other participants' connections. Nothing is persisted.
func (h *Hub) SetTyping(ctx context.Context, roomID, staffID uuid.UUID, isTyping bool) {
	h.typingMu.Lock()
	room := h.typing[roomID]
	if isTyping {
		if room == nil {
			room = make(map[uuid.UUID]struct{})
			h.typing[roomID] = room
		}
		room[staffID] = struct{}{}
	} else {
		if _, ok := room[staffID]; !ok {
			h.typingMu.Unlock()
			return
		}
		delete(room, staffID)
		if len(room) == 0 {
			delete(h.typing, roomID)
		}
	}
	h.typingMu.Unlock()

	recipients, err := h.roomRecipients(ctx, roomID)
	if err != nil {
		log.Printf("ws hub: typing recipients: %v", err)
		return
	}
	evt, err := NewEvent(EventTypeTypingUpdate, &roomID, TypingPayload{StaffID: staffID, IsTyping: isTyping})
	if err != nil {
		return
	}
	h.BroadcastToStaff(recipients, evt, &staffID)
}

// ClearTyping drops the sender's typing indicator after they post a message,
// broadcasting the stop to the already-resolved recipient set.
func (h *Hub) ClearTyping(roomID, staffID uuid.UUID, recipients []uuid.UUID) {
	h.typingMu.Lock()
	room := h.typing[roomID]
	if _, ok := room[staffID]; !ok {
		h.typingMu.Unlock()
		return
	}
	delete(room, staffID)
	if len(room) == 0 {
		delete(h.typing, roomID)
	}
	h.typingMu.Unlock()

	evt, err := NewEvent(EventTypeTypingUpdate, &roomID, TypingPayload{StaffID: staffID, IsTyping: false})
	if err != nil {
		return
	}
	h.BroadcastToStaff(recipients, evt, &staffID)
}

func (h *Hub) roomRecipients(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	participants, err := h.participants.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.StaffID)
	}
	return ids, nil
}

// broadcastPresence notifies every connected client of an online/offline
// transition. Only called from the run loop.
func (h *Hub) broadcastPresence(staffID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, nil, PresencePayload{StaffID: staffID, Status: status})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for id, conns := range h.clients {
		if id == staffID {
			continue
		}
		for client := range conns {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}
