package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBufSize    = 256
)

// Client represents a single WebSocket connection. One staff member may have
// several.
type Client struct {
	hub     *Hub
	chat    *service.MessageService
	conn    *websocket.Conn
	staffID uuid.UUID

	// activeRooms tracks which rooms the client has open on screen.
	activeRooms map[uuid.UUID]struct{}
	mu          sync.Mutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, chat *service.MessageService, conn *websocket.Conn, staffID uuid.UUID) *Client {
	return &Client{
		hub:         hub,
		chat:        chat,
		conn:        conn,
		staffID:     staffID,
		activeRooms: make(map[uuid.UUID]struct{}),
		send:        make(chan []byte, sendBufSize),
		done:        make(chan struct{}),
	}
}

// ReadPump reads events from the WebSocket and handles them. Each event is
// handled to completion before the next read; events from different
// connections run concurrently.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: staff %s disconnected", c.staffID)
			} else {
				log.Printf("ws: read error from %s: %v", c.staffID, err)
			}
			return
		}
		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued frames and pings on a fixed interval. A ping that
// gets no pong before the deadline tears the connection down, which removes
// it from the registry via ReadPump's unregister.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.staffID, err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping failed for %s: %v", c.staffID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeMessage:
		c.handleMessage(ctx, event)

	case EventTypeTyping:
		if event.RoomID == nil {
			c.sendError("INVALID_PAYLOAD", "room_id required for typing events")
			return
		}
		var input TypingInput
		if err := json.Unmarshal(event.Payload, &input); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid typing payload")
			return
		}
		c.hub.SetTyping(ctx, *event.RoomID, c.staffID, input.IsTyping)

	case EventTypeRead:
		c.handleRead(ctx, event)

	case EventTypeJoin:
		if event.RoomID == nil {
			c.sendError("INVALID_PAYLOAD", "room_id required for join")
			return
		}
		c.mu.Lock()
		c.activeRooms[*event.RoomID] = struct{}{}
		c.mu.Unlock()

	case EventTypeLeave:
		if event.RoomID == nil {
			c.sendError("INVALID_PAYLOAD", "room_id required for leave")
			return
		}
		c.mu.Lock()
		delete(c.activeRooms, *event.RoomID)
		c.mu.Unlock()
		c.hub.SetTyping(ctx, *event.RoomID, c.staffID, false)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) handleMessage(ctx context.Context, event *Event) {
	if event.RoomID == nil {
		c.sendError("INVALID_PAYLOAD", "room_id required for message events")
		return
	}
	var input service.SendMessageInput
	if err := json.Unmarshal(event.Payload, &input); err != nil {
		c.sendError("INVALID_PAYLOAD", "invalid message payload")
		return
	}
	if input.Content == "" && len(input.Attachments) == 0 {
		c.sendError("INVALID_PAYLOAD", "message content is required")
		return
	}

	// The service runs the permission check, encrypts, persists and fans the
	// message out; this connection only reports failures back to its sender.
	if _, err := c.chat.Send(ctx, c.staffID, *event.RoomID, input); err != nil {
		c.sendServiceError(err)
	}
}

func (c *Client) handleRead(ctx context.Context, event *Event) {
	if event.RoomID == nil {
		c.sendError("INVALID_PAYLOAD", "room_id required for read events")
		return
	}
	var input ReadInput
	if err := json.Unmarshal(event.Payload, &input); err != nil || input.MessageID == uuid.Nil {
		c.sendError("INVALID_PAYLOAD", "invalid read payload")
		return
	}
	if err := c.chat.MarkRead(ctx, c.staffID, *event.RoomID, input.MessageID); err != nil {
		c.sendServiceError(err)
	}
}

// sendServiceError maps service failures to an error frame on this
// connection only; other participants never see it.
func (c *Client) sendServiceError(err error) {
	var perm *service.PermissionError
	switch {
	case errors.As(err, &perm):
		c.sendError("FORBIDDEN", perm.Decision.Reason)
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrMessageNotFound):
		c.sendError("NOT_FOUND", err.Error())
	case errors.Is(err, authz.ErrMediaType), errors.Is(err, authz.ErrMediaTooLarge):
		c.sendError("INVALID_MEDIA", err.Error())
	default:
		log.Printf("ws: event from %s failed: %v", c.staffID, err)
		c.sendError("INTERNAL", "something went wrong")
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong, Timestamp: time.Now().Unix()})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
