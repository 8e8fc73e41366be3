package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/repository"
)

// Engine loads current room/participant/message state and dispatches to the
// pure rules table. State is re-read on every call; nothing is cached, so
// concurrent writers always race against fresh state.
type Engine struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	messages     repository.MessageRepository
	staff        repository.StaffRepository
}

func NewEngine(
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	messages repository.MessageRepository,
	staff repository.StaffRepository,
) *Engine {
	return &Engine{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		staff:        staff,
	}
}

// Check evaluates an action. roomID may be uuid.Nil for room-creation
// actions; messageID is nil for actions without a message target. The error
// return is for storage failures only; policy outcomes are always a Decision.
func (e *Engine) Check(ctx context.Context, action Action, actorID, roomID uuid.UUID, messageID *uuid.UUID) (Decision, error) {
	in, err := e.load(ctx, actorID, roomID, messageID)
	if err != nil {
		return Decision{}, err
	}
	if in == nil {
		return Decision{Reason: "unknown actor"}, nil
	}
	return Evaluate(action, *in), nil
}

// CheckForward composes view_room on the source room with send_message on the
// target room. A nil target checks only source visibility.
func (e *Engine) CheckForward(ctx context.Context, actorID, sourceRoomID uuid.UUID, messageID uuid.UUID, targetRoomID *uuid.UUID) (Decision, error) {
	d, err := e.Check(ctx, ActionForwardMessage, actorID, sourceRoomID, &messageID)
	if err != nil || !d.Allowed {
		return d, err
	}
	if targetRoomID == nil {
		return d, nil
	}
	return e.Check(ctx, ActionSendMessage, actorID, *targetRoomID, nil)
}

func (e *Engine) load(ctx context.Context, actorID, roomID uuid.UUID, messageID *uuid.UUID) (*Input, error) {
	actor, err := e.staff.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("loading actor: %w", err)
	}
	if actor == nil {
		return nil, nil
	}

	in := Input{ActorID: actorID, Role: actor.Role, Now: time.Now()}

	if roomID != uuid.Nil {
		room, err := e.rooms.GetByID(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("loading room: %w", err)
		}
		in.Room = room

		p, err := e.participants.Get(ctx, roomID, actorID)
		if err != nil {
			return nil, fmt.Errorf("loading participant: %w", err)
		}
		in.Participant = p
	}

	if messageID != nil {
		msg, err := e.messages.GetByID(ctx, *messageID)
		if err != nil {
			return nil, fmt.Errorf("loading message: %w", err)
		}
		in.Message = msg
	}

	return &in, nil
}
