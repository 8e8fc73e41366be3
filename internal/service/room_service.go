package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

// RoomService owns the room lifecycle state machine: locked and archived are
// independent reversible toggles, deleted is a one-way soft-delete. Every
// transition goes through the authorization engine and is audit-logged.
type RoomService struct {
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	staff        repository.StaffRepository
	audit        repository.AuditRepository
	authz        *authz.Engine
	notifier     Notifier
}

func NewRoomService(
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	staff repository.StaffRepository,
	audit repository.AuditRepository,
	engine *authz.Engine,
) *RoomService {
	return &RoomService{
		rooms:        rooms,
		participants: participants,
		staff:        staff,
		audit:        audit,
		authz:        engine,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *RoomService) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateDirect returns the existing direct room between the two staff members
// or creates one.
func (s *RoomService) CreateDirect(ctx context.Context, actorID, otherID uuid.UUID) (*domain.Room, error) {
	d, err := s.authz.Check(ctx, authz.ActionCreateDirectChat, actorID, uuid.Nil, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	other, err := s.staff.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrStaffNotFound
	}

	if existing, err := s.rooms.GetDirect(ctx, actorID, otherID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	now := time.Now()
	room := &domain.Room{
		ID:        uuid.New(),
		Type:      domain.RoomTypeDirect,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("creating direct room: %w", err)
	}
	for _, staffID := range []uuid.UUID{actorID, otherID} {
		p := &domain.Participant{RoomID: room.ID, StaffID: staffID, Role: domain.ParticipantRoleMember, JoinedAt: now}
		if err := s.participants.Add(ctx, p); err != nil {
			return nil, fmt.Errorf("adding participant: %w", err)
		}
	}
	s.appendAudit(ctx, "room_created", actorID, &room.ID, map[string]any{"type": room.Type})
	return room, nil
}

func (s *RoomService) CreateGroup(ctx context.Context, actorID uuid.UUID, name string, memberIDs []uuid.UUID) (*domain.Room, error) {
	d, err := s.authz.Check(ctx, authz.ActionCreateGroupChat, actorID, uuid.Nil, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	now := time.Now()
	room := &domain.Room{
		ID:        uuid.New(),
		Type:      domain.RoomTypeGroup,
		Name:      name,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("creating group room: %w", err)
	}

	// Creator becomes room-local admin, everyone else a member.
	creator := &domain.Participant{RoomID: room.ID, StaffID: actorID, Role: domain.ParticipantRoleAdmin, JoinedAt: now}
	if err := s.participants.Add(ctx, creator); err != nil {
		return nil, fmt.Errorf("adding creator: %w", err)
	}
	for _, staffID := range memberIDs {
		if staffID == actorID {
			continue
		}
		p := &domain.Participant{RoomID: room.ID, StaffID: staffID, Role: domain.ParticipantRoleMember, JoinedAt: now}
		if err := s.participants.Add(ctx, p); err != nil {
			return nil, fmt.Errorf("adding participant: %w", err)
		}
	}
	s.appendAudit(ctx, "room_created", actorID, &room.ID, map[string]any{"type": room.Type, "members": len(memberIDs)})
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, actorID, roomID uuid.UUID) (*domain.Room, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) ListForStaff(ctx context.Context, actorID uuid.UUID) ([]domain.Room, error) {
	return s.rooms.ListForStaff(ctx, actorID)
}

func (s *RoomService) Participants(ctx context.Context, actorID, roomID uuid.UUID) ([]domain.Participant, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	return s.participants.ListByRoom(ctx, roomID)
}

// SetLocked toggles the reversible locked flag.
func (s *RoomService) SetLocked(ctx context.Context, actorID, roomID uuid.UUID, locked bool) error {
	action := authz.ActionLockRoom
	if !locked {
		action = authz.ActionUnlockRoom
	}
	room, err := s.transition(ctx, action, actorID, roomID, func(ctx context.Context) error {
		return s.rooms.SetLocked(ctx, roomID, locked)
	})
	if err != nil {
		return err
	}
	room.IsLocked = locked
	s.notifyRoom(ctx, room)
	return nil
}

// SetArchived toggles the reversible archived flag.
func (s *RoomService) SetArchived(ctx context.Context, actorID, roomID uuid.UUID, archived bool) error {
	action := authz.ActionArchiveRoom
	if !archived {
		action = authz.ActionUnarchiveRoom
	}
	room, err := s.transition(ctx, action, actorID, roomID, func(ctx context.Context) error {
		return s.rooms.SetArchived(ctx, roomID, archived)
	})
	if err != nil {
		return err
	}
	room.IsArchived = archived
	s.notifyRoom(ctx, room)
	return nil
}

// SoftDelete is terminal: the record survives for audit but every room action
// is denied from here on.
func (s *RoomService) SoftDelete(ctx context.Context, actorID, roomID uuid.UUID) error {
	room, err := s.transition(ctx, authz.ActionDeleteRoom, actorID, roomID, func(ctx context.Context) error {
		return s.rooms.SoftDelete(ctx, roomID)
	})
	if err != nil {
		return err
	}
	room.IsDeleted = true
	s.notifyRoom(ctx, room)
	return nil
}

func (s *RoomService) transition(ctx context.Context, action authz.Action, actorID, roomID uuid.UUID, apply func(context.Context) error) (*domain.Room, error) {
	d, err := s.authz.Check(ctx, action, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if err := apply(ctx); err != nil {
		return nil, fmt.Errorf("applying %s: %w", action, err)
	}
	s.appendAudit(ctx, string(action), actorID, &roomID, nil)
	return room, nil
}

func (s *RoomService) AddParticipant(ctx context.Context, actorID, roomID, staffID uuid.UUID, role domain.ParticipantRole) error {
	d, err := s.authz.Check(ctx, authz.ActionManageParticipants, actorID, roomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}
	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrStaffNotFound
	}
	p := &domain.Participant{RoomID: roomID, StaffID: staffID, Role: role, JoinedAt: time.Now()}
	if err := s.participants.Add(ctx, p); err != nil {
		return fmt.Errorf("adding participant: %w", err)
	}
	s.appendAudit(ctx, "participant_added", actorID, &roomID, map[string]any{"staff_id": staffID, "role": role})
	return nil
}

func (s *RoomService) RemoveParticipant(ctx context.Context, actorID, roomID, staffID uuid.UUID) error {
	d, err := s.authz.Check(ctx, authz.ActionManageParticipants, actorID, roomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}
	if err := s.participants.Remove(ctx, roomID, staffID); err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}
	s.appendAudit(ctx, "participant_removed", actorID, &roomID, map[string]any{"staff_id": staffID})
	return nil
}

func (s *RoomService) UpdateParticipantRole(ctx context.Context, actorID, roomID, staffID uuid.UUID, role domain.ParticipantRole) error {
	d, err := s.authz.Check(ctx, authz.ActionManageParticipants, actorID, roomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}
	if err := s.participants.UpdateRole(ctx, roomID, staffID, role); err != nil {
		return fmt.Errorf("updating participant role: %w", err)
	}
	s.appendAudit(ctx, "participant_role_updated", actorID, &roomID, map[string]any{"staff_id": staffID, "role": role})
	return nil
}

func (s *RoomService) AuditLog(ctx context.Context, actorID, roomID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewAuditLog, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	return s.audit.ListByRoom(ctx, roomID, limit)
}

// EnsureClientRoom guarantees a client record has its chat room, then brings
// the membership in line with current staff assignments.
func (s *RoomService) EnsureClientRoom(ctx context.Context, actorID, clientID uuid.UUID, name string) (*domain.Room, error) {
	rooms, err := s.rooms.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var room *domain.Room
	for i := range rooms {
		if rooms[i].Type == domain.RoomTypeClient {
			room = &rooms[i]
			break
		}
	}
	if room == nil {
		now := time.Now()
		room = &domain.Room{
			ID:        uuid.New(),
			Type:      domain.RoomTypeClient,
			Name:      name,
			ClientID:  &clientID,
			CreatedBy: actorID,
			CreatedAt: now,
		}
		if err := s.rooms.Create(ctx, room); err != nil {
			return nil, fmt.Errorf("creating client room: %w", err)
		}
		s.appendAudit(ctx, "room_created", actorID, &room.ID, map[string]any{"type": room.Type, "client_id": clientID})
	}
	if err := s.SyncClientRooms(ctx, actorID, clientID); err != nil {
		return nil, err
	}
	return room, nil
}

// SyncClientRooms diffs each client room's membership against the client's
// current staff assignments. Room-local admins are a manual escalation and
// survive removal from the assignment list; they are never demoted or removed
// by the sync.
func (s *RoomService) SyncClientRooms(ctx context.Context, actorID, clientID uuid.UUID) error {
	rooms, err := s.rooms.ListByClient(ctx, clientID)
	if err != nil {
		return err
	}
	assigned, err := s.staff.ListAssignedToClient(ctx, clientID)
	if err != nil {
		return err
	}
	desired := make(map[uuid.UUID]struct{}, len(assigned))
	for _, st := range assigned {
		desired[st.ID] = struct{}{}
	}

	now := time.Now()
	for _, room := range rooms {
		if room.Type != domain.RoomTypeClient {
			continue
		}
		current, err := s.participants.ListByRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		present := make(map[uuid.UUID]struct{}, len(current))

		var added, removed int
		for _, p := range current {
			present[p.StaffID] = struct{}{}
			if _, keep := desired[p.StaffID]; keep {
				continue
			}
			if p.Role == domain.ParticipantRoleAdmin {
				continue
			}
			if err := s.participants.Remove(ctx, room.ID, p.StaffID); err != nil {
				return fmt.Errorf("sync remove: %w", err)
			}
			removed++
		}
		for staffID := range desired {
			if _, ok := present[staffID]; ok {
				continue
			}
			p := &domain.Participant{RoomID: room.ID, StaffID: staffID, Role: domain.ParticipantRoleMember, JoinedAt: now}
			if err := s.participants.Add(ctx, p); err != nil {
				return fmt.Errorf("sync add: %w", err)
			}
			added++
		}
		if added > 0 || removed > 0 {
			s.appendAudit(ctx, "client_room_synced", actorID, &room.ID, map[string]any{"added": added, "removed": removed})
		}
	}
	return nil
}

// SetClientArchived archives or restores every room linked to a client in
// lockstep with the client record, each transition audit-logged separately.
func (s *RoomService) SetClientArchived(ctx context.Context, actorID, clientID uuid.UUID, archived bool) error {
	actor, err := s.staff.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor == nil || !authz.IsManagerRole(actor.Role) {
		return denied(authz.Decision{Reason: "manager role required to archive client rooms", RequiresAdmin: true})
	}

	rooms, err := s.rooms.ListByClient(ctx, clientID)
	if err != nil {
		return err
	}
	action := "room_archived"
	if !archived {
		action = "room_unarchived"
	}
	for i := range rooms {
		room := &rooms[i]
		if room.IsArchived == archived {
			continue
		}
		if err := s.rooms.SetArchived(ctx, room.ID, archived); err != nil {
			return fmt.Errorf("archiving client room: %w", err)
		}
		s.appendAudit(ctx, action, actorID, &room.ID, map[string]any{"cascade_from_client": clientID})
		room.IsArchived = archived
		s.notifyRoom(ctx, room)
	}
	return nil
}

func (s *RoomService) notifyRoom(ctx context.Context, room *domain.Room) {
	if s.notifier == nil {
		return
	}
	participants, err := s.participants.ListByRoom(ctx, room.ID)
	if err != nil {
		return
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.StaffID)
	}
	s.notifier.RoomUpdated(room, ids)
}

func (s *RoomService) appendAudit(ctx context.Context, action string, actorID uuid.UUID, roomID *uuid.UUID, details map[string]any) {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		RoomID:    roomID,
		Details:   details,
		CreatedAt: time.Now(),
	}
	// Audit failures must not fail the user action.
	_ = s.audit.Append(ctx, entry)
}
