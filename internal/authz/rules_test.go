package authz

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dpavic/casechat/internal/domain"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func member(roomID, staffID uuid.UUID) *domain.Participant {
	return &domain.Participant{RoomID: roomID, StaffID: staffID, Role: domain.ParticipantRoleMember, JoinedAt: now.Add(-time.Hour)}
}

func roomAdmin(roomID, staffID uuid.UUID) *domain.Participant {
	p := member(roomID, staffID)
	p.Role = domain.ParticipantRoleAdmin
	return p
}

func TestSendMessageRoomStates(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	tests := []struct {
		name        string
		role        domain.StaffRole
		locked      bool
		archived    bool
		deleted     bool
		participant bool
		want        bool
	}{
		{"member in active room", domain.RoleCaseWorker, false, false, false, true, true},
		{"non-participant in active room", domain.RoleCaseWorker, false, false, false, false, false},
		{"admin bypasses membership", domain.RoleSystemAdmin, false, false, false, false, true},
		{"member in locked room", domain.RoleCaseWorker, true, false, false, true, false},
		{"manager in locked room", domain.RoleTeamLead, true, false, false, true, false},
		{"admin in locked room", domain.RoleSystemAdmin, true, false, false, true, true},
		{"compliance in locked room", domain.RoleComplianceOfficer, true, false, false, true, true},
		{"admin in archived room", domain.RoleSystemAdmin, false, true, false, true, false},
		{"member in archived room", domain.RoleCaseWorker, false, true, false, true, false},
		{"admin in locked and archived room", domain.RoleSystemAdmin, true, true, false, true, false},
		{"admin in deleted room", domain.RoleSystemAdmin, false, false, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := *room
			r.IsLocked, r.IsArchived, r.IsDeleted = tt.locked, tt.archived, tt.deleted
			in := Input{ActorID: actor, Role: tt.role, Room: &r, Now: now}
			if tt.participant {
				in.Participant = member(r.ID, actor)
			}
			d := Evaluate(ActionSendMessage, in)
			assert.Equal(t, tt.want, d.Allowed, "reason: %s", d.Reason)
		})
	}
}

func TestSendMessageMissingRoom(t *testing.T) {
	d := Evaluate(ActionSendMessage, Input{ActorID: uuid.New(), Role: domain.RoleSystemAdmin, Now: now})
	assert.False(t, d.Allowed)
	assert.True(t, d.RequiresRoomAccess)
}

func TestViewRoom(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}
	deleted := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup, IsDeleted: true}

	assert.True(t, Evaluate(ActionViewRoom, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: room, Participant: member(room.ID, actor), Now: now}).Allowed)
	assert.False(t, Evaluate(ActionViewRoom, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: room, Now: now}).Allowed)
	assert.False(t, Evaluate(ActionViewRoom, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: deleted, Participant: member(deleted.ID, actor), Now: now}).Allowed)
	// Admins always see rooms, deleted included.
	assert.True(t, Evaluate(ActionViewRoom, Input{ActorID: actor, Role: domain.RoleComplianceOfficer, Room: deleted, Now: now}).Allowed)
}

func TestDeleteOwnMessageWindow(t *testing.T) {
	actor := uuid.New()
	other := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	fresh := &domain.Message{ID: uuid.New(), RoomID: room.ID, SenderID: actor, CreatedAt: now.Add(-23 * time.Hour)}
	stale := &domain.Message{ID: uuid.New(), RoomID: room.ID, SenderID: actor, CreatedAt: now.Add(-25 * time.Hour)}
	foreign := &domain.Message{ID: uuid.New(), RoomID: room.ID, SenderID: other, CreatedAt: now.Add(-time.Minute)}

	in := func(msg *domain.Message) Input {
		return Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: room, Participant: member(room.ID, actor), Message: msg, Now: now}
	}

	assert.True(t, Evaluate(ActionDeleteOwnMessage, in(fresh)).Allowed)

	d := Evaluate(ActionDeleteOwnMessage, in(stale))
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "24 hours")

	assert.False(t, Evaluate(ActionDeleteOwnMessage, in(foreign)).Allowed)
}

func TestEditMessageWindow(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	in := func(age time.Duration, mutate func(*domain.Room)) Input {
		r := *room
		if mutate != nil {
			mutate(&r)
		}
		msg := &domain.Message{ID: uuid.New(), RoomID: r.ID, SenderID: actor, CreatedAt: now.Add(-age)}
		return Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: &r, Participant: member(r.ID, actor), Message: msg, Now: now}
	}

	assert.True(t, Evaluate(ActionEditMessage, in(10*time.Minute, nil)).Allowed)
	assert.False(t, Evaluate(ActionEditMessage, in(16*time.Minute, nil)).Allowed)
	assert.False(t, Evaluate(ActionEditMessage, in(time.Minute, func(r *domain.Room) { r.IsArchived = true })).Allowed)
	assert.False(t, Evaluate(ActionEditMessage, in(time.Minute, func(r *domain.Room) { r.IsLocked = true })).Allowed)

	// Admin may edit their own message in a locked room, still inside window.
	lockedIn := in(time.Minute, func(r *domain.Room) { r.IsLocked = true })
	lockedIn.Role = domain.RoleSystemAdmin
	assert.True(t, Evaluate(ActionEditMessage, lockedIn).Allowed)
}

func TestAdminOnlyActions(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	for _, action := range []Action{ActionDeleteAnyMessage, ActionLockRoom, ActionUnlockRoom, ActionDeleteRoom, ActionViewAuditLog} {
		d := Evaluate(action, Input{ActorID: actor, Role: domain.RoleTeamLead, Room: room, Participant: roomAdmin(room.ID, actor), Now: now})
		assert.False(t, d.Allowed, "action %s", action)
		assert.True(t, d.RequiresAdmin, "action %s", action)

		assert.True(t, Evaluate(action, Input{ActorID: actor, Role: domain.RoleSystemAdmin, Room: room, Now: now}).Allowed, "action %s", action)
	}
}

func TestArchiveRoomManagerOrRoomAdmin(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	assert.True(t, Evaluate(ActionArchiveRoom, Input{ActorID: actor, Role: domain.RoleCaseManager, Room: room, Now: now}).Allowed)
	assert.True(t, Evaluate(ActionArchiveRoom, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: room, Participant: roomAdmin(room.ID, actor), Now: now}).Allowed)
	assert.False(t, Evaluate(ActionArchiveRoom, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: room, Participant: member(room.ID, actor), Now: now}).Allowed)
}

func TestDeletedRoomRejectsAllTransitions(t *testing.T) {
	actor := uuid.New()
	room := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup, IsDeleted: true}

	// Soft-delete is terminal, even for admins.
	for _, action := range []Action{ActionLockRoom, ActionUnlockRoom, ActionDeleteRoom, ActionArchiveRoom, ActionUnarchiveRoom, ActionSendMessage} {
		d := Evaluate(action, Input{ActorID: actor, Role: domain.RoleSystemAdmin, Room: room, Now: now})
		assert.False(t, d.Allowed, "action %s", action)
	}

	// The audit trail of a deleted room stays readable.
	assert.True(t, Evaluate(ActionViewAuditLog, Input{ActorID: actor, Role: domain.RoleComplianceOfficer, Room: room, Now: now}).Allowed)
}

func TestManageParticipantsClientRoom(t *testing.T) {
	actor := uuid.New()
	clientRoom := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeClient}
	groupRoom := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup}

	// Derived membership: denied even for system admins.
	d := Evaluate(ActionManageParticipants, Input{ActorID: actor, Role: domain.RoleSystemAdmin, Room: clientRoom, Now: now})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "staff assignments")

	assert.True(t, Evaluate(ActionManageParticipants, Input{ActorID: actor, Role: domain.RoleSystemAdmin, Room: groupRoom, Now: now}).Allowed)
	assert.True(t, Evaluate(ActionManageParticipants, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: groupRoom, Participant: roomAdmin(groupRoom.ID, actor), Now: now}).Allowed)
	assert.False(t, Evaluate(ActionManageParticipants, Input{ActorID: actor, Role: domain.RoleCaseWorker, Room: groupRoom, Participant: member(groupRoom.ID, actor), Now: now}).Allowed)
}

func TestUploadMediaAndReplyDelegateToSend(t *testing.T) {
	actor := uuid.New()
	archived := &domain.Room{ID: uuid.New(), Type: domain.RoomTypeGroup, IsArchived: true}

	for _, action := range []Action{ActionUploadMedia, ActionReplyToMessage} {
		d := Evaluate(action, Input{ActorID: actor, Role: domain.RoleSystemAdmin, Room: archived, Now: now})
		assert.False(t, d.Allowed, "action %s", action)
	}
}

func TestUnknownActionDenied(t *testing.T) {
	d := Evaluate(Action("reticulate_splines"), Input{ActorID: uuid.New(), Role: domain.RoleSystemAdmin, Now: now})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "unknown action")
}

func TestValidateMedia(t *testing.T) {
	assert.NoError(t, ValidateMedia("image/png", 4<<20))
	assert.NoError(t, ValidateMedia("video/quicktime", 50<<20))
	assert.ErrorIs(t, ValidateMedia("image/jpeg", MaxImageBytes+1), ErrMediaTooLarge)
	assert.ErrorIs(t, ValidateMedia("video/mp4", MaxVideoBytes+1), ErrMediaTooLarge)
	assert.ErrorIs(t, ValidateMedia("application/pdf", 1024), ErrMediaType)
	assert.ErrorIs(t, ValidateMedia("image/svg+xml", 10), ErrMediaType)
}
