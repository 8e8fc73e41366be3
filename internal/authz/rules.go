// Package authz is the chat authorization engine: a table of pure decision
// functions from (action, state) to allow/deny. It never mutates anything;
// room and participant state is fetched fresh by Engine on every check.
package authz

import (
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
)

type Action string

const (
	ActionViewRoom           Action = "view_room"
	ActionSendMessage        Action = "send_message"
	ActionEditMessage        Action = "edit_message"
	ActionDeleteOwnMessage   Action = "delete_own_message"
	ActionDeleteAnyMessage   Action = "delete_any_message"
	ActionUploadMedia        Action = "upload_media"
	ActionForwardMessage     Action = "forward_message"
	ActionReplyToMessage     Action = "reply_to_message"
	ActionLockRoom           Action = "lock_room"
	ActionUnlockRoom         Action = "unlock_room"
	ActionArchiveRoom        Action = "archive_room"
	ActionUnarchiveRoom      Action = "unarchive_room"
	ActionDeleteRoom         Action = "delete_room"
	ActionManageParticipants Action = "manage_participants"
	ActionViewAuditLog       Action = "view_audit_log"
	ActionCreateDirectChat   Action = "create_direct_chat"
	ActionCreateGroupChat    Action = "create_group_chat"
)

// Mutation windows enforced on message authors.
const (
	EditWindow      = 15 * time.Minute
	DeleteOwnWindow = 24 * time.Hour
)

// Decision is always a normal return value, never an error. Flags let callers
// render next-step UI without re-deriving policy.
type Decision struct {
	Allowed            bool   `json:"allowed"`
	Reason             string `json:"reason,omitempty"`
	RequiresRoomAccess bool   `json:"requires_room_access,omitempty"`
	RequiresAdmin      bool   `json:"requires_admin,omitempty"`
}

// Input carries the state a rule evaluates against. Room, Participant and
// Message are nil when absent; rules treat absence as denial, not a crash.
type Input struct {
	ActorID     uuid.UUID
	Role        domain.StaffRole
	Room        *domain.Room
	Participant *domain.Participant
	Message     *domain.Message
	Now         time.Time
}

var adminRoles = map[domain.StaffRole]struct{}{
	domain.RoleSystemAdmin:       {},
	domain.RoleComplianceOfficer: {},
}

var managerRoles = map[domain.StaffRole]struct{}{
	domain.RoleSystemAdmin:       {},
	domain.RoleComplianceOfficer: {},
	domain.RoleTeamLead:          {},
	domain.RoleCaseManager:       {},
}

// IsAdminRole reports whether a role is in the system/compliance admin set.
func IsAdminRole(r domain.StaffRole) bool {
	_, ok := adminRoles[r]
	return ok
}

// IsManagerRole reports whether a role is in the broader manager set.
func IsManagerRole(r domain.StaffRole) bool {
	_, ok := managerRoles[r]
	return ok
}

type ruleFunc func(Input) Decision

// rules is the single dispatch table. Every action maps to exactly one pure
// function; composite actions (forward) are composed in Engine.
var rules = map[Action]ruleFunc{
	ActionViewRoom:           viewRoom,
	ActionSendMessage:        sendMessage,
	ActionUploadMedia:        sendMessage,
	ActionReplyToMessage:     sendMessage,
	ActionEditMessage:        editMessage,
	ActionDeleteOwnMessage:   deleteOwnMessage,
	ActionDeleteAnyMessage:   adminOnly,
	ActionForwardMessage:     viewRoom,
	ActionLockRoom:           adminRoomAction,
	ActionUnlockRoom:         adminRoomAction,
	ActionDeleteRoom:         adminRoomAction,
	ActionViewAuditLog:       adminOnly,
	ActionArchiveRoom:        managerOrRoomAdmin,
	ActionUnarchiveRoom:      managerOrRoomAdmin,
	ActionManageParticipants: manageParticipants,
	ActionCreateDirectChat:   anyStaff,
	ActionCreateGroupChat:    anyStaff,
}

// Evaluate dispatches an action to its rule. Unknown actions are denied.
func Evaluate(action Action, in Input) Decision {
	rule, ok := rules[action]
	if !ok {
		return Decision{Reason: "unknown action: " + string(action)}
	}
	return rule(in)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func viewRoom(in Input) Decision {
	if IsAdminRole(in.Role) {
		return allow()
	}
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	if in.Participant == nil {
		return Decision{Reason: "you are not a participant of this room", RequiresRoomAccess: true}
	}
	return allow()
}

func sendMessage(in Input) Decision {
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	if in.Room.IsArchived {
		return Decision{Reason: "room is archived; no messages can be sent"}
	}
	if in.Room.IsLocked && !IsAdminRole(in.Role) {
		return Decision{Reason: "room is locked by an administrator", RequiresAdmin: true}
	}
	if IsAdminRole(in.Role) {
		return allow()
	}
	if in.Participant == nil {
		return Decision{Reason: "you are not a participant of this room", RequiresRoomAccess: true}
	}
	return allow()
}

func editMessage(in Input) Decision {
	if in.Message == nil {
		return Decision{Reason: "message not found"}
	}
	if in.Message.SenderID != in.ActorID {
		return Decision{Reason: "only the sender can edit a message"}
	}
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	if in.Room.IsArchived {
		return Decision{Reason: "messages in archived rooms cannot be edited"}
	}
	if in.Room.IsLocked && !IsAdminRole(in.Role) {
		return Decision{Reason: "room is locked by an administrator", RequiresAdmin: true}
	}
	if in.Now.Sub(in.Message.CreatedAt) > EditWindow {
		return Decision{Reason: "messages can only be edited within 15 minutes of sending"}
	}
	return allow()
}

func deleteOwnMessage(in Input) Decision {
	if in.Message == nil {
		return Decision{Reason: "message not found"}
	}
	if in.Message.SenderID != in.ActorID {
		return Decision{Reason: "only the sender can delete their own message"}
	}
	if in.Now.Sub(in.Message.CreatedAt) > DeleteOwnWindow {
		return Decision{Reason: "messages can only be deleted within 24 hours of sending"}
	}
	return allow()
}

func adminOnly(in Input) Decision {
	if IsAdminRole(in.Role) {
		return allow()
	}
	return Decision{Reason: "administrator role required", RequiresAdmin: true}
}

// adminRoomAction is adminOnly plus the terminal-delete guard: a soft-deleted
// room accepts no further state transitions.
func adminRoomAction(in Input) Decision {
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	return adminOnly(in)
}

func managerOrRoomAdmin(in Input) Decision {
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	if IsManagerRole(in.Role) {
		return allow()
	}
	if in.Participant != nil && in.Participant.Role == domain.ParticipantRoleAdmin {
		return allow()
	}
	return Decision{Reason: "manager role or room admin required", RequiresAdmin: true}
}

func manageParticipants(in Input) Decision {
	if in.Room == nil || in.Room.IsDeleted {
		return Decision{Reason: "room not found or deleted", RequiresRoomAccess: true}
	}
	if in.Room.Type == domain.RoomTypeClient {
		return Decision{Reason: "client room membership is derived from staff assignments"}
	}
	if IsAdminRole(in.Role) {
		return allow()
	}
	if in.Participant != nil && in.Participant.Role == domain.ParticipantRoleAdmin {
		return allow()
	}
	return Decision{Reason: "administrator or room admin required", RequiresAdmin: true}
}

func anyStaff(in Input) Decision {
	if in.ActorID == uuid.Nil {
		return Decision{Reason: "unknown actor"}
	}
	return allow()
}
