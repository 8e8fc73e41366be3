package domain

import (
	"time"

	"github.com/google/uuid"
)

type StaffRole string

const (
	RoleSystemAdmin       StaffRole = "system_admin"
	RoleComplianceOfficer StaffRole = "compliance_officer"
	RoleTeamLead          StaffRole = "team_lead"
	RoleCaseManager       StaffRole = "case_manager"
	RoleCaseWorker        StaffRole = "case_worker"
)

// Staff is the identity record resolved by the surrounding case-management
// app. The chat core only reads it.
type Staff struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        StaffRole `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditEntry records a chat-scoped action for compliance review.
type AuditEntry struct {
	ID        uuid.UUID      `json:"id"`
	Action    string         `json:"action"`
	ActorID   uuid.UUID      `json:"actor_id"`
	RoomID    *uuid.UUID     `json:"room_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
