package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
)

// The chat core talks to durable storage only through these interfaces. The
// postgres package implements them; tests substitute in-memory fakes.

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// GetDirect finds the existing direct room between two staff members.
	GetDirect(ctx context.Context, staffA, staffB uuid.UUID) (*domain.Room, error)
	ListForStaff(ctx context.Context, staffID uuid.UUID) ([]domain.Room, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Room, error)
	Update(ctx context.Context, room *domain.Room) error
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SetLastMessage(ctx context.Context, id uuid.UUID, at time.Time, preview string) error
}

type ParticipantRepository interface {
	Get(ctx context.Context, roomID, staffID uuid.UUID) (*domain.Participant, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.Participant, error)
	Add(ctx context.Context, p *domain.Participant) error
	Remove(ctx context.Context, roomID, staffID uuid.UUID) error
	UpdateRole(ctx context.Context, roomID, staffID uuid.UUID, role domain.ParticipantRole) error
	UpdateLastRead(ctx context.Context, roomID, staffID uuid.UUID, at time.Time) error
}

// MessageFilter narrows a room-scoped search. Content matching only applies
// to rows stored as plaintext; ciphertext is not searchable server-side.
type MessageFilter struct {
	Query    string
	SenderID *uuid.UUID
	Type     *domain.MessageType
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByRoom pages backwards from the cursor message id. visibleFrom and
	// backfill implement join-date visibility: messages older than visibleFrom
	// are included only up to backfill rows.
	ListByRoom(ctx context.Context, roomID uuid.UUID, before *uuid.UUID, limit int, visibleFrom time.Time, backfill int) ([]domain.Message, error)
	UpdateContent(ctx context.Context, msg *domain.Message) error
	SoftDelete(ctx context.Context, id, actorID uuid.UUID, at time.Time) error
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool, actorID *uuid.UUID, at *time.Time) error
	ListPinned(ctx context.Context, roomID uuid.UUID) ([]domain.Message, error)
	Search(ctx context.Context, roomID uuid.UUID, filter MessageFilter) ([]domain.Message, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *domain.Attachment) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]domain.Attachment, error)
	// MarkExpired clears the storage key and records the reason. It must be a
	// no-op on rows already expired.
	MarkExpired(ctx context.Context, id uuid.UUID, reason string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Attachment, error)
	ListExpiringSoon(ctx context.Context, now time.Time, within time.Duration) ([]domain.Attachment, error)
}

type ReactionRepository interface {
	Add(ctx context.Context, r *domain.Reaction) error
	Remove(ctx context.Context, messageID, staffID uuid.UUID, emoji string) error
	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error)
}

type ReceiptRepository interface {
	Mark(ctx context.Context, r *domain.Receipt) error
	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]domain.Receipt, error)
}

type ScheduledMessageRepository interface {
	Create(ctx context.Context, m *domain.ScheduledMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error)
	// MarkSent and MarkFailed only transition rows still in pending status,
	// so a second dispatch of the same row is a no-op.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

type AuditRepository interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	ListByRoom(ctx context.Context, roomID uuid.UUID, limit int) ([]domain.AuditEntry, error)
}

type StaffRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Staff, error)
	// ListAssignedToClient returns the staff currently assigned to a client
	// record; client-room membership is synchronized from it.
	ListAssignedToClient(ctx context.Context, clientID uuid.UUID) ([]domain.Staff, error)
}
