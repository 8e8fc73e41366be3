package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

// memDB backs the in-memory repository fakes. Tests share one instance across
// all repos so cross-entity behavior (authz lookups, fan-out) works the same
// as against postgres.
type memDB struct {
	rooms        map[uuid.UUID]*domain.Room
	participants map[uuid.UUID]map[uuid.UUID]*domain.Participant
	messages     map[uuid.UUID]*domain.Message
	attachments  map[uuid.UUID]*domain.Attachment
	reactions    []domain.Reaction
	receipts     []domain.Receipt
	scheduled    map[uuid.UUID]*domain.ScheduledMessage
	audit        []domain.AuditEntry
	staff        map[uuid.UUID]*domain.Staff
	assignments  map[uuid.UUID][]uuid.UUID
}

func newMemDB() *memDB {
	return &memDB{
		rooms:        make(map[uuid.UUID]*domain.Room),
		participants: make(map[uuid.UUID]map[uuid.UUID]*domain.Participant),
		messages:     make(map[uuid.UUID]*domain.Message),
		attachments:  make(map[uuid.UUID]*domain.Attachment),
		scheduled:    make(map[uuid.UUID]*domain.ScheduledMessage),
		staff:        make(map[uuid.UUID]*domain.Staff),
		assignments:  make(map[uuid.UUID][]uuid.UUID),
	}
}

func (db *memDB) addStaff(role domain.StaffRole, name string) uuid.UUID {
	id := uuid.New()
	db.staff[id] = &domain.Staff{ID: id, DisplayName: name, Role: role, CreatedAt: time.Now()}
	return id
}

func (db *memDB) addRoom(roomType domain.RoomType, createdBy uuid.UUID) *domain.Room {
	room := &domain.Room{ID: uuid.New(), Type: roomType, CreatedBy: createdBy, CreatedAt: time.Now()}
	db.rooms[room.ID] = room
	return room
}

func (db *memDB) addParticipant(roomID, staffID uuid.UUID, role domain.ParticipantRole, joinedAt time.Time) {
	if db.participants[roomID] == nil {
		db.participants[roomID] = make(map[uuid.UUID]*domain.Participant)
	}
	db.participants[roomID][staffID] = &domain.Participant{
		RoomID: roomID, StaffID: staffID, Role: role, JoinedAt: joinedAt,
	}
}

func (db *memDB) auditActions() []string {
	actions := make([]string, 0, len(db.audit))
	for _, e := range db.audit {
		actions = append(actions, e.Action)
	}
	return actions
}

// --- RoomRepository ---

type fakeRoomRepo struct{ db *memDB }

func (r *fakeRoomRepo) Create(_ context.Context, room *domain.Room) error {
	cp := *room
	r.db.rooms[room.ID] = &cp
	return nil
}

func (r *fakeRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	room, ok := r.db.rooms[id]
	if !ok {
		return nil, nil
	}
	cp := *room
	return &cp, nil
}

func (r *fakeRoomRepo) GetDirect(_ context.Context, staffA, staffB uuid.UUID) (*domain.Room, error) {
	for id, room := range r.db.rooms {
		if room.Type != domain.RoomTypeDirect || room.IsDeleted {
			continue
		}
		ps := r.db.participants[id]
		if ps == nil {
			continue
		}
		if _, okA := ps[staffA]; !okA {
			continue
		}
		if _, okB := ps[staffB]; okB {
			cp := *room
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRoomRepo) ListForStaff(_ context.Context, staffID uuid.UUID) ([]domain.Room, error) {
	var out []domain.Room
	for id, room := range r.db.rooms {
		if room.IsDeleted {
			continue
		}
		if _, ok := r.db.participants[id][staffID]; ok {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]domain.Room, error) {
	var out []domain.Room
	for _, room := range r.db.rooms {
		if room.ClientID != nil && *room.ClientID == clientID && !room.IsDeleted {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) Update(_ context.Context, room *domain.Room) error {
	if existing, ok := r.db.rooms[room.ID]; ok {
		existing.Name = room.Name
	}
	return nil
}

func (r *fakeRoomRepo) SetLocked(_ context.Context, id uuid.UUID, locked bool) error {
	if room, ok := r.db.rooms[id]; ok {
		room.IsLocked = locked
	}
	return nil
}

func (r *fakeRoomRepo) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	if room, ok := r.db.rooms[id]; ok {
		room.IsArchived = archived
	}
	return nil
}

func (r *fakeRoomRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	if room, ok := r.db.rooms[id]; ok {
		room.IsDeleted = true
	}
	return nil
}

func (r *fakeRoomRepo) SetLastMessage(_ context.Context, id uuid.UUID, at time.Time, preview string) error {
	if room, ok := r.db.rooms[id]; ok {
		room.LastMessageAt = &at
		room.LastMessagePreview = &preview
	}
	return nil
}

// --- ParticipantRepository ---

type fakeParticipantRepo struct{ db *memDB }

func (r *fakeParticipantRepo) Get(_ context.Context, roomID, staffID uuid.UUID) (*domain.Participant, error) {
	p, ok := r.db.participants[roomID][staffID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeParticipantRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]domain.Participant, error) {
	var out []domain.Participant
	for _, p := range r.db.participants[roomID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *fakeParticipantRepo) Add(_ context.Context, p *domain.Participant) error {
	if r.db.participants[p.RoomID] == nil {
		r.db.participants[p.RoomID] = make(map[uuid.UUID]*domain.Participant)
	}
	if _, exists := r.db.participants[p.RoomID][p.StaffID]; exists {
		return nil
	}
	cp := *p
	r.db.participants[p.RoomID][p.StaffID] = &cp
	return nil
}

func (r *fakeParticipantRepo) Remove(_ context.Context, roomID, staffID uuid.UUID) error {
	delete(r.db.participants[roomID], staffID)
	return nil
}

func (r *fakeParticipantRepo) UpdateRole(_ context.Context, roomID, staffID uuid.UUID, role domain.ParticipantRole) error {
	if p, ok := r.db.participants[roomID][staffID]; ok {
		p.Role = role
	}
	return nil
}

func (r *fakeParticipantRepo) UpdateLastRead(_ context.Context, roomID, staffID uuid.UUID, at time.Time) error {
	if p, ok := r.db.participants[roomID][staffID]; ok {
		p.LastReadAt = &at
	}
	return nil
}

// --- MessageRepository ---

type fakeMessageRepo struct{ db *memDB }

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	cp := *msg
	r.db.messages[msg.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, ok := r.db.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMessageRepo) roomMessages(roomID uuid.UUID) []domain.Message {
	var out []domain.Message
	for _, m := range r.db.messages {
		if m.RoomID == roomID && m.DeletedAt == nil {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *fakeMessageRepo) ListByRoom(_ context.Context, roomID uuid.UUID, before *uuid.UUID, limit int, visibleFrom time.Time, backfill int) ([]domain.Message, error) {
	all := r.roomMessages(roomID)

	if !visibleFrom.IsZero() {
		var older, visible []domain.Message
		for _, m := range all {
			if m.CreatedAt.Before(visibleFrom) {
				older = append(older, m)
			} else {
				visible = append(visible, m)
			}
		}
		if len(older) > backfill {
			older = older[len(older)-backfill:]
		}
		all = append(older, visible...)
	}

	if before != nil {
		cursor, ok := r.db.messages[*before]
		if ok {
			var trimmed []domain.Message
			for _, m := range all {
				if m.CreatedAt.Before(cursor.CreatedAt) {
					trimmed = append(trimmed, m)
				}
			}
			all = trimmed
		}
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *fakeMessageRepo) UpdateContent(_ context.Context, msg *domain.Message) error {
	if existing, ok := r.db.messages[msg.ID]; ok {
		existing.Content = msg.Content
		existing.IsEncrypted = msg.IsEncrypted
		existing.KeyVersion = msg.KeyVersion
		existing.EditedAt = msg.EditedAt
		existing.EditedBy = msg.EditedBy
	}
	return nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, id, actorID uuid.UUID, at time.Time) error {
	if msg, ok := r.db.messages[id]; ok && msg.DeletedAt == nil {
		msg.DeletedAt = &at
		msg.DeletedBy = &actorID
	}
	return nil
}

func (r *fakeMessageRepo) SetPinned(_ context.Context, id uuid.UUID, pinned bool, actorID *uuid.UUID, at *time.Time) error {
	if msg, ok := r.db.messages[id]; ok {
		msg.IsPinned = pinned
		msg.PinnedAt = at
		msg.PinnedBy = actorID
	}
	return nil
}

func (r *fakeMessageRepo) ListPinned(_ context.Context, roomID uuid.UUID) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range r.roomMessages(roomID) {
		if m.IsPinned {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Search(_ context.Context, roomID uuid.UUID, filter repository.MessageFilter) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range r.roomMessages(roomID) {
		if filter.Query != "" && (m.IsEncrypted || !strings.Contains(strings.ToLower(m.Content), strings.ToLower(filter.Query))) {
			continue
		}
		if filter.SenderID != nil && m.SenderID != *filter.SenderID {
			continue
		}
		if filter.Type != nil && m.Type != *filter.Type {
			continue
		}
		if filter.Since != nil && m.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && m.CreatedAt.After(*filter.Until) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// --- AttachmentRepository ---

type fakeAttachmentRepo struct{ db *memDB }

func (r *fakeAttachmentRepo) Create(_ context.Context, a *domain.Attachment) error {
	cp := *a
	r.db.attachments[a.ID] = &cp
	return nil
}

func (r *fakeAttachmentRepo) ListByMessage(_ context.Context, messageID uuid.UUID) ([]domain.Attachment, error) {
	var out []domain.Attachment
	for _, a := range r.db.attachments {
		if a.MessageID == messageID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) MarkExpired(_ context.Context, id uuid.UUID, reason string) error {
	if a, ok := r.db.attachments[id]; ok && !a.IsExpired {
		a.IsExpired = true
		a.StorageKey = nil
		a.ExpiredReason = &reason
	}
	return nil
}

func (r *fakeAttachmentRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Attachment, error) {
	var out []domain.Attachment
	for _, a := range r.db.attachments {
		if !a.IsExpired && !a.ExpiresAt.After(now) {
			out = append(out, *a)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeAttachmentRepo) ListExpiringSoon(_ context.Context, now time.Time, within time.Duration) ([]domain.Attachment, error) {
	var out []domain.Attachment
	deadline := now.Add(within)
	for _, a := range r.db.attachments {
		if !a.IsExpired && a.ExpiresAt.After(now) && !a.ExpiresAt.After(deadline) {
			out = append(out, *a)
		}
	}
	return out, nil
}

// --- ReactionRepository ---

type fakeReactionRepo struct{ db *memDB }

func (r *fakeReactionRepo) Add(_ context.Context, reaction *domain.Reaction) error {
	for _, existing := range r.db.reactions {
		if existing.MessageID == reaction.MessageID && existing.StaffID == reaction.StaffID && existing.Emoji == reaction.Emoji {
			return nil
		}
	}
	r.db.reactions = append(r.db.reactions, *reaction)
	return nil
}

func (r *fakeReactionRepo) Remove(_ context.Context, messageID, staffID uuid.UUID, emoji string) error {
	kept := r.db.reactions[:0]
	for _, existing := range r.db.reactions {
		if existing.MessageID == messageID && existing.StaffID == staffID && existing.Emoji == emoji {
			continue
		}
		kept = append(kept, existing)
	}
	r.db.reactions = kept
	return nil
}

func (r *fakeReactionRepo) ListForMessages(_ context.Context, messageIDs []uuid.UUID) ([]domain.Reaction, error) {
	ids := make(map[uuid.UUID]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	var out []domain.Reaction
	for _, reaction := range r.db.reactions {
		if _, ok := ids[reaction.MessageID]; ok {
			out = append(out, reaction)
		}
	}
	return out, nil
}

// --- ReceiptRepository ---

type fakeReceiptRepo struct{ db *memDB }

func (r *fakeReceiptRepo) Mark(_ context.Context, receipt *domain.Receipt) error {
	for _, existing := range r.db.receipts {
		if existing.MessageID == receipt.MessageID && existing.StaffID == receipt.StaffID && existing.Kind == receipt.Kind {
			return nil
		}
	}
	r.db.receipts = append(r.db.receipts, *receipt)
	return nil
}

func (r *fakeReceiptRepo) ListForMessages(_ context.Context, messageIDs []uuid.UUID) ([]domain.Receipt, error) {
	ids := make(map[uuid.UUID]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	var out []domain.Receipt
	for _, receipt := range r.db.receipts {
		if _, ok := ids[receipt.MessageID]; ok {
			out = append(out, receipt)
		}
	}
	return out, nil
}

// --- ScheduledMessageRepository ---

type fakeScheduledRepo struct{ db *memDB }

func (r *fakeScheduledRepo) Create(_ context.Context, m *domain.ScheduledMessage) error {
	cp := *m
	r.db.scheduled[m.ID] = &cp
	return nil
}

func (r *fakeScheduledRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ScheduledMessage, error) {
	m, ok := r.db.scheduled[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeScheduledRepo) ListDue(_ context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error) {
	var out []domain.ScheduledMessage
	for _, m := range r.db.scheduled {
		if m.Status == domain.ScheduledPending && !m.ScheduledAt.After(now) {
			out = append(out, *m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeScheduledRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	if m, ok := r.db.scheduled[id]; ok && m.Status == domain.ScheduledPending {
		m.Status = domain.ScheduledSent
		m.SentAt = &at
	}
	return nil
}

func (r *fakeScheduledRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	if m, ok := r.db.scheduled[id]; ok && m.Status == domain.ScheduledPending {
		m.Status = domain.ScheduledFailed
		m.FailReason = &reason
	}
	return nil
}

func (r *fakeScheduledRepo) Cancel(_ context.Context, id uuid.UUID) error {
	if m, ok := r.db.scheduled[id]; ok && m.Status == domain.ScheduledPending {
		m.Status = domain.ScheduledCancelled
	}
	return nil
}

// --- AuditRepository ---

type fakeAuditRepo struct{ db *memDB }

func (r *fakeAuditRepo) Append(_ context.Context, e *domain.AuditEntry) error {
	r.db.audit = append(r.db.audit, *e)
	return nil
}

func (r *fakeAuditRepo) ListByRoom(_ context.Context, roomID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for i := len(r.db.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.db.audit[i]
		if e.RoomID != nil && *e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- StaffRepository ---

type fakeStaffRepo struct{ db *memDB }

func (r *fakeStaffRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Staff, error) {
	s, ok := r.db.staff[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeStaffRepo) ListAssignedToClient(_ context.Context, clientID uuid.UUID) ([]domain.Staff, error) {
	var out []domain.Staff
	for _, staffID := range r.db.assignments[clientID] {
		if s, ok := r.db.staff[staffID]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

// --- Notifier ---

type notifierCall struct {
	kind       string
	roomID     uuid.UUID
	recipients []uuid.UUID
}

type fakeNotifier struct {
	calls []notifierCall
}

func (n *fakeNotifier) MessageCreated(msg *domain.Message, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"message.new", msg.RoomID, recipients})
}

func (n *fakeNotifier) MessageEdited(msg *domain.Message, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"message.edited", msg.RoomID, recipients})
}

func (n *fakeNotifier) MessageDeleted(roomID, messageID uuid.UUID, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"message.deleted", roomID, recipients})
}

func (n *fakeNotifier) MessagePinned(msg *domain.Message, pinned bool, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"message.pinned", msg.RoomID, recipients})
}

func (n *fakeNotifier) ReactionChanged(roomID, messageID, staffID uuid.UUID, emoji string, added bool, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"reaction", roomID, recipients})
}

func (n *fakeNotifier) ReadMarked(roomID, messageID, staffID uuid.UUID, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"read.update", roomID, recipients})
}

func (n *fakeNotifier) RoomUpdated(room *domain.Room, recipients []uuid.UUID) {
	n.calls = append(n.calls, notifierCall{"room.updated", room.ID, recipients})
}

func (n *fakeNotifier) kinds() []string {
	out := make([]string, 0, len(n.calls))
	for _, c := range n.calls {
		out = append(out, c.kind)
	}
	return out
}
