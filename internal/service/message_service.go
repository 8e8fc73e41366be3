package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/crypto"
	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

// RedactedContent replaces message bodies that fail decryption. The raw blob
// is never surfaced to readers.
const RedactedContent = "[message unavailable]"

const previewLength = 100

// MessageService drives the message half of the lifecycle: every mutation is
// checked against the authorization engine first, content passes through the
// crypto envelope on the way to storage, and results fan out via the notifier.
type MessageService struct {
	messages     repository.MessageRepository
	rooms        repository.RoomRepository
	participants repository.ParticipantRepository
	attachments  repository.AttachmentRepository
	reactions    repository.ReactionRepository
	receipts     repository.ReceiptRepository
	audit        repository.AuditRepository
	staff        repository.StaffRepository
	authz        *authz.Engine
	envelope     *crypto.Envelope
	notifier     Notifier

	// historyBackfill is how many pre-join messages a new participant can see.
	historyBackfill int
}

func NewMessageService(
	messages repository.MessageRepository,
	rooms repository.RoomRepository,
	participants repository.ParticipantRepository,
	attachments repository.AttachmentRepository,
	reactions repository.ReactionRepository,
	receipts repository.ReceiptRepository,
	audit repository.AuditRepository,
	staff repository.StaffRepository,
	engine *authz.Engine,
	envelope *crypto.Envelope,
	historyBackfill int,
) *MessageService {
	return &MessageService{
		messages:        messages,
		rooms:           rooms,
		participants:    participants,
		attachments:     attachments,
		reactions:       reactions,
		receipts:        receipts,
		audit:           audit,
		staff:           staff,
		authz:           engine,
		envelope:        envelope,
		historyBackfill: historyBackfill,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type AttachmentInput struct {
	Type       string `json:"type"`
	StorageKey string `json:"storage_key"`
	SizeBytes  int64  `json:"size_bytes"`
	MimeType   string `json:"mime_type"`
}

type SendMessageInput struct {
	Content     string             `json:"content"`
	Type        domain.MessageType `json:"type"`
	ReplyToID   *uuid.UUID         `json:"reply_to_id,omitempty"`
	Attachments []AttachmentInput  `json:"attachments,omitempty"`
}

type MessageListResponse struct {
	Messages    []domain.Message    `json:"messages"`
	Reactions   []domain.Reaction   `json:"reactions"`
	Receipts    []domain.Receipt    `json:"receipts"`
	Attachments []domain.Attachment `json:"attachments"`
	HasMore     bool                `json:"has_more"`
}

// Send persists a message and fans it out to all current participants,
// including the sender's other connections.
func (s *MessageService) Send(ctx context.Context, actorID, roomID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	action := authz.ActionSendMessage
	switch {
	case len(input.Attachments) > 0:
		action = authz.ActionUploadMedia
	case input.ReplyToID != nil:
		action = authz.ActionReplyToMessage
	}
	d, err := s.authz.Check(ctx, action, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	for _, a := range input.Attachments {
		if err := authz.ValidateMedia(a.MimeType, a.SizeBytes); err != nil {
			return nil, err
		}
	}

	msgType := input.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
		if len(input.Attachments) > 0 {
			msgType = domain.MessageTypeMedia
		}
	}

	msg := &domain.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  actorID,
		Content:   input.Content,
		Type:      msgType,
		ReplyToID: input.ReplyToID,
		CreatedAt: time.Now(),
	}
	if err := s.persistNew(ctx, msg, input.Attachments); err != nil {
		return nil, err
	}
	s.finishSend(ctx, msg, input.Content)
	return msg, nil
}

// persistNew seals the content when encryption is configured and writes the
// message plus its attachments. msg.Content is restored to plaintext before
// returning.
func (s *MessageService) persistNew(ctx context.Context, msg *domain.Message, attachments []AttachmentInput) error {
	plaintext := msg.Content
	if s.envelope.Enabled() {
		sealed, err := s.envelope.Encrypt(plaintext)
		if err != nil {
			return fmt.Errorf("encrypting message: %w", err)
		}
		msg.Content = sealed
		msg.IsEncrypted = true
		msg.KeyVersion = crypto.KeyVersion
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("creating message: %w", err)
	}
	msg.Content = plaintext

	now := msg.CreatedAt
	for _, a := range attachments {
		key := a.StorageKey
		att := &domain.Attachment{
			ID:         uuid.New(),
			MessageID:  msg.ID,
			Type:       a.Type,
			StorageKey: &key,
			SizeBytes:  a.SizeBytes,
			MimeType:   a.MimeType,
			CreatedAt:  now,
			ExpiresAt:  now.Add(domain.AttachmentLifetime),
		}
		if err := s.attachments.Create(ctx, att); err != nil {
			return fmt.Errorf("creating attachment: %w", err)
		}
	}
	return nil
}

func (s *MessageService) finishSend(ctx context.Context, msg *domain.Message, plaintext string) {
	if sender, err := s.staff.GetByID(ctx, msg.SenderID); err == nil && sender != nil {
		msg.SenderName = sender.DisplayName
	}

	preview := plaintext
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	if preview == "" && msg.Type == domain.MessageTypeMedia {
		preview = "[media]"
	}
	if err := s.rooms.SetLastMessage(ctx, msg.RoomID, msg.CreatedAt, preview); err != nil {
		log.Printf("chat: updating room preview: %v", err)
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(msg, s.recipientIDs(ctx, msg.RoomID))
	}
}

// List returns a page of room history, oldest first. Participants see full
// history from their join date plus a short configurable back-context;
// admins reading a room they never joined see everything.
func (s *MessageService) List(ctx context.Context, actorID, roomID uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var visibleFrom time.Time
	if p, err := s.participants.Get(ctx, roomID, actorID); err != nil {
		return nil, err
	} else if p != nil {
		visibleFrom = p.JoinedAt
	}

	messages, err := s.messages.ListByRoom(ctx, roomID, before, limit+1, visibleFrom, s.historyBackfill)
	if err != nil {
		return nil, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	ids := make([]uuid.UUID, 0, len(messages))
	for i := range messages {
		s.decryptForRead(ctx, actorID, &messages[i])
		ids = append(ids, messages[i].ID)
	}

	resp := &MessageListResponse{Messages: messages, HasMore: hasMore}
	if resp.Reactions, err = s.reactions.ListForMessages(ctx, ids); err != nil {
		return nil, err
	}
	if resp.Receipts, err = s.receipts.ListForMessages(ctx, ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		atts, err := s.attachments.ListByMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		resp.Attachments = append(resp.Attachments, atts...)
	}
	return resp, nil
}

// Edit re-encrypts the new content and stamps the editing actor. The edit
// window and room state checks live in the authorization rules.
func (s *MessageService) Edit(ctx context.Context, actorID, messageID uuid.UUID, content string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.DeletedAt != nil {
		return nil, ErrMessageNotFound
	}

	d, err := s.authz.Check(ctx, authz.ActionEditMessage, actorID, msg.RoomID, &messageID)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	now := time.Now()
	msg.Content = content
	msg.IsEncrypted = false
	msg.KeyVersion = 0
	msg.EditedAt = &now
	msg.EditedBy = &actorID
	if s.envelope.Enabled() {
		sealed, err := s.envelope.Encrypt(content)
		if err != nil {
			return nil, fmt.Errorf("encrypting edited message: %w", err)
		}
		msg.Content = sealed
		msg.IsEncrypted = true
		msg.KeyVersion = crypto.KeyVersion
	}
	if err := s.messages.UpdateContent(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	msg.Content = content

	if s.notifier != nil {
		s.notifier.MessageEdited(msg, s.recipientIDs(ctx, msg.RoomID))
	}
	return msg, nil
}

// Delete soft-deletes a message. Senders may delete their own recent
// messages; admins may delete any message. Deleting an already-deleted
// message is a no-op, which keeps concurrent deletes idempotent.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.DeletedAt != nil {
		return nil
	}

	var d authz.Decision
	if msg.SenderID == actorID {
		d, err = s.authz.Check(ctx, authz.ActionDeleteOwnMessage, actorID, msg.RoomID, &messageID)
		if err != nil {
			return err
		}
		if !d.Allowed {
			// An admin deleting their own stale message falls through to
			// the any-message rule.
			alt, err := s.authz.Check(ctx, authz.ActionDeleteAnyMessage, actorID, msg.RoomID, &messageID)
			if err != nil {
				return err
			}
			if alt.Allowed {
				d = alt
			}
		}
	} else {
		d, err = s.authz.Check(ctx, authz.ActionDeleteAnyMessage, actorID, msg.RoomID, &messageID)
		if err != nil {
			return err
		}
	}
	if !d.Allowed {
		return denied(d)
	}

	now := time.Now()
	if err := s.messages.SoftDelete(ctx, messageID, actorID, now); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	s.appendAudit(ctx, "message_deleted", actorID, msg.RoomID, map[string]any{"message_id": messageID})

	if s.notifier != nil {
		s.notifier.MessageDeleted(msg.RoomID, messageID, s.recipientIDs(ctx, msg.RoomID))
	}
	return nil
}

func (s *MessageService) SetPinned(ctx context.Context, actorID, messageID uuid.UUID, pinned bool) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.DeletedAt != nil {
		return nil, ErrMessageNotFound
	}

	d, err := s.authz.Check(ctx, authz.ActionSendMessage, actorID, msg.RoomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	if pinned {
		now := time.Now()
		msg.IsPinned, msg.PinnedAt, msg.PinnedBy = true, &now, &actorID
	} else {
		msg.IsPinned, msg.PinnedAt, msg.PinnedBy = false, nil, nil
	}
	if err := s.messages.SetPinned(ctx, messageID, pinned, msg.PinnedBy, msg.PinnedAt); err != nil {
		return nil, fmt.Errorf("pinning message: %w", err)
	}
	s.decryptForRead(ctx, actorID, msg)

	if s.notifier != nil {
		s.notifier.MessagePinned(msg, pinned, s.recipientIDs(ctx, msg.RoomID))
	}
	return msg, nil
}

func (s *MessageService) ListPinned(ctx context.Context, actorID, roomID uuid.UUID) ([]domain.Message, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	pinned, err := s.messages.ListPinned(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range pinned {
		s.decryptForRead(ctx, actorID, &pinned[i])
	}
	return pinned, nil
}

// Forward creates a new message in the target room referencing the original
// and carrying a frozen preview of it, so the copy stays legible even if the
// source is later deleted or becomes inaccessible.
func (s *MessageService) Forward(ctx context.Context, actorID, messageID, targetRoomID uuid.UUID) (*domain.Message, error) {
	orig, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if orig == nil || orig.DeletedAt != nil {
		return nil, ErrMessageNotFound
	}

	d, err := s.authz.CheckForward(ctx, actorID, orig.RoomID, messageID, &targetRoomID)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	plaintext := orig.Content
	if orig.IsEncrypted || crypto.IsEncrypted(orig.Content) {
		plaintext, err = s.envelope.Decrypt(orig.Content)
		if err != nil {
			return nil, fmt.Errorf("reading original message: %w", err)
		}
	}

	msg := &domain.Message{
		ID:                     uuid.New(),
		RoomID:                 targetRoomID,
		SenderID:               actorID,
		Content:                plaintext,
		Type:                   orig.Type,
		ForwardedFromMessageID: &orig.ID,
		ForwardedFromRoomID:    &orig.RoomID,
		ForwardPreview: &domain.ForwardPreview{
			SenderID: orig.SenderID,
			Content:  plaintext,
			Type:     orig.Type,
			SentAt:   orig.CreatedAt,
		},
		CreatedAt: time.Now(),
	}
	if err := s.persistNew(ctx, msg, nil); err != nil {
		return nil, err
	}
	s.finishSend(ctx, msg, plaintext)
	return msg, nil
}

func (s *MessageService) React(ctx context.Context, actorID, messageID uuid.UUID, emoji string, add bool) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.DeletedAt != nil {
		return ErrMessageNotFound
	}

	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, msg.RoomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}

	if add {
		err = s.reactions.Add(ctx, &domain.Reaction{MessageID: messageID, StaffID: actorID, Emoji: emoji, CreatedAt: time.Now()})
	} else {
		err = s.reactions.Remove(ctx, messageID, actorID, emoji)
	}
	if err != nil {
		return fmt.Errorf("updating reaction: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ReactionChanged(msg.RoomID, messageID, actorID, emoji, add, s.recipientIDs(ctx, msg.RoomID))
	}
	return nil
}

// MarkRead advances the actor's last-read marker and broadcasts a read event
// to the room, excluding the actor's own connections.
func (s *MessageService) MarkRead(ctx context.Context, actorID, roomID, messageID uuid.UUID) error {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}

	now := time.Now()
	if err := s.participants.UpdateLastRead(ctx, roomID, actorID, now); err != nil {
		return fmt.Errorf("updating last read: %w", err)
	}
	if err := s.receipts.Mark(ctx, &domain.Receipt{MessageID: messageID, StaffID: actorID, Kind: domain.ReceiptRead, CreatedAt: now}); err != nil {
		return fmt.Errorf("marking read: %w", err)
	}

	if s.notifier != nil {
		recipients := s.recipientIDs(ctx, roomID)
		filtered := recipients[:0]
		for _, id := range recipients {
			if id != actorID {
				filtered = append(filtered, id)
			}
		}
		s.notifier.ReadMarked(roomID, messageID, actorID, filtered)
	}
	return nil
}

func (s *MessageService) MarkDelivered(ctx context.Context, actorID, messageID uuid.UUID) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, msg.RoomID, nil)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return denied(d)
	}

	receipt := &domain.Receipt{MessageID: messageID, StaffID: actorID, Kind: domain.ReceiptDelivered, CreatedAt: time.Now()}
	return s.receipts.Mark(ctx, receipt)
}

func (s *MessageService) Search(ctx context.Context, actorID, roomID uuid.UUID, filter repository.MessageFilter) ([]domain.Message, error) {
	d, err := s.authz.Check(ctx, authz.ActionViewRoom, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}
	results, err := s.messages.Search(ctx, roomID, filter)
	if err != nil {
		return nil, err
	}
	for i := range results {
		s.decryptForRead(ctx, actorID, &results[i])
	}
	return results, nil
}

// decryptForRead opens stored content in place. Corrupt ciphertext never
// reaches the reader: the body is redacted and the failure is audit-logged.
func (s *MessageService) decryptForRead(ctx context.Context, readerID uuid.UUID, msg *domain.Message) {
	if !msg.IsEncrypted && !crypto.IsEncrypted(msg.Content) {
		return
	}
	plaintext, err := s.envelope.Decrypt(msg.Content)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryption) {
			log.Printf("chat: decrypt failed for message %s: %v", msg.ID, err)
			s.appendAudit(ctx, "message_decrypt_failed", readerID, msg.RoomID, map[string]any{"message_id": msg.ID})
		}
		msg.Content = RedactedContent
		return
	}
	msg.Content = plaintext
}

func (s *MessageService) recipientIDs(ctx context.Context, roomID uuid.UUID) []uuid.UUID {
	participants, err := s.participants.ListByRoom(ctx, roomID)
	if err != nil {
		log.Printf("chat: listing participants for fan-out: %v", err)
		return nil
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.StaffID)
	}
	return ids
}

func (s *MessageService) appendAudit(ctx context.Context, action string, actorID uuid.UUID, roomID uuid.UUID, details map[string]any) {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		ActorID:   actorID,
		RoomID:    &roomID,
		Details:   details,
		CreatedAt: time.Now(),
	}
	_ = s.audit.Append(ctx, entry)
}
