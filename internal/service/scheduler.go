package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/authz"
	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

var ErrScheduleInPast = errors.New("scheduled time must be in the future")

const dispatchBatchSize = 50

// SchedulerService defers sends. Dispatch goes through the same path as an
// interactive message, so authorization is re-checked against room state at
// send time, not at scheduling time.
type SchedulerService struct {
	scheduled repository.ScheduledMessageRepository
	staff     repository.StaffRepository
	messages  *MessageService
	authz     *authz.Engine
}

func NewSchedulerService(
	scheduled repository.ScheduledMessageRepository,
	staff repository.StaffRepository,
	messages *MessageService,
	engine *authz.Engine,
) *SchedulerService {
	return &SchedulerService{scheduled: scheduled, staff: staff, messages: messages, authz: engine}
}

func (s *SchedulerService) Create(ctx context.Context, actorID, roomID uuid.UUID, content string, at time.Time) (*domain.ScheduledMessage, error) {
	if !at.After(time.Now()) {
		return nil, ErrScheduleInPast
	}
	// Early feedback only; the decisive check happens at dispatch.
	d, err := s.authz.Check(ctx, authz.ActionSendMessage, actorID, roomID, nil)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, denied(d)
	}

	m := &domain.ScheduledMessage{
		ID:          uuid.New(),
		RoomID:      roomID,
		SenderID:    actorID,
		Content:     content,
		ScheduledAt: at,
		Status:      domain.ScheduledPending,
		CreatedAt:   time.Now(),
	}
	if err := s.scheduled.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating scheduled message: %w", err)
	}
	return m, nil
}

func (s *SchedulerService) Cancel(ctx context.Context, actorID, id uuid.UUID) error {
	m, err := s.scheduled.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrScheduledNotFound
	}
	if m.SenderID != actorID {
		actor, err := s.staff.GetByID(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || !authz.IsAdminRole(actor.Role) {
			return denied(authz.Decision{Reason: "only the sender can cancel a scheduled message"})
		}
	}
	return s.scheduled.Cancel(ctx, id)
}

// DispatchDue sends every pending message whose time has come and marks it
// sent or failed. A message denied at dispatch time (room locked, archived,
// sender removed) fails with the denial reason rather than being retried
// forever.
func (s *SchedulerService) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.scheduled.ListDue(ctx, time.Now(), dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due messages: %w", err)
	}

	sent := 0
	for _, m := range due {
		_, err := s.messages.Send(ctx, m.SenderID, m.RoomID, SendMessageInput{Content: m.Content})
		if err != nil {
			reason := err.Error()
			var perm *PermissionError
			if errors.As(err, &perm) {
				reason = perm.Decision.Reason
			}
			if markErr := s.scheduled.MarkFailed(ctx, m.ID, reason); markErr != nil {
				log.Printf("scheduler: marking %s failed: %v", m.ID, markErr)
			}
			continue
		}
		if err := s.scheduled.MarkSent(ctx, m.ID, time.Now()); err != nil {
			log.Printf("scheduler: marking %s sent: %v", m.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Run dispatches on the given interval until the context is cancelled.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DispatchDue(ctx)
			if err != nil {
				log.Printf("scheduler: dispatch failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("scheduler: dispatched %d scheduled messages", n)
			}
		}
	}
}
