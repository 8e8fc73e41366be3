package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dpavic/casechat/internal/domain"
	"github.com/dpavic/casechat/internal/repository"
)

const sweepBatchSize = 200

// RetentionService expires attachments past their fixed 30-day lifetime.
// The sweep is idempotent: an already-expired row is never touched again, so
// running it twice (or after a missed cycle) is safe.
type RetentionService struct {
	attachments repository.AttachmentRepository
	audit       repository.AuditRepository
}

func NewRetentionService(attachments repository.AttachmentRepository, audit repository.AuditRepository) *RetentionService {
	return &RetentionService{attachments: attachments, audit: audit}
}

// SweepOnce expires every attachment whose window has passed, clearing its
// storage key and leaving the row behind as a tombstone. Returns the number
// of attachments expired.
func (s *RetentionService) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now()
	expired := 0
	for {
		batch, err := s.attachments.ListExpired(ctx, now, sweepBatchSize)
		if err != nil {
			return expired, fmt.Errorf("listing expired attachments: %w", err)
		}
		if len(batch) == 0 {
			return expired, nil
		}
		for _, a := range batch {
			reason := fmt.Sprintf("retention: attachment exceeded the %d-day window", int(domain.AttachmentLifetime.Hours()/24))
			if err := s.attachments.MarkExpired(ctx, a.ID, reason); err != nil {
				return expired, fmt.Errorf("expiring attachment %s: %w", a.ID, err)
			}
			expired++
			entry := &domain.AuditEntry{
				ID:        uuid.New(),
				Action:    "attachment_expired",
				ActorID:   uuid.Nil,
				Details:   map[string]any{"attachment_id": a.ID, "message_id": a.MessageID},
				CreatedAt: now,
			}
			_ = s.audit.Append(ctx, entry)
		}
		if len(batch) < sweepBatchSize {
			return expired, nil
		}
	}
}

// ExpiringSoon surfaces attachments expiring within the given number of
// days, for advance user warning. It enforces nothing.
func (s *RetentionService) ExpiringSoon(ctx context.Context, days int) ([]domain.Attachment, error) {
	if days <= 0 {
		days = 7
	}
	return s.attachments.ListExpiringSoon(ctx, time.Now(), time.Duration(days)*24*time.Hour)
}

// Run sweeps on the given interval until the context is cancelled. Failures
// are logged and retried next cycle; a missed sweep only delays deletion.
func (s *RetentionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("retention: sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("retention: expired %d attachments", n)
			}
		}
	}
}
