package services

import (
	"context"
	"fmt"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StaleCheckoutStore expires checkouts nobody came back from
type StaleCheckoutStore interface {
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// CronService runs scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	payments   StaleCheckoutStore
	audit      PaymentAuditor
	pendingTTL time.Duration
	jobTimeout time.Duration
	now        func() time.Time
	logger     *logrus.Logger
}

// NewCronService creates a CronService. Schedules use the six-field format
// with seconds.
func NewCronService(payments StaleCheckoutStore, audit PaymentAuditor, pendingTTL time.Duration, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		payments:   payments,
		audit:      audit,
		pendingTTL: pendingTTL,
		jobTimeout: time.Minute,
		now:        time.Now,
		logger:     logger,
	}
}

// Start schedules the stale checkout sweep and starts the scheduler
func (s *CronService) Start(sweepSchedule string) error {
	if s.pendingTTL <= 0 {
		return fmt.Errorf("pending checkout ttl must be positive")
	}

	// "0 */15 * * * *" = every 15 minutes
	if _, err := s.cron.AddFunc(sweepSchedule, s.expireStaleCheckoutsJob); err != nil {
		return fmt.Errorf("failed to schedule stale checkout sweep: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"schedule":    sweepSchedule,
		"pending_ttl": s.pendingTTL.String(),
	}).Info("✓ Scheduled: Expire stale checkouts")

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Cron service stopped")
}

func (s *CronService) expireStaleCheckoutsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if _, err := s.ExpireStaleCheckouts(ctx); err != nil {
		s.logger.WithError(err).Error("[CRON] Stale checkout sweep failed")
	}
}

// ExpireStaleCheckouts fails every checkout pending for longer than the TTL.
// Units and allocations are untouched.
func (s *CronService) ExpireStaleCheckouts(ctx context.Context) (int, error) {
	start := s.now()
	cutoff := start.Add(-s.pendingTTL)

	references, err := s.payments.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, ref := range references {
		entry := models.NewPaymentAudit(models.PaymentEventExpired, models.PaymentSourceBackend).
			SetPaymentReference(ref).
			SetDetails(map[string]interface{}{"cutoff": cutoff.UTC().Format(time.RFC3339)})
		if err := s.audit.Log(ctx, entry); err != nil {
			s.logger.WithError(err).WithField("reference", ref).Warn("Failed to write payment audit")
		}
	}

	if len(references) > 0 {
		s.logger.WithFields(logrus.Fields{
			"expired":     len(references),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("[CRON] Expired stale checkouts")
	}
	return len(references), nil
}
