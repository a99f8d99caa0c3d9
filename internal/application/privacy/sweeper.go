package privacy

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Sweeper runs the periodic compliance jobs: expiring stale consents and
// chasing overdue breach notifications.
type Sweeper struct {
	consents domain.ConsentRepository
	breaches domain.BreachRepository
	notifier BreachNotifier
	audit    domain.AuditLog
	interval time.Duration
	logger   logger.Interface

	scheduler gocron.Scheduler
}

func NewSweeper(
	consents domain.ConsentRepository,
	breaches domain.BreachRepository,
	notifier BreachNotifier,
	audit domain.AuditLog,
	interval time.Duration,
	logger logger.Interface,
) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		consents: consents,
		breaches: breaches,
		notifier: notifier,
		audit:    audit,
		interval: interval,
		logger:   logger,
	}
}

func (s *Sweeper) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.SweepConsents),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("consent-expiry-sweeper"),
	); err != nil {
		return err
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.SweepBreachDeadlines),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("breach-deadline-sweeper"),
	); err != nil {
		return err
	}

	scheduler.Start()
	s.logger.Infow("privacy sweeper started", "interval", s.interval)
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
}

// SweepConsents appends a withdrawal record for every consent that expired,
// so Check turns invalid without mutating history.
func (s *Sweeper) SweepConsents() {
	ctx := context.Background()
	expiring, err := s.consents.ExpiringBefore(ctx, time.Now())
	if err != nil {
		s.logger.Errorw("consent sweep failed", "error", err)
		return
	}

	for _, record := range expiring {
		withdrawal, err := domain.NewConsentRecord(
			record.SubjectID, record.Purpose, record.Basis, false, record.Version, nil)
		if err != nil {
			s.logger.Errorw("failed to build expiry withdrawal",
				"subject_id", record.SubjectID, "error", err)
			continue
		}
		if err := s.consents.Append(ctx, withdrawal); err != nil {
			s.logger.Errorw("failed to append expiry withdrawal",
				"subject_id", record.SubjectID, "error", err)
			continue
		}
		s.audit.Append(ctx, "system", "consent:expired", map[string]any{
			"subject_id": record.SubjectID,
			"purpose":    record.Purpose,
		})
	}
	if len(expiring) > 0 {
		s.logger.Infow("expired consents swept", "count", len(expiring))
	}
}

// SweepBreachDeadlines retries notification delivery for open breaches
// approaching their deadlines.
func (s *Sweeper) SweepBreachDeadlines() {
	ctx := context.Background()
	open, err := s.breaches.ListOpen(ctx)
	if err != nil {
		s.logger.Errorw("breach sweep failed", "error", err)
		return
	}

	for _, record := range open {
		changed := false
		if !record.RegulatorNotified {
			if err := s.notifier.NotifyRegulator(ctx, record); err != nil {
				s.logger.Errorw("regulator notification retry failed",
					"breach_id", record.ID, "error", err)
			} else {
				record.RegulatorNotified = true
				changed = true
			}
		}
		if !record.UsersNotified {
			if err := s.notifier.NotifyUsers(ctx, record); err != nil {
				s.logger.Errorw("user notification retry failed",
					"breach_id", record.ID, "error", err)
			} else {
				record.UsersNotified = true
				changed = true
			}
		}
		if changed {
			if err := s.breaches.Update(ctx, record); err != nil {
				s.logger.Errorw("failed to persist notification state",
					"breach_id", record.ID, "error", err)
			}
		}
	}
}
