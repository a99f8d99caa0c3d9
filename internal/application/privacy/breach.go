package privacy

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/goroutine"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// AccessEvent is one observation fed to the breach detectors.
type AccessEvent struct {
	Actor      string
	Action     string
	Resource   string
	SubjectIDs []string
	Authorized bool
	HasConsent bool
	Volume     int
	Timestamp  time.Time
}

// Finding is a positive detection.
type Finding struct {
	Kind        domain.BreachKind
	Severity    domain.BreachSeverity
	Description string
}

// Detector inspects one event and reports a finding, or nil.
type Detector interface {
	Name() string
	Detect(event AccessEvent) *Finding
}

// BreachNotifier delivers regulator and user notifications.
type BreachNotifier interface {
	NotifyRegulator(ctx context.Context, record *domain.BreachRecord) error
	NotifyUsers(ctx context.Context, record *domain.BreachRecord) error
}

// BreachMonitor runs detectors over the event stream, opens breach records
// and dispatches the notification tasks inside the configured deadlines.
type BreachMonitor struct {
	breaches          domain.BreachRepository
	audit             domain.AuditLog
	notifier          BreachNotifier
	detectors         []Detector
	regulatorDeadline time.Duration
	userDeadline      time.Duration
	logger            logger.Interface
}

func NewBreachMonitor(
	breaches domain.BreachRepository,
	audit domain.AuditLog,
	notifier BreachNotifier,
	detectors []Detector,
	regulatorDeadline, userDeadline time.Duration,
	logger logger.Interface,
) *BreachMonitor {
	if regulatorDeadline <= 0 {
		regulatorDeadline = 72 * time.Hour
	}
	if userDeadline <= 0 {
		userDeadline = 96 * time.Hour
	}
	return &BreachMonitor{
		breaches:          breaches,
		audit:             audit,
		notifier:          notifier,
		detectors:         detectors,
		regulatorDeadline: regulatorDeadline,
		userDeadline:      userDeadline,
		logger:            logger,
	}
}

// Process feeds one event through every detector. The first finding opens a
// breach record; notification delivery runs asynchronously.
func (m *BreachMonitor) Process(ctx context.Context, event AccessEvent) (*domain.BreachRecord, error) {
	for _, detector := range m.detectors {
		finding := m.detect(detector, event)
		if finding == nil {
			continue
		}

		now := time.Now()
		record := &domain.BreachRecord{
			ID:                uuid.NewString(),
			Kind:              finding.Kind,
			Severity:          finding.Severity,
			Description:       finding.Description,
			AffectedSubjects:  event.SubjectIDs,
			DetectedAt:        now,
			RegulatorDeadline: now.Add(m.regulatorDeadline),
			UserDeadline:      now.Add(m.userDeadline),
		}
		if err := m.breaches.Create(ctx, record); err != nil {
			return nil, err
		}

		m.audit.Append(ctx, event.Actor, "breach:detected", map[string]any{
			"breach_id": record.ID,
			"kind":      record.Kind,
			"severity":  record.Severity,
			"detector":  detector.Name(),
		})
		m.logger.Warnw("breach detected",
			"breach_id", record.ID,
			"kind", record.Kind,
			"severity", record.Severity,
			"detector", detector.Name())

		goroutine.SafeGo(m.logger, "breach-notify", func() {
			m.notify(context.WithoutCancel(ctx), record)
		})
		return record, nil
	}
	return nil, nil
}

// Guard runs Process and converts a finding into its typed error so intake
// call sites can abort the triggering operation.
func (m *BreachMonitor) Guard(ctx context.Context, event AccessEvent) error {
	record, err := m.Process(ctx, event)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return errors.NewBreachDetectedError(record.ID, string(record.Kind), string(record.Severity))
}

func (m *BreachMonitor) detect(d Detector, event AccessEvent) (finding *Finding) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorw("breach detector panicked", "detector", d.Name(), "panic", r)
			finding = nil
		}
	}()
	return d.Detect(event)
}

func (m *BreachMonitor) notify(ctx context.Context, record *domain.BreachRecord) {
	if err := m.notifier.NotifyRegulator(ctx, record); err != nil {
		m.logger.Errorw("regulator notification failed", "breach_id", record.ID, "error", err)
	} else {
		record.RegulatorNotified = true
	}
	if err := m.notifier.NotifyUsers(ctx, record); err != nil {
		m.logger.Errorw("user notification failed", "breach_id", record.ID, "error", err)
	} else {
		record.UsersNotified = true
	}
	if err := m.breaches.Update(ctx, record); err != nil {
		m.logger.Errorw("failed to persist notification state", "breach_id", record.ID, "error", err)
	}
}

// UnauthorizedAccessDetector flags reads of subject data without
// authorization.
type UnauthorizedAccessDetector struct{}

func (UnauthorizedAccessDetector) Name() string { return "unauthorized_access" }

func (UnauthorizedAccessDetector) Detect(event AccessEvent) *Finding {
	if event.Action == "read" && !event.Authorized {
		return &Finding{
			Kind:        domain.BreachUnauthorizedAccess,
			Severity:    domain.SeverityHigh,
			Description: "unauthorized read of subject data by " + event.Actor,
		}
	}
	return nil
}

// ExfiltrationDetector flags bulk reads above the volume threshold.
type ExfiltrationDetector struct {
	VolumeThreshold int
}

func (ExfiltrationDetector) Name() string { return "exfiltration" }

func (d ExfiltrationDetector) Detect(event AccessEvent) *Finding {
	threshold := d.VolumeThreshold
	if threshold <= 0 {
		threshold = 1000
	}
	if event.Action == "read" && event.Volume >= threshold {
		return &Finding{
			Kind:        domain.BreachExfiltration,
			Severity:    domain.SeverityCritical,
			Description: "bulk read above exfiltration threshold",
		}
	}
	return nil
}

// IntegrityViolationDetector flags writes to immutable competitive records.
type IntegrityViolationDetector struct{}

func (IntegrityViolationDetector) Name() string { return "integrity_violation" }

func (IntegrityViolationDetector) Detect(event AccessEvent) *Finding {
	if event.Action != "write" {
		return nil
	}
	switch event.Resource {
	case "tournament_results", "voting_history", "onchain_records":
		return &Finding{
			Kind:        domain.BreachIntegrityViolation,
			Severity:    domain.SeverityCritical,
			Description: "write to immutable resource " + event.Resource,
		}
	}
	return nil
}

// ConsentViolationDetector flags processing without an effective consent.
type ConsentViolationDetector struct{}

func (ConsentViolationDetector) Name() string { return "consent_violation" }

func (ConsentViolationDetector) Detect(event AccessEvent) *Finding {
	if event.Action == "process" && !event.HasConsent {
		return &Finding{
			Kind:        domain.BreachConsentViolation,
			Severity:    domain.SeverityMedium,
			Description: "processing without effective consent",
		}
	}
	return nil
}
