package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	privacyapp "github.com/natebag/Testsite-sub005/internal/application/privacy"
	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// sender abstracts gomail delivery for tests.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// BreachNotifier delivers regulator and user breach notifications over SMTP.
type BreachNotifier struct {
	cfg              *sharedConfig.EmailConfig
	dialer           sender
	regulatorAddress string
	// resolveUsers maps affected subject ids to deliverable addresses.
	resolveUsers func(ctx context.Context, subjectIDs []string) []string
	logger       logger.Interface
}

func NewBreachNotifier(
	cfg *sharedConfig.EmailConfig,
	regulatorAddress string,
	resolveUsers func(ctx context.Context, subjectIDs []string) []string,
	log logger.Interface,
) *BreachNotifier {
	return &BreachNotifier{
		cfg:              cfg,
		dialer:           gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		regulatorAddress: regulatorAddress,
		resolveUsers:     resolveUsers,
		logger:           log.With("component", "breach_notifier"),
	}
}

var _ privacyapp.BreachNotifier = (*BreachNotifier)(nil)

func (n *BreachNotifier) NotifyRegulator(ctx context.Context, record *privacy.BreachRecord) error {
	subject := fmt.Sprintf("[%s] Personal data breach notification %s", strings.ToUpper(string(record.Severity)), record.ID)
	body := fmt.Sprintf(`Personal data breach notification.

Reference:         %s
Nature of breach:  %s
Severity:          %s
Detected at:       %s
Affected subjects: %d

%s

This notification is submitted within the regulatory deadline of %s.
`,
		record.ID,
		record.Kind,
		record.Severity,
		record.DetectedAt.Format("2006-01-02 15:04:05 MST"),
		len(record.AffectedSubjects),
		record.Description,
		record.RegulatorDeadline.Format("2006-01-02 15:04:05 MST"),
	)

	if err := n.send(n.regulatorAddress, subject, body); err != nil {
		n.logger.Errorw("regulator notification failed", "breach_id", record.ID, "error", err)
		return err
	}
	n.logger.Infow("regulator notified", "breach_id", record.ID)
	return nil
}

func (n *BreachNotifier) NotifyUsers(ctx context.Context, record *privacy.BreachRecord) error {
	var recipients []string
	if n.resolveUsers != nil {
		recipients = n.resolveUsers(ctx, record.AffectedSubjects)
	}
	if len(recipients) == 0 {
		n.logger.Warnw("no deliverable addresses for breach", "breach_id", record.ID)
		return nil
	}

	subject := "Important: a security incident may have affected your account"
	body := fmt.Sprintf(`We detected a security incident on %s that may have involved your personal data.

What happened: %s

What we are doing: the incident has been contained and reported to the supervisory authority. We recommend reviewing your recent account activity.

Reference: %s
`,
		record.DetectedAt.Format("2006-01-02"),
		record.Description,
		record.ID,
	)

	var failed int
	for _, to := range recipients {
		if err := n.send(to, subject, body); err != nil {
			n.logger.Errorw("user notification failed", "breach_id", record.ID, "to", to, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to notify %d of %d users", failed, len(recipients))
	}
	n.logger.Infow("users notified", "breach_id", record.ID, "count", len(recipients))
	return nil
}

func (n *BreachNotifier) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(n.cfg.FromAddress, n.cfg.FromName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
