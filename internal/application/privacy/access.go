package privacy

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// ConsentSetting is the current state of one processing purpose, derived
// from the head of the subject's consent ledger.
type ConsentSetting struct {
	Purpose   string            `json:"purpose"`
	Basis     domain.LegalBasis `json:"basis"`
	Given     bool              `json:"given"`
	Effective bool              `json:"effective"`
	Expiry    *time.Time        `json:"expiry,omitempty"`
}

// AccessArtifact is the single document returned for an access request. It
// carries the stored data itself, the full consent history, the subject's
// processing-activity log and the current per-purpose settings.
type AccessArtifact struct {
	SubjectID      string                                       `json:"subject_id"`
	GeneratedAt    time.Time                                    `json:"generated_at"`
	Categories     map[domain.DataCategory][]domain.FieldRecord `json:"categories"`
	ConsentHistory []*domain.ConsentRecord                      `json:"consent_history"`
	Activity       []domain.ActivityEntry                       `json:"activity"`
	Settings       []ConsentSetting                             `json:"settings"`
	RecordCount    int                                          `json:"record_count"`
}

// AccessUseCase services access requests: collect every category, attach
// the consent history, activity log and settings, and freeze the request.
type AccessUseCase struct {
	requests     domain.RequestRepository
	consents     domain.ConsentRepository
	store        domain.SubjectStore
	audit        domain.AuditLog
	retryElapsed time.Duration
	logger       logger.Interface
}

func NewAccessUseCase(
	requests domain.RequestRepository,
	consents domain.ConsentRepository,
	store domain.SubjectStore,
	audit domain.AuditLog,
	retryElapsed time.Duration,
	logger logger.Interface,
) *AccessUseCase {
	return &AccessUseCase{
		requests:     requests,
		consents:     consents,
		store:        store,
		audit:        audit,
		retryElapsed: retryElapsed,
		logger:       logger,
	}
}

func (uc *AccessUseCase) Execute(ctx context.Context, subjectID string) (*AccessArtifact, error) {
	request, err := domain.NewPrivacyRequest(uuid.NewString(), domain.RequestAccess, subjectID)
	if err != nil {
		return nil, err
	}
	if err := uc.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	uc.transition(ctx, request, domain.StateProcessing, "")

	var records []domain.FieldRecord
	err = withRetry(ctx, uc.retryElapsed, func() error {
		var cerr error
		records, cerr = uc.store.Collect(ctx, subjectID, domain.AllCategories())
		return cerr
	})
	if err != nil {
		uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
		return nil, err
	}

	history, err := uc.consents.History(ctx, subjectID)
	if err != nil {
		uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
		return nil, err
	}

	activity, err := uc.audit.ActivityFor(ctx, subjectID)
	if err != nil {
		uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
		return nil, err
	}

	artifact := &AccessArtifact{
		SubjectID:   subjectID,
		GeneratedAt: time.Now(),
		Categories:  make(map[domain.DataCategory][]domain.FieldRecord),
	}
	for _, rec := range records {
		artifact.Categories[rec.Category] = append(artifact.Categories[rec.Category], rec)
		artifact.RecordCount++
	}
	artifact.ConsentHistory = history
	artifact.Activity = activity
	artifact.Settings = consentSettings(history, time.Now())

	uc.transition(ctx, request, domain.StateCompleted, "")
	uc.logger.Infow("access request completed",
		"subject_id", subjectID, "records", artifact.RecordCount)
	return artifact, nil
}

// consentSettings reduces a ledger history to its head record per purpose,
// in first-seen purpose order.
func consentSettings(history []*domain.ConsentRecord, now time.Time) []ConsentSetting {
	heads := make(map[string]*domain.ConsentRecord, len(history))
	var order []string
	for _, r := range history {
		if _, seen := heads[r.Purpose]; !seen {
			order = append(order, r.Purpose)
		}
		heads[r.Purpose] = r
	}

	settings := make([]ConsentSetting, 0, len(order))
	for _, purpose := range order {
		r := heads[purpose]
		settings = append(settings, ConsentSetting{
			Purpose:   purpose,
			Basis:     r.Basis,
			Given:     r.Given,
			Effective: r.Effective(now),
			Expiry:    r.Expiry,
		})
	}
	return settings
}

// transition records a state change and its audit entry; the audit write is
// best-effort only for non-terminal hops.
func (uc *AccessUseCase) transition(ctx context.Context, r *domain.PrivacyRequest, next domain.RequestState, reason string) {
	transitionRequest(ctx, uc.requests, uc.audit, r, next, reason, uc.logger)
}
