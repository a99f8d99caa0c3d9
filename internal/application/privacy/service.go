package privacy

import (
	"context"
	"time"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Service is the privacy facade handed to the interface layer.
type Service struct {
	logger logger.Interface

	recordConsent *RecordConsentUseCase
	checkConsent  *CheckConsentUseCase
	access        *AccessUseCase
	rectify       *RectifyUseCase
	erase         *EraseUseCase
	export        *ExportUseCase
}

// DefaultPurposeBases fixes the legal basis per processing purpose.
func DefaultPurposeBases() map[string]domain.LegalBasis {
	return map[string]domain.LegalBasis{
		"marketing":        domain.BasisConsent,
		"analytics":        domain.BasisConsent,
		"matchmaking":      domain.BasisContract,
		"billing":          domain.BasisContract,
		"fraud_prevention": domain.BasisLegitimateInterest,
		"legal_compliance": domain.BasisLegalObligation,
	}
}

func NewService(
	cfg *sharedConfig.PrivacyConfig,
	consents domain.ConsentRepository,
	requests domain.RequestRepository,
	store domain.SubjectStore,
	integrity domain.IntegrityChecker,
	audit domain.AuditLog,
	log logger.Interface,
) *Service {
	log = log.With("component", "privacy")
	retryElapsed := time.Duration(cfg.RetryMaxElapsed) * time.Second
	defaultExpiry := time.Duration(cfg.ConsentDefaultExpiry) * time.Second
	policy := domain.DefaultErasurePolicy()

	return &Service{
		logger:        log,
		recordConsent: NewRecordConsentUseCase(consents, audit, DefaultPurposeBases(), defaultExpiry, retryElapsed, log),
		checkConsent:  NewCheckConsentUseCase(consents, log),
		access:        NewAccessUseCase(requests, consents, store, audit, retryElapsed, log),
		rectify:       NewRectifyUseCase(requests, store, audit, retryElapsed, log),
		erase:         NewEraseUseCase(requests, store, integrity, audit, policy, cfg.AnonymizationSalt, retryElapsed, log),
		export:        NewExportUseCase(requests, store, audit, policy, retryElapsed, log),
	}
}

func (s *Service) RecordConsent(ctx context.Context, req RecordConsentRequest) (*domain.ConsentRecord, error) {
	return s.recordConsent.Execute(ctx, req)
}

func (s *Service) CheckConsent(ctx context.Context, subjectID, purpose string) (*ConsentStatus, error) {
	return s.checkConsent.Execute(ctx, subjectID, purpose)
}

func (s *Service) RequestAccess(ctx context.Context, subjectID string) (*AccessArtifact, error) {
	return s.access.Execute(ctx, subjectID)
}

func (s *Service) Rectify(ctx context.Context, subjectID string, edits []domain.FieldRecord) error {
	return s.rectify.Execute(ctx, subjectID, edits)
}

func (s *Service) Erase(ctx context.Context, subjectID string) (*EraseResult, error) {
	return s.erase.Execute(ctx, subjectID)
}

func (s *Service) Export(ctx context.Context, subjectID string, categories []domain.DataCategory) (*ExportArtifact, error) {
	return s.export.Execute(ctx, subjectID, categories)
}
