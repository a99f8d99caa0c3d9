package privacy

import (
	"context"
	"time"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
	"github.com/natebag/Testsite-sub005/internal/shared/validation"
)

// RecordConsentRequest is the input for appending a consent ledger entry.
type RecordConsentRequest struct {
	SubjectID string `validate:"required,max=64"`
	Purpose   string `validate:"required,max=64"`
	Given     bool
	Version   string `validate:"required,max=32"`
	Meta      map[string]string
}

// RecordConsentUseCase appends consent decisions. The legal basis per
// purpose is fixed by configuration; subjects cannot choose it.
type RecordConsentUseCase struct {
	consents      domain.ConsentRepository
	audit         domain.AuditLog
	basisFor      map[string]domain.LegalBasis
	defaultExpiry time.Duration
	retryElapsed  time.Duration
	logger        logger.Interface
}

func NewRecordConsentUseCase(
	consents domain.ConsentRepository,
	audit domain.AuditLog,
	basisFor map[string]domain.LegalBasis,
	defaultExpiry, retryElapsed time.Duration,
	logger logger.Interface,
) *RecordConsentUseCase {
	return &RecordConsentUseCase{
		consents:      consents,
		audit:         audit,
		basisFor:      basisFor,
		defaultExpiry: defaultExpiry,
		retryElapsed:  retryElapsed,
		logger:        logger,
	}
}

func (uc *RecordConsentUseCase) Execute(ctx context.Context, req RecordConsentRequest) (*domain.ConsentRecord, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, err
	}
	basis, ok := uc.basisFor[req.Purpose]
	if !ok {
		return nil, errors.NewValidationError("unknown processing purpose: " + req.Purpose)
	}

	var expiry *time.Time
	if basis == domain.BasisConsent && req.Given && uc.defaultExpiry > 0 {
		e := time.Now().Add(uc.defaultExpiry)
		expiry = &e
	}

	record, err := domain.NewConsentRecord(req.SubjectID, req.Purpose, basis, req.Given, req.Version, expiry)
	if err != nil {
		return nil, err
	}
	record.Meta = req.Meta

	if err := withRetry(ctx, uc.retryElapsed, func() error {
		return uc.consents.Append(ctx, record)
	}); err != nil {
		uc.logger.Errorw("failed to append consent record",
			"subject_id", req.SubjectID, "purpose", req.Purpose, "error", err)
		return nil, err
	}

	uc.audit.Append(ctx, req.SubjectID, "consent:recorded", map[string]any{
		"purpose": req.Purpose,
		"given":   req.Given,
		"version": req.Version,
	})
	return record, nil
}

// ConsentStatus is the answer to a consent check.
type ConsentStatus struct {
	Valid  bool
	Record *domain.ConsentRecord
}

// CheckConsentUseCase resolves the latest ledger entry for a subject and
// purpose.
type CheckConsentUseCase struct {
	consents domain.ConsentRepository
	logger   logger.Interface
}

func NewCheckConsentUseCase(consents domain.ConsentRepository, logger logger.Interface) *CheckConsentUseCase {
	return &CheckConsentUseCase{consents: consents, logger: logger}
}

func (uc *CheckConsentUseCase) Execute(ctx context.Context, subjectID, purpose string) (*ConsentStatus, error) {
	record, err := uc.consents.Latest(ctx, subjectID, purpose)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &ConsentStatus{Valid: false}, nil
	}
	return &ConsentStatus{Valid: record.Effective(time.Now()), Record: record}, nil
}
