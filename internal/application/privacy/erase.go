package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// EraseResult summarizes what happened to each category.
type EraseResult struct {
	AnonymousID string
	Erased      []domain.DataCategory
	Anonymized  []domain.DataCategory
	Retained    map[domain.DataCategory]string
}

// EraseUseCase services erasure requests. Integrity constraints refuse the
// whole request before any mutation; otherwise each category is erased,
// anonymized or retained per policy.
type EraseUseCase struct {
	requests     domain.RequestRepository
	store        domain.SubjectStore
	integrity    domain.IntegrityChecker
	audit        domain.AuditLog
	policy       map[domain.DataCategory]domain.CategoryPolicy
	salt         string
	retryElapsed time.Duration
	logger       logger.Interface
}

func NewEraseUseCase(
	requests domain.RequestRepository,
	store domain.SubjectStore,
	integrity domain.IntegrityChecker,
	audit domain.AuditLog,
	policy map[domain.DataCategory]domain.CategoryPolicy,
	salt string,
	retryElapsed time.Duration,
	logger logger.Interface,
) *EraseUseCase {
	if policy == nil {
		policy = domain.DefaultErasurePolicy()
	}
	return &EraseUseCase{
		requests:     requests,
		store:        store,
		integrity:    integrity,
		audit:        audit,
		policy:       policy,
		salt:         salt,
		retryElapsed: retryElapsed,
		logger:       logger,
	}
}

// AnonymousID derives the stable pseudonym used to keep aggregates
// consistent after erasure. It never appears next to the subject id outside
// the audit trail.
func (uc *EraseUseCase) AnonymousID(subjectID string) string {
	sum := sha256.Sum256([]byte(subjectID + uc.salt))
	return "anon_" + hex.EncodeToString(sum[:16])
}

func (uc *EraseUseCase) Execute(ctx context.Context, subjectID string) (*EraseResult, error) {
	request, err := domain.NewPrivacyRequest(uuid.NewString(), domain.RequestErasure, subjectID)
	if err != nil {
		return nil, err
	}
	if err := uc.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	uc.transition(ctx, request, domain.StateProcessing, "")

	constraints, err := uc.integrity.ErasureConstraints(ctx, subjectID)
	if err != nil {
		uc.transition(ctx, request, domain.StateFailed, "integrity_check_unavailable")
		return nil, err
	}
	if len(constraints) > 0 {
		names := make([]string, 0, len(constraints))
		alternatives := make([]string, 0, len(constraints))
		for _, c := range constraints {
			names = append(names, c.Constraint)
			alternatives = append(alternatives, c.Alternative)
		}
		uc.transition(ctx, request, domain.StateRefused, "integrity_constraints")
		return nil, errors.NewIntegrityError(names, alternatives)
	}

	result := &EraseResult{
		AnonymousID: uc.AnonymousID(subjectID),
		Retained:    make(map[domain.DataCategory]string),
	}

	for _, category := range domain.AllCategories() {
		policy, ok := uc.policy[category]
		if !ok {
			policy = domain.CategoryPolicy{Action: domain.ActionErase}
		}
		var opErr error
		switch policy.Action {
		case domain.ActionErase:
			opErr = withRetry(ctx, uc.retryElapsed, func() error {
				return uc.store.EraseCategory(ctx, subjectID, category)
			})
			if opErr == nil {
				result.Erased = append(result.Erased, category)
			}
		case domain.ActionAnonymize:
			opErr = withRetry(ctx, uc.retryElapsed, func() error {
				return uc.store.AnonymizeCategory(ctx, subjectID, result.AnonymousID, category)
			})
			if opErr == nil {
				result.Anonymized = append(result.Anonymized, category)
			}
		case domain.ActionRetain:
			result.Retained[category] = policy.Reason
		}
		if opErr != nil {
			uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
			return nil, opErr
		}
	}

	uc.audit.Append(ctx, subjectID, "erasure:completed", map[string]any{
		"request_id": request.ID,
		"erased":     result.Erased,
		"anonymized": result.Anonymized,
		"retained":   result.Retained,
	})
	uc.transition(ctx, request, domain.StateCompleted, "")
	uc.logger.Infow("erasure completed",
		"request_id", request.ID,
		"erased", len(result.Erased),
		"anonymized", len(result.Anonymized),
		"retained", len(result.Retained))
	return result, nil
}

func (uc *EraseUseCase) transition(ctx context.Context, r *domain.PrivacyRequest, next domain.RequestState, reason string) {
	transitionRequest(ctx, uc.requests, uc.audit, r, next, reason, uc.logger)
}
