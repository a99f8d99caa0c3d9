package privacy

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// RectifyUseCase applies field corrections, rejecting edits to immutable
// categories before touching anything. Accepted edits go through the store
// in one transaction.
type RectifyUseCase struct {
	requests     domain.RequestRepository
	store        domain.SubjectStore
	audit        domain.AuditLog
	retryElapsed time.Duration
	logger       logger.Interface
}

func NewRectifyUseCase(
	requests domain.RequestRepository,
	store domain.SubjectStore,
	audit domain.AuditLog,
	retryElapsed time.Duration,
	logger logger.Interface,
) *RectifyUseCase {
	return &RectifyUseCase{
		requests:     requests,
		store:        store,
		audit:        audit,
		retryElapsed: retryElapsed,
		logger:       logger,
	}
}

func (uc *RectifyUseCase) Execute(ctx context.Context, subjectID string, edits []domain.FieldRecord) error {
	request, err := domain.NewPrivacyRequest(uuid.NewString(), domain.RequestRectification, subjectID)
	if err != nil {
		return err
	}
	if err := uc.requests.Create(ctx, request); err != nil {
		return err
	}
	uc.transition(ctx, request, domain.StateProcessing, "")

	for _, edit := range edits {
		if reason := domain.RectificationBlock(edit.Category, edit.Field); reason != "" {
			uc.transition(ctx, request, domain.StateRefused, "immutable_field")
			return errors.NewValidationError(reason)
		}
	}

	if err := withRetry(ctx, uc.retryElapsed, func() error {
		return uc.store.Rectify(ctx, subjectID, edits)
	}); err != nil {
		uc.transition(ctx, request, domain.StateFailed, "store_unavailable")
		return err
	}

	for _, edit := range edits {
		uc.audit.Append(ctx, subjectID, "rectification:applied", map[string]any{
			"request_id": request.ID,
			"category":   edit.Category,
			"field":      edit.Field,
		})
	}
	uc.transition(ctx, request, domain.StateCompleted, "")
	return nil
}

func (uc *RectifyUseCase) transition(ctx context.Context, r *domain.PrivacyRequest, next domain.RequestState, reason string) {
	transitionRequest(ctx, uc.requests, uc.audit, r, next, reason, uc.logger)
}
