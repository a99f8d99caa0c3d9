package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// RequestRepository persists privacy requests.
type RequestRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewRequestRepository(db *gorm.DB, logger logger.Interface) privacy.RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

func (r *RequestRepository) Create(ctx context.Context, request *privacy.PrivacyRequest) error {
	if err := r.db.WithContext(ctx).Create(requestToModel(request)).Error; err != nil {
		r.logger.Errorw("failed to create privacy request",
			"request_id", request.ID, "kind", request.Kind, "error", err)
		return errors.NewStoreError("request", "create", err)
	}
	return nil
}

func (r *RequestRepository) Update(ctx context.Context, request *privacy.PrivacyRequest) error {
	result := r.db.WithContext(ctx).
		Model(&RequestModel{}).
		Where("id = ?", request.ID).
		Updates(map[string]interface{}{
			"state":        string(request.State),
			"reason_code":  request.ReasonCode,
			"completed_at": request.CompletedAt,
			"artifact":     request.Artifact,
		})
	if result.Error != nil {
		return errors.NewStoreError("request", "update", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("privacy request " + request.ID)
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*privacy.PrivacyRequest, error) {
	var model RequestModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("request", "get", err)
	}
	return requestToEntity(&model), nil
}

func (r *RequestRepository) ListBySubject(ctx context.Context, subjectID string) ([]*privacy.PrivacyRequest, error) {
	var models []RequestModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("issued_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.NewStoreError("request", "list", err)
	}
	requests := make([]*privacy.PrivacyRequest, 0, len(models))
	for i := range models {
		requests = append(requests, requestToEntity(&models[i]))
	}
	return requests, nil
}
