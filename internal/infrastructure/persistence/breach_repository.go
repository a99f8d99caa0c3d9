package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// BreachRepository persists breach records.
type BreachRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewBreachRepository(db *gorm.DB, logger logger.Interface) privacy.BreachRepository {
	return &BreachRepository{db: db, logger: logger}
}

func (r *BreachRepository) Create(ctx context.Context, record *privacy.BreachRecord) error {
	model, err := breachToModel(record)
	if err != nil {
		return errors.NewStoreError("breach", "create", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create breach record", "breach_id", record.ID, "error", err)
		return errors.NewStoreError("breach", "create", err)
	}
	return nil
}

func (r *BreachRepository) Update(ctx context.Context, record *privacy.BreachRecord) error {
	model, err := breachToModel(record)
	if err != nil {
		return errors.NewStoreError("breach", "update", err)
	}
	result := r.db.WithContext(ctx).
		Model(&BreachModel{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"regulator_notified": model.RegulatorNotified,
			"users_notified":     model.UsersNotified,
		})
	if result.Error != nil {
		return errors.NewStoreError("breach", "update", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("breach record " + record.ID)
	}
	return nil
}

func (r *BreachRepository) GetByID(ctx context.Context, id string) (*privacy.BreachRecord, error) {
	var model BreachModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("breach", "get", err)
	}
	return breachToEntity(&model)
}

func (r *BreachRepository) ListOpen(ctx context.Context) ([]*privacy.BreachRecord, error) {
	var models []BreachModel
	err := r.db.WithContext(ctx).
		Where("regulator_notified = ? OR users_notified = ?", false, false).
		Order("detected_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.NewStoreError("breach", "list_open", err)
	}
	records := make([]*privacy.BreachRecord, 0, len(models))
	for i := range models {
		record, cerr := breachToEntity(&models[i])
		if cerr != nil {
			return nil, errors.NewStoreError("breach", "list_open", cerr)
		}
		records = append(records, record)
	}
	return records, nil
}
