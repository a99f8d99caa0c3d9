package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// ConsentRepository is the gorm-backed consent ledger.
type ConsentRepository struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewConsentRepository(db *gorm.DB, logger logger.Interface) privacy.ConsentRepository {
	return &ConsentRepository{db: db, logger: logger}
}

func (r *ConsentRepository) Append(ctx context.Context, record *privacy.ConsentRecord) error {
	model, err := consentToModel(record)
	if err != nil {
		return errors.NewStoreError("consent", "append", err)
	}
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to append consent record",
			"subject_id", record.SubjectID, "purpose", record.Purpose, "error", err)
		return errors.NewStoreError("consent", "append", err)
	}
	record.ID = model.ID
	return nil
}

func (r *ConsentRepository) Latest(ctx context.Context, subjectID, purpose string) (*privacy.ConsentRecord, error) {
	var model ConsentModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND purpose = ?", subjectID, purpose).
		Order("id DESC").
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("consent", "latest", err)
	}
	return consentToEntity(&model)
}

func (r *ConsentRepository) History(ctx context.Context, subjectID string) ([]*privacy.ConsentRecord, error) {
	var models []ConsentModel
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.NewStoreError("consent", "history", err)
	}
	records := make([]*privacy.ConsentRecord, 0, len(models))
	for i := range models {
		record, cerr := consentToEntity(&models[i])
		if cerr != nil {
			return nil, errors.NewStoreError("consent", "history", cerr)
		}
		records = append(records, record)
	}
	return records, nil
}

// ExpiringBefore returns the latest row per (subject, purpose) that is still
// given, consent-basis and past its expiry. Later withdrawal rows supersede
// earlier grants, so only ledger heads count.
func (r *ConsentRepository) ExpiringBefore(ctx context.Context, cutoff time.Time) ([]*privacy.ConsentRecord, error) {
	var models []ConsentModel
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&ConsentModel{}).
			Select("MAX(id)").
			Group("subject_id, purpose")).
		Where("given = ? AND basis = ? AND expiry IS NOT NULL AND expiry < ?",
			true, string(privacy.BasisConsent), cutoff).
		Find(&models).Error
	if err != nil {
		return nil, errors.NewStoreError("consent", "expiring", err)
	}
	records := make([]*privacy.ConsentRecord, 0, len(models))
	for i := range models {
		record, cerr := consentToEntity(&models[i])
		if cerr != nil {
			return nil, errors.NewStoreError("consent", "expiring", cerr)
		}
		records = append(records, record)
	}
	return records, nil
}
