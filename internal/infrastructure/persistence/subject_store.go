package persistence

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// SubjectStore reads and mutates categorized subject data. Every mutating
// call runs in a single transaction so a failed request leaves no partial
// state behind.
type SubjectStore struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewSubjectStore(db *gorm.DB, logger logger.Interface) *SubjectStore {
	return &SubjectStore{db: db, logger: logger}
}

func (s *SubjectStore) Collect(ctx context.Context, subjectID string, categories []privacy.DataCategory) ([]privacy.FieldRecord, error) {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}

	var models []SubjectRecordModel
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND category IN ?", subjectID, names).
		Order("category ASC, field ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.NewStoreError("subject", "collect", err)
	}

	records := make([]privacy.FieldRecord, 0, len(models))
	for _, m := range models {
		records = append(records, privacy.FieldRecord{
			Category: privacy.DataCategory(m.Category),
			Field:    m.Field,
			Value:    m.Value,
		})
	}
	return records, nil
}

// Rectify upserts every edit in one transaction.
func (s *SubjectStore) Rectify(ctx context.Context, subjectID string, edits []privacy.FieldRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, edit := range edits {
			model := SubjectRecordModel{
				SubjectID: subjectID,
				Category:  string(edit.Category),
				Field:     edit.Field,
				Value:     edit.Value,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "subject_id"}, {Name: "category"}, {Name: "field"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Errorw("rectification transaction failed",
			"subject_id", subjectID, "edits", len(edits), "error", err)
		return errors.NewStoreError("subject", "rectify", err)
	}
	return nil
}

func (s *SubjectStore) EraseCategory(ctx context.Context, subjectID string, category privacy.DataCategory) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("subject_id = ? AND category = ?", subjectID, string(category)).
			Delete(&SubjectRecordModel{}).Error
	})
	if err != nil {
		return errors.NewStoreError("subject", "erase", err)
	}
	return nil
}

// AnonymizeCategory relinks a category's rows to the pseudonym. Values stay
// intact so aggregates keep their history.
func (s *SubjectStore) AnonymizeCategory(ctx context.Context, subjectID, anonymousID string, category privacy.DataCategory) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&SubjectRecordModel{}).
			Where("subject_id = ? AND category = ?", subjectID, string(category)).
			Update("subject_id", anonymousID).Error
	})
	if err != nil {
		return errors.NewStoreError("subject", "anonymize", err)
	}
	return nil
}
