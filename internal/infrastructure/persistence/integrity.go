package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// IntegrityChecker finds referential constraints that block an erasure.
// Clan leadership is the known blocker: removing a leader would orphan the
// clan, so the request is refused with the way out instead.
type IntegrityChecker struct {
	db *gorm.DB
}

func NewIntegrityChecker(db *gorm.DB) privacy.IntegrityChecker {
	return &IntegrityChecker{db: db}
}

func (c *IntegrityChecker) ErasureConstraints(ctx context.Context, subjectID string) ([]privacy.IntegrityConstraint, error) {
	var leaderships []ClanMemberModel
	err := c.db.WithContext(ctx).
		Where("subject_id = ? AND role = ?", subjectID, "leader").
		Find(&leaderships).Error
	if err != nil {
		return nil, errors.NewStoreError("integrity", "clan_leadership", err)
	}

	constraints := make([]privacy.IntegrityConstraint, 0, len(leaderships))
	for _, m := range leaderships {
		constraints = append(constraints, privacy.IntegrityConstraint{
			Constraint:  fmt.Sprintf("subject leads clan %s", m.ClanID),
			Alternative: "transfer clan leadership first",
		})
	}
	return constraints, nil
}
