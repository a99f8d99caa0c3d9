package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Entry is one immutable audit row. The payload hash lets an auditor verify
// the JSON was not rewritten after the fact.
type Entry struct {
	ID          uint   `gorm:"primarykey"`
	Actor       string `gorm:"not null;size:64;index"`
	Kind        string `gorm:"not null;size:64;index"`
	Payload     datatypes.JSON
	PayloadHash string `gorm:"not null;size:64"`
	CreatedAt   time.Time
}

func (Entry) TableName() string {
	return "audit_entries"
}

// Log is the gorm-backed append-only audit trail.
type Log struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewLog(db *gorm.DB, log logger.Interface) (*Log, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Log{db: db, logger: log.With("component", "audit")}, nil
}

var _ privacy.AuditLog = (*Log)(nil)

func (l *Log) Append(ctx context.Context, actor, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		l.logger.Errorw("failed to marshal audit payload", "kind", kind, "error", err)
		return errors.NewStoreError("audit", "append", err)
	}
	sum := sha256.Sum256(raw)

	entry := Entry{
		Actor:       actor,
		Kind:        kind,
		Payload:     raw,
		PayloadHash: hex.EncodeToString(sum[:]),
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		l.logger.Errorw("failed to append audit entry", "kind", kind, "error", err)
		return errors.NewStoreError("audit", "append", err)
	}
	return nil
}

// ActivityFor returns the trail for one subject as processing-activity
// entries in append order.
func (l *Log) ActivityFor(ctx context.Context, subjectID string) ([]privacy.ActivityEntry, error) {
	entries, err := l.ListByActor(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]privacy.ActivityEntry, len(entries))
	for i, e := range entries {
		out[i] = privacy.ActivityEntry{
			Kind:       e.Kind,
			Payload:    json.RawMessage(e.Payload),
			OccurredAt: e.CreatedAt,
		}
	}
	return out, nil
}

// ListByActor returns the trail for one actor in append order.
func (l *Log) ListByActor(ctx context.Context, actor string) ([]Entry, error) {
	var entries []Entry
	err := l.db.WithContext(ctx).
		Where("actor = ?", actor).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errors.NewStoreError("audit", "list", err)
	}
	return entries, nil
}

// Verify recomputes the payload hash of an entry.
func (l *Log) Verify(entry *Entry) bool {
	sum := sha256.Sum256(entry.Payload)
	return hex.EncodeToString(sum[:]) == entry.PayloadHash
}
