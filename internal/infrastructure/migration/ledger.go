package migration

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SchemaVersion is the single-row current version record.
type SchemaVersion struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"size:64;not null"`
	UpdatedAt time.Time
}

func (SchemaVersion) TableName() string { return "schema_versions" }

// HistoryEntry records one applied (or rolled back) migration.
type HistoryEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Order       int    `gorm:"column:migration_order;not null"`
	Name        string `gorm:"size:255;not null;index"`
	Family      string `gorm:"size:16;not null"`
	ContentHash string `gorm:"size:64;not null"`
	Outcome     string `gorm:"size:32;not null"`
	AppliedAt   time.Time
	DurationMs  int64
}

func (HistoryEntry) TableName() string { return "migration_history" }

// Ledger persists the schema version pointer and per-migration history.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&SchemaVersion{}, &HistoryEntry{}); err != nil {
		return nil, fmt.Errorf("prepare ledger tables: %w", err)
	}
	return &Ledger{db: db}, nil
}

// CurrentVersion returns the recorded version, or "" when none is set.
func (l *Ledger) CurrentVersion() (string, error) {
	var row SchemaVersion
	err := l.db.First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read schema version: %w", err)
	}
	return row.Version, nil
}

// SetVersion upserts the single version row.
func (l *Ledger) SetVersion(version string) error {
	var row SchemaVersion
	err := l.db.First(&row).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return l.db.Create(&SchemaVersion{Version: version, UpdatedAt: time.Now()}).Error
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		row.Version = version
		row.UpdatedAt = time.Now()
		return l.db.Save(&row).Error
	}
}

// Record appends a history entry for one executed item.
func (l *Ledger) Record(m *Migration, outcome ItemStatus, duration time.Duration) error {
	entry := &HistoryEntry{
		Order:       m.Order,
		Name:        m.Name,
		Family:      string(m.Family),
		ContentHash: m.ContentHash,
		Outcome:     string(outcome),
		AppliedAt:   time.Now(),
		DurationMs:  duration.Milliseconds(),
	}
	return l.db.Create(entry).Error
}

// History returns all entries, oldest first.
func (l *Ledger) History() ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := l.db.Order("id asc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	return entries, nil
}

// Applied returns the set of migration names whose latest outcome is
// completed, so re-runs skip them.
func (l *Ledger) Applied() (map[string]string, error) {
	entries, err := l.History()
	if err != nil {
		return nil, err
	}
	applied := make(map[string]string)
	for _, e := range entries {
		if e.Outcome == string(ItemCompleted) {
			applied[e.Name] = e.ContentHash
		} else {
			delete(applied, e.Name)
		}
	}
	return applied, nil
}
