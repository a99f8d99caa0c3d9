package persistence

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
)

// ConsentModel is the persistence model for one consent ledger entry. Rows
// are append-only; withdrawal and expiry add rows instead of updating.
type ConsentModel struct {
	ID        uint   `gorm:"primarykey"`
	SubjectID string `gorm:"not null;size:64;index:idx_consents_subject_purpose"`
	Purpose   string `gorm:"not null;size:64;index:idx_consents_subject_purpose"`
	Basis     string `gorm:"not null;size:32"`
	Given     bool   `gorm:"not null"`
	Timestamp time.Time
	Expiry    *time.Time `gorm:"index"`
	Version   string     `gorm:"not null;size:32"`
	Meta      datatypes.JSON
}

func (ConsentModel) TableName() string {
	return "consent_records"
}

func consentToModel(r *privacy.ConsentRecord) (*ConsentModel, error) {
	model := &ConsentModel{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		Purpose:   r.Purpose,
		Basis:     string(r.Basis),
		Given:     r.Given,
		Timestamp: r.Timestamp,
		Expiry:    r.Expiry,
		Version:   r.Version,
	}
	if len(r.Meta) > 0 {
		raw, err := json.Marshal(r.Meta)
		if err != nil {
			return nil, err
		}
		model.Meta = raw
	}
	return model, nil
}

func consentToEntity(m *ConsentModel) (*privacy.ConsentRecord, error) {
	record := &privacy.ConsentRecord{
		ID:        m.ID,
		SubjectID: m.SubjectID,
		Purpose:   m.Purpose,
		Basis:     privacy.LegalBasis(m.Basis),
		Given:     m.Given,
		Timestamp: m.Timestamp,
		Expiry:    m.Expiry,
		Version:   m.Version,
	}
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &record.Meta); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// RequestModel persists one privacy request through its lifecycle.
type RequestModel struct {
	ID          string `gorm:"primarykey;size:36"`
	Kind        string `gorm:"not null;size:16"`
	SubjectID   string `gorm:"not null;size:64;index"`
	State       string `gorm:"not null;size:16"`
	ReasonCode  string `gorm:"size:64"`
	IssuedAt    time.Time
	CompletedAt *time.Time
	Artifact    datatypes.JSON
}

func (RequestModel) TableName() string {
	return "privacy_requests"
}

func requestToModel(r *privacy.PrivacyRequest) *RequestModel {
	return &RequestModel{
		ID:          r.ID,
		Kind:        string(r.Kind),
		SubjectID:   r.SubjectID,
		State:       string(r.State),
		ReasonCode:  r.ReasonCode,
		IssuedAt:    r.IssuedAt,
		CompletedAt: r.CompletedAt,
		Artifact:    datatypes.JSON(r.Artifact),
	}
}

func requestToEntity(m *RequestModel) *privacy.PrivacyRequest {
	return &privacy.PrivacyRequest{
		ID:          m.ID,
		Kind:        privacy.RequestKind(m.Kind),
		SubjectID:   m.SubjectID,
		State:       privacy.RequestState(m.State),
		ReasonCode:  m.ReasonCode,
		IssuedAt:    m.IssuedAt,
		CompletedAt: m.CompletedAt,
		Artifact:    []byte(m.Artifact),
	}
}

// BreachModel persists breach records and their notification state.
type BreachModel struct {
	ID                string `gorm:"primarykey;size:36"`
	Kind              string `gorm:"not null;size:32"`
	Severity          string `gorm:"not null;size:16"`
	Description       string `gorm:"size:500"`
	AffectedSubjects  datatypes.JSON
	DetectedAt        time.Time
	RegulatorDeadline time.Time
	UserDeadline      time.Time
	RegulatorNotified bool `gorm:"not null;default:false;index:idx_breaches_open"`
	UsersNotified     bool `gorm:"not null;default:false;index:idx_breaches_open"`
}

func (BreachModel) TableName() string {
	return "breach_records"
}

func breachToModel(r *privacy.BreachRecord) (*BreachModel, error) {
	model := &BreachModel{
		ID:                r.ID,
		Kind:              string(r.Kind),
		Severity:          string(r.Severity),
		Description:       r.Description,
		DetectedAt:        r.DetectedAt,
		RegulatorDeadline: r.RegulatorDeadline,
		UserDeadline:      r.UserDeadline,
		RegulatorNotified: r.RegulatorNotified,
		UsersNotified:     r.UsersNotified,
	}
	if len(r.AffectedSubjects) > 0 {
		raw, err := json.Marshal(r.AffectedSubjects)
		if err != nil {
			return nil, err
		}
		model.AffectedSubjects = raw
	}
	return model, nil
}

func breachToEntity(m *BreachModel) (*privacy.BreachRecord, error) {
	record := &privacy.BreachRecord{
		ID:                m.ID,
		Kind:              privacy.BreachKind(m.Kind),
		Severity:          privacy.BreachSeverity(m.Severity),
		Description:       m.Description,
		DetectedAt:        m.DetectedAt,
		RegulatorDeadline: m.RegulatorDeadline,
		UserDeadline:      m.UserDeadline,
		RegulatorNotified: m.RegulatorNotified,
		UsersNotified:     m.UsersNotified,
	}
	if len(m.AffectedSubjects) > 0 {
		if err := json.Unmarshal(m.AffectedSubjects, &record.AffectedSubjects); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// SubjectRecordModel is one categorized field of a subject's data. Erasure
// deletes rows, anonymization relinks them to the pseudonym.
type SubjectRecordModel struct {
	ID        uint   `gorm:"primarykey"`
	SubjectID string `gorm:"not null;size:64;uniqueIndex:idx_subject_field"`
	Category  string `gorm:"not null;size:16;uniqueIndex:idx_subject_field"`
	Field     string `gorm:"not null;size:64;uniqueIndex:idx_subject_field"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (SubjectRecordModel) TableName() string {
	return "subject_records"
}

// ClanMemberModel backs the referential-integrity check on erasure.
type ClanMemberModel struct {
	ID        uint   `gorm:"primarykey"`
	ClanID    string `gorm:"not null;size:64;index"`
	SubjectID string `gorm:"not null;size:64;index"`
	Role      string `gorm:"not null;size:16"`
}

func (ClanMemberModel) TableName() string {
	return "clan_members"
}

// AutoMigrate creates every privacy persistence table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ConsentModel{},
		&RequestModel{},
		&BreachModel{},
		&SubjectRecordModel{},
		&ClanMemberModel{},
	)
}
