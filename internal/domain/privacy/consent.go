package privacy

import (
	"time"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// LegalBasis is the GDPR article 6 ground a purpose is processed under.
type LegalBasis string

const (
	BasisConsent            LegalBasis = "consent"
	BasisContract           LegalBasis = "contract"
	BasisLegalObligation    LegalBasis = "legal_obligation"
	BasisLegitimateInterest LegalBasis = "legitimate_interest"
)

// ConsentRecord is one append-only entry in the consent ledger. Withdrawal
// appends a new record with Given=false; history is never mutated.
type ConsentRecord struct {
	ID        uint
	SubjectID string
	Purpose   string
	Basis     LegalBasis
	Given     bool
	Timestamp time.Time
	Expiry    *time.Time
	Version   string
	Meta      map[string]string
}

// NewConsentRecord validates and builds a ledger entry. An expiry is only
// meaningful under the consent basis and is rejected elsewhere.
func NewConsentRecord(subjectID, purpose string, basis LegalBasis, given bool, version string, expiry *time.Time) (*ConsentRecord, error) {
	if subjectID == "" {
		return nil, errors.NewValidationError("subject id is required")
	}
	if purpose == "" {
		return nil, errors.NewValidationError("purpose is required")
	}
	if version == "" {
		return nil, errors.NewValidationError("policy version is required")
	}
	if expiry != nil && basis != BasisConsent {
		return nil, errors.NewValidationError("expiry only applies to the consent basis")
	}
	return &ConsentRecord{
		SubjectID: subjectID,
		Purpose:   purpose,
		Basis:     basis,
		Given:     given,
		Timestamp: time.Now(),
		Expiry:    expiry,
		Version:   version,
	}, nil
}

// Effective reports whether this record grants processing at the given
// instant. Expiry is only honored for basis=consent.
func (c *ConsentRecord) Effective(now time.Time) bool {
	if !c.Given {
		return false
	}
	if c.Basis == BasisConsent && c.Expiry != nil && now.After(*c.Expiry) {
		return false
	}
	return true
}

// Expired reports whether a consent-basis record has passed its expiry.
func (c *ConsentRecord) Expired(now time.Time) bool {
	return c.Basis == BasisConsent && c.Expiry != nil && now.After(*c.Expiry)
}
