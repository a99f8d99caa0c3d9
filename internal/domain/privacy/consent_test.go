package privacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsentRecord_Validation(t *testing.T) {
	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		subject string
		purpose string
		basis   LegalBasis
		version string
		expiry  *time.Time
		wantErr bool
	}{
		{"valid", "u1", "marketing", BasisConsent, "v1", &expiry, false},
		{"missing subject", "", "marketing", BasisConsent, "v1", nil, true},
		{"missing purpose", "u1", "", BasisConsent, "v1", nil, true},
		{"missing version", "u1", "marketing", BasisConsent, "", nil, true},
		{"expiry on contract basis", "u1", "billing", BasisContract, "v1", &expiry, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConsentRecord(tt.subject, tt.purpose, tt.basis, true, tt.version, tt.expiry)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConsentRecord_Effective(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	given := &ConsentRecord{Given: true, Basis: BasisConsent, Expiry: &future}
	assert.True(t, given.Effective(now))

	withdrawn := &ConsentRecord{Given: false, Basis: BasisConsent}
	assert.False(t, withdrawn.Effective(now))

	expired := &ConsentRecord{Given: true, Basis: BasisConsent, Expiry: &past}
	assert.False(t, expired.Effective(now))
	assert.True(t, expired.Expired(now))

	// Expiry is ignored outside the consent basis.
	contract := &ConsentRecord{Given: true, Basis: BasisContract, Expiry: &past}
	assert.True(t, contract.Effective(now))
	assert.False(t, contract.Expired(now))
}

func TestPrivacyRequest_StateMachine(t *testing.T) {
	req, err := NewPrivacyRequest("r1", RequestErasure, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateReceived, req.State)

	require.NoError(t, req.Transition(StateProcessing))
	require.NoError(t, req.Transition(StateRefused))
	assert.True(t, req.Terminal())
	require.NotNil(t, req.CompletedAt)

	// Terminal states are frozen.
	assert.Error(t, req.Transition(StateProcessing))
}

func TestPrivacyRequest_IllegalTransition(t *testing.T) {
	req, err := NewPrivacyRequest("r1", RequestAccess, "u1")
	require.NoError(t, err)
	assert.Error(t, req.Transition(StateCompleted))
}

func TestNewPrivacyRequest_UnknownKind(t *testing.T) {
	_, err := NewPrivacyRequest("r1", RequestKind("deletion"), "u1")
	assert.Error(t, err)
}

func TestRectificationBlock(t *testing.T) {
	assert.NotEmpty(t, RectificationBlock(CategoryGaming, "rank"))
	assert.NotEmpty(t, RectificationBlock(CategoryIdentity, "voting_history"))
	assert.Empty(t, RectificationBlock(CategoryIdentity, "display_name"))
}
