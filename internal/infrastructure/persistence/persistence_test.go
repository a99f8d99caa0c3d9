package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "privacy.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestConsentRepository_AppendOnlyLedger(t *testing.T) {
	db := testDB(t)
	repo := NewConsentRepository(db, logger.NewLogger())
	ctx := context.Background()

	grant, err := privacy.NewConsentRecord("u1", "marketing", privacy.BasisConsent, true, "v1", nil)
	require.NoError(t, err)
	grant.Meta = map[string]string{"channel": "signup"}
	require.NoError(t, repo.Append(ctx, grant))
	assert.NotZero(t, grant.ID)

	withdrawal, err := privacy.NewConsentRecord("u1", "marketing", privacy.BasisConsent, false, "v1", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, withdrawal))

	latest, err := repo.Latest(ctx, "u1", "marketing")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Given)

	history, err := repo.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Given)
	assert.Equal(t, "signup", history[0].Meta["channel"])
}

func TestConsentRepository_LatestMissing(t *testing.T) {
	repo := NewConsentRepository(testDB(t), logger.NewLogger())
	latest, err := repo.Latest(context.Background(), "nobody", "marketing")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestConsentRepository_ExpiringBeforeOnlyLedgerHeads(t *testing.T) {
	db := testDB(t)
	repo := NewConsentRepository(db, logger.NewLogger())
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired, err := privacy.NewConsentRecord("u1", "marketing", privacy.BasisConsent, true, "v1", &past)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, expired))

	// Superseded by a later row, so excluded even though it is expired.
	superseded, err := privacy.NewConsentRecord("u2", "marketing", privacy.BasisConsent, true, "v1", &past)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, superseded))
	renewed, err := privacy.NewConsentRecord("u2", "marketing", privacy.BasisConsent, true, "v1", &future)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, renewed))

	stillValid, err := privacy.NewConsentRecord("u3", "marketing", privacy.BasisConsent, true, "v1", &future)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, stillValid))

	expiring, err := repo.ExpiringBefore(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "u1", expiring[0].SubjectID)
}

func TestRequestRepository_Lifecycle(t *testing.T) {
	repo := NewRequestRepository(testDB(t), logger.NewLogger())
	ctx := context.Background()

	request, err := privacy.NewPrivacyRequest("req-1", privacy.RequestErasure, "u1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, request))

	require.NoError(t, request.Transition(privacy.StateProcessing))
	require.NoError(t, repo.Update(ctx, request))
	require.NoError(t, request.Transition(privacy.StateRefused))
	request.ReasonCode = "integrity_constraints"
	require.NoError(t, repo.Update(ctx, request))

	stored, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, privacy.StateRefused, stored.State)
	assert.Equal(t, "integrity_constraints", stored.ReasonCode)
	assert.NotNil(t, stored.CompletedAt)

	list, err := repo.ListBySubject(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRequestRepository_UpdateMissingRow(t *testing.T) {
	repo := NewRequestRepository(testDB(t), logger.NewLogger())
	request, err := privacy.NewPrivacyRequest("ghost", privacy.RequestAccess, "u1")
	require.NoError(t, err)
	require.Error(t, repo.Update(context.Background(), request))
}

func TestBreachRepository_ListOpen(t *testing.T) {
	repo := NewBreachRepository(testDB(t), logger.NewLogger())
	ctx := context.Background()

	open := &privacy.BreachRecord{
		ID:               "b1",
		Kind:             privacy.BreachExfiltration,
		Severity:         privacy.SeverityCritical,
		AffectedSubjects: []string{"u1", "u2"},
		DetectedAt:       time.Now(),
	}
	require.NoError(t, repo.Create(ctx, open))

	closed := &privacy.BreachRecord{
		ID:                "b2",
		Kind:              privacy.BreachConsentViolation,
		Severity:          privacy.SeverityMedium,
		DetectedAt:        time.Now(),
		RegulatorNotified: true,
		UsersNotified:     true,
	}
	require.NoError(t, repo.Create(ctx, closed))

	list, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b1", list[0].ID)
	assert.Equal(t, []string{"u1", "u2"}, list[0].AffectedSubjects)

	open.RegulatorNotified = true
	open.UsersNotified = true
	require.NoError(t, repo.Update(ctx, open))

	list, err = repo.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func seedSubject(t *testing.T, db *gorm.DB, subjectID string) {
	t.Helper()
	rows := []SubjectRecordModel{
		{SubjectID: subjectID, Category: "identity", Field: "email", Value: subjectID + "@example.com"},
		{SubjectID: subjectID, Category: "identity", Field: "display_name", Value: "Player"},
		{SubjectID: subjectID, Category: "gaming", Field: "tournament_results", Value: "1st"},
		{SubjectID: subjectID, Category: "financial", Field: "invoice", Value: "inv-1"},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
}

func TestSubjectStore_CollectFiltersCategories(t *testing.T) {
	db := testDB(t)
	store := NewSubjectStore(db, logger.NewLogger())
	seedSubject(t, db, "u1")

	records, err := store.Collect(context.Background(), "u1",
		[]privacy.DataCategory{privacy.CategoryIdentity, privacy.CategoryGaming})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.NotEqual(t, privacy.CategoryFinancial, r.Category)
	}
}

func TestSubjectStore_RectifyUpserts(t *testing.T) {
	db := testDB(t)
	store := NewSubjectStore(db, logger.NewLogger())
	seedSubject(t, db, "u1")

	err := store.Rectify(context.Background(), "u1", []privacy.FieldRecord{
		{Category: privacy.CategoryIdentity, Field: "email", Value: "new@example.com"},
		{Category: privacy.CategoryIdentity, Field: "country", Value: "DE"},
	})
	require.NoError(t, err)

	records, err := store.Collect(context.Background(), "u1",
		[]privacy.DataCategory{privacy.CategoryIdentity})
	require.NoError(t, err)
	byField := make(map[string]string)
	for _, r := range records {
		byField[r.Field] = r.Value
	}
	assert.Equal(t, "new@example.com", byField["email"])
	assert.Equal(t, "DE", byField["country"])
	assert.Equal(t, "Player", byField["display_name"])
}

func TestSubjectStore_EraseAndAnonymize(t *testing.T) {
	db := testDB(t)
	store := NewSubjectStore(db, logger.NewLogger())
	seedSubject(t, db, "u1")
	ctx := context.Background()

	require.NoError(t, store.EraseCategory(ctx, "u1", privacy.CategoryIdentity))
	require.NoError(t, store.AnonymizeCategory(ctx, "u1", "anon_abc", privacy.CategoryGaming))

	remaining, err := store.Collect(ctx, "u1", privacy.AllCategories())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, privacy.CategoryFinancial, remaining[0].Category)

	relinked, err := store.Collect(ctx, "anon_abc", []privacy.DataCategory{privacy.CategoryGaming})
	require.NoError(t, err)
	require.Len(t, relinked, 1)
	assert.Equal(t, "1st", relinked[0].Value)
}

func TestIntegrityChecker_ClanLeadershipBlocksErasure(t *testing.T) {
	db := testDB(t)
	checker := NewIntegrityChecker(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&ClanMemberModel{ClanID: "clan-7", SubjectID: "u1", Role: "leader"}).Error)
	require.NoError(t, db.Create(&ClanMemberModel{ClanID: "clan-9", SubjectID: "u2", Role: "member"}).Error)

	constraints, err := checker.ErasureConstraints(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, constraints, 1)
	assert.Contains(t, constraints[0].Constraint, "clan-7")
	assert.Equal(t, "transfer clan leadership first", constraints[0].Alternative)

	constraints, err = checker.ErasureConstraints(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, constraints)
}
