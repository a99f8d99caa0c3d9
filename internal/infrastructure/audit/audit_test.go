package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	log, err := NewLog(db, logger.NewLogger())
	require.NoError(t, err)
	return log
}

func TestLog_AppendAndVerify(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", "consent:recorded", map[string]any{
		"purpose": "marketing",
		"given":   true,
	}))
	require.NoError(t, log.Append(ctx, "u1", "request:completed", map[string]any{
		"request_id": "req-1",
	}))
	require.NoError(t, log.Append(ctx, "u2", "consent:recorded", nil))

	entries, err := log.ListByActor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "consent:recorded", entries[0].Kind)
	assert.Equal(t, "request:completed", entries[1].Kind)
	assert.Len(t, entries[0].PayloadHash, 64)

	for i := range entries {
		assert.True(t, log.Verify(&entries[i]))
	}
}

func TestLog_ActivityForScopedToSubject(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", "consent:recorded", map[string]any{"purpose": "marketing"}))
	require.NoError(t, log.Append(ctx, "u2", "request:completed", nil))
	require.NoError(t, log.Append(ctx, "u1", "request:processing", nil))

	activity, err := log.ActivityFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "consent:recorded", activity[0].Kind)
	assert.Equal(t, "request:processing", activity[1].Kind)
	assert.JSONEq(t, `{"purpose":"marketing"}`, string(activity[0].Payload))
	assert.False(t, activity[0].OccurredAt.IsZero())
}

func TestLog_VerifyDetectsTampering(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, "u1", "erasure:completed", map[string]any{"erased": 2}))

	entries, err := log.ListByActor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries[0].Payload = []byte(`{"erased":99}`)
	assert.False(t, log.Verify(&entries[0]))
}
