package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/infrastructure/memory"
)

func testQueryConfig() *sharedConfig.QueryConfig {
	return &sharedConfig.QueryConfig{
		CacheTTL:         300,
		CacheMaxRows:     1000,
		PrepareThreshold: 3,
		PreparedCapacity: 10,
		SlowThresholdMs:  1000,
		SlowLogCapacity:  10,
	}
}

func newMockOptimizer(t *testing.T, cfg *sharedConfig.QueryConfig) (*Optimizer, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := NewMemoryResultCache(memory.NewCache(100))
	return New(db, cache, cfg, nil), mock
}

func TestOptimizer_CachedRead(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectQuery("SELECT id FROM users WHERE id = ?").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	res, err := o.Query(ctx, "SELECT id FROM users WHERE id = ?", []interface{}{42}, nil)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, res.RowCount)

	// Second call is served from cache: no further expectation is set.
	res2, err := o.Query(ctx, "SELECT id FROM users WHERE id = ?", []interface{}{42}, nil)
	require.NoError(t, err)
	assert.True(t, res2.Cached)
	assert.Equal(t, res.Rows, res2.Rows)

	// After invalidation the statement executes again.
	removed := o.InvalidateByPattern("*")
	assert.Equal(t, 1, removed)

	mock.ExpectQuery("SELECT id FROM users WHERE id = ?").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	res3, err := o.Query(ctx, "SELECT id FROM users WHERE id = ?", []interface{}{42}, nil)
	require.NoError(t, err)
	assert.False(t, res3.Cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_CachedRowsAreIsolatedFromCallers(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectQuery("SELECT name FROM users WHERE id = ?").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ava"))

	res, err := o.Query(ctx, "SELECT name FROM users WHERE id = ?", []interface{}{7}, nil)
	require.NoError(t, err)
	res.Rows[0]["name"] = "mutated"

	hit, err := o.Query(ctx, "SELECT name FROM users WHERE id = ?", []interface{}{7}, nil)
	require.NoError(t, err)
	require.True(t, hit.Cached)
	assert.Equal(t, "ava", hit.Rows[0]["name"])

	// Mutating a cache hit must not leak into later hits either.
	hit.Rows[0]["name"] = "mutated"
	hit2, err := o.Query(ctx, "SELECT name FROM users WHERE id = ?", []interface{}{7}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ava", hit2.Rows[0]["name"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_InvalidateByTablePattern(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("SELECT id FROM clans").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	_, err := o.Query(ctx, "SELECT id FROM users", nil, nil)
	require.NoError(t, err)
	_, err = o.Query(ctx, "SELECT id FROM clans", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, o.InvalidateByPattern("users:*"))

	// clans entry survives: served from cache without a new expectation.
	res, err := o.Query(ctx, "SELECT id FROM clans", nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_TimeSensitiveNotCached(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT NOW()").
			WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow("2026-01-01"))
	}

	res, err := o.Query(ctx, "SELECT NOW()", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	res, err = o.Query(ctx, "SELECT NOW()", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Cached, "time-sensitive statements must not be served from cache")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_RowCapSkipsCache(t *testing.T) {
	cfg := testQueryConfig()
	cfg.CacheMaxRows = 1
	o, mock := newMockOptimizer(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("SELECT id FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	}

	res, err := o.Query(ctx, "SELECT id FROM users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)

	res, err = o.Query(ctx, "SELECT id FROM users", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Cached, "results over the row cap must not be cached")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_ExecReportsAffectedRows(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").
		WithArgs("zed", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := o.Query(ctx, "UPDATE users SET name = ? WHERE id = ?", []interface{}{"zed", 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE", res.Command)
	assert.Equal(t, 1, res.RowCount)
	assert.False(t, res.Cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_TransactionCommit(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores (v) VALUES (?)").
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := o.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Query(ctx, "INSERT INTO scores (v) VALUES (?)", 10)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_TransactionRollbackPropagatesError(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores (v) VALUES (?)").
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	err := o.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Query(ctx, "INSERT INTO scores (v) VALUES (?)", 10); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_BatchTransactional(t *testing.T) {
	o, mock := newMockOptimizer(t, testQueryConfig())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO a (v) VALUES (?)").WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO b (v) VALUES (?)").WithArgs(2).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	results, err := o.Batch(ctx, []BatchItem{
		{SQL: "INSERT INTO a (v) VALUES (?)", Params: []interface{}{1}},
		{SQL: "INSERT INTO b (v) VALUES (?)", Params: []interface{}{2}},
	}, BatchOptions{Transactional: true})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_PreparedPromotion(t *testing.T) {
	cfg := testQueryConfig()
	cfg.PrepareThreshold = 1

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// nil cache so every call reaches the database
	o := New(db, nil, cfg, nil)
	ctx := context.Background()

	const stmt = "SELECT name FROM users WHERE id = ?"

	mock.ExpectQuery(stmt).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ava"))

	_, err = o.Query(ctx, stmt, []interface{}{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, o.PreparedCount())

	// Second use crosses the threshold and promotes.
	mock.ExpectPrepare(stmt)
	mock.ExpectQuery(stmt).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ben"))

	_, err = o.Query(ctx, stmt, []interface{}{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, o.PreparedCount())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptimizer_SlowQueryRecorded(t *testing.T) {
	cfg := testQueryConfig()
	cfg.SlowThresholdMs = 1
	o, mock := newMockOptimizer(t, cfg)
	ctx := context.Background()

	var observed []SlowQuery
	o.OnSlowQuery(func(sq SlowQuery) { observed = append(observed, sq) })

	mock.ExpectQuery("SELECT * FROM leaderboard").
		WillDelayFor(10 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	_, err := o.Query(ctx, "SELECT * FROM leaderboard", nil, &Options{Tag: "leaderboard"})
	require.NoError(t, err)

	require.Len(t, observed, 1)
	assert.Equal(t, "leaderboard", observed[0].Tag)
	assert.GreaterOrEqual(t, observed[0].Duration, time.Millisecond)

	recent := o.SlowQueries()
	require.Len(t, recent, 1)
	assert.Equal(t, "SELECT * FROM leaderboard", recent[0].SQL)
}

func TestNormalizeAndCacheability(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		cacheable bool
	}{
		{"plain select", "SELECT id FROM users", true},
		{"lowercase select", "select id from users", true},
		{"whitespace collapsed", "  SELECT   id\n FROM users ", true},
		{"insert", "INSERT INTO users (id) VALUES (1)", false},
		{"update", "UPDATE users SET name = 'x'", false},
		{"now()", "SELECT NOW()", false},
		{"rand()", "SELECT id FROM users ORDER BY RAND()", false},
		{"current_timestamp", "SELECT CURRENT_TIMESTAMP", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cacheable, isCacheable(normalizeSQL(tt.sql)))
		})
	}

	assert.Equal(t, "SELECT id FROM users", normalizeSQL("  SELECT   id\n FROM users "))
	assert.Equal(t, "users", tableHint(normalizeSQL("SELECT id FROM users WHERE id = 1")))
	assert.Equal(t, "misc", tableHint("SELECT 1"))
}

func TestCacheKey_DistinguishesParams(t *testing.T) {
	a := cacheKey("SELECT id FROM users WHERE id = ?", []interface{}{1})
	b := cacheKey("SELECT id FROM users WHERE id = ?", []interface{}{2})
	assert.NotEqual(t, a, b)

	again := cacheKey("SELECT id FROM users WHERE id = ?", []interface{}{1})
	assert.Equal(t, a, again)
}
