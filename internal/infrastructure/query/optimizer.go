// Package query executes SQL against the shared pooled connection with
// result caching, prepared-statement promotion, slow-query accounting, and
// explain-plan retrieval.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	apperrors "github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Options tune a single query execution.
type Options struct {
	BypassCache bool
	CacheTTL    time.Duration
	Tag         string
}

// Result is the outcome of one execution.
type Result struct {
	Rows          []map[string]interface{}
	RowCount      int
	Command       string
	ExecutionTime time.Duration
	Cached        bool
}

// Optimizer coordinates caching, preparation, and accounting over a pooled
// *sql.DB. Construct with New; the zero value is not usable.
type Optimizer struct {
	db       *sql.DB
	cfg      *sharedConfig.QueryConfig
	cache    ResultCache
	prepared *preparedSet
	slow     *slowLog
	log      logger.Interface

	slowCounter prometheus.Counter
}

// New builds an optimizer over db. cache may be nil to disable result
// caching entirely.
func New(db *sql.DB, cache ResultCache, cfg *sharedConfig.QueryConfig, reg prometheus.Registerer) *Optimizer {
	o := &Optimizer{
		db:       db,
		cfg:      cfg,
		cache:    cache,
		prepared: newPreparedSet(db, cfg.PrepareThreshold, cfg.PreparedCapacity),
		slow:     newSlowLog(cfg.SlowLogCapacity),
		log:      logger.NewLogger().With("component", "query"),
		slowCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platform_query_slow_total",
			Help: "Executions exceeding the slow-query threshold.",
		}),
	}
	if reg != nil {
		reg.MustRegister(o.slowCounter)
	}
	return o
}

// Query executes sqlText with params. Cacheable SELECTs are served from the
// result cache when a fresh entry exists; other statements run directly.
func (o *Optimizer) Query(ctx context.Context, sqlText string, params []interface{}, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	normalized := normalizeSQL(sqlText)
	command := commandWord(normalized)
	cacheable := o.cache != nil && !opts.BypassCache && isCacheable(normalized)

	var key string
	if cacheable {
		key = cacheKey(normalized, params)
		if v, ok := o.cache.Get(key); ok {
			// The cache may be shared; ignore foreign entries.
			cached, ok := v.(*Result)
			if ok {
				return &Result{
					Rows:          copyRows(cached.Rows),
					RowCount:      cached.RowCount,
					Command:       cached.Command,
					ExecutionTime: cached.ExecutionTime,
					Cached:        true,
				}, nil
			}
		}
	}

	start := time.Now()
	result, err := o.execute(ctx, o.db, normalized, command, params)
	if err != nil {
		return nil, err
	}
	result.ExecutionTime = time.Since(start)

	o.account(normalized, opts.Tag, result.ExecutionTime)

	if cacheable && result.RowCount <= o.cfg.CacheMaxRows {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = time.Duration(o.cfg.CacheTTL) * time.Second
		}
		// The entry gets its own row storage so callers mutating the returned
		// result cannot corrupt later hits.
		o.cache.Set(key, &Result{
			Rows:          copyRows(result.Rows),
			RowCount:      result.RowCount,
			Command:       result.Command,
			ExecutionTime: result.ExecutionTime,
		}, ttl)
	}

	return result, nil
}

// executor abstracts *sql.DB and *sql.Tx.
type executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (o *Optimizer) execute(ctx context.Context, exec executor, normalized, command string, params []interface{}) (*Result, error) {
	if command == "SELECT" || command == "SHOW" || command == "EXPLAIN" {
		var rows *sql.Rows
		var err error

		// Promotion only applies on the pooled connection, not inside a
		// transaction where statements bind to that transaction.
		if db, ok := exec.(*sql.DB); ok && db == o.db {
			if stmt := o.prepared.stmtFor(ctx, normalized); stmt != nil {
				rows, err = stmt.QueryContext(ctx, params...)
			}
		}
		if rows == nil && err == nil {
			rows, err = exec.QueryContext(ctx, normalized, params...)
		}
		if err != nil {
			return nil, apperrors.NewStoreError("sql", "query", err)
		}
		defer rows.Close()

		out, err := scanRows(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("sql", "scan", err)
		}
		return &Result{Rows: out, RowCount: len(out), Command: command}, nil
	}

	res, err := exec.ExecContext(ctx, normalized, params...)
	if err != nil {
		return nil, apperrors.NewStoreError("sql", "exec", err)
	}
	affected, _ := res.RowsAffected()
	return &Result{RowCount: int(affected), Command: command}, nil
}

func (o *Optimizer) account(normalized, tag string, duration time.Duration) {
	threshold := time.Duration(o.cfg.SlowThresholdMs) * time.Millisecond
	if threshold <= 0 || duration < threshold {
		return
	}

	o.slowCounter.Inc()
	o.log.Warnw("slow query",
		"sql", normalized,
		"tag", tag,
		"duration", duration,
	)
	o.slow.record(SlowQuery{
		SQL:        normalized,
		Tag:        tag,
		Duration:   duration,
		RecordedAt: time.Now(),
	})
}

// OnSlowQuery registers an observer invoked for each recorded slow query.
func (o *Optimizer) OnSlowQuery(fn SlowQueryObserver) {
	o.slow.observe(fn)
}

// SlowQueries returns the retained slow-query entries, oldest first.
func (o *Optimizer) SlowQueries() []SlowQuery {
	return o.slow.recent()
}

// InvalidateByPattern removes cached results whose key matches the pattern.
// Patterns address the table hint, e.g. "users:*"; "*" clears everything.
func (o *Optimizer) InvalidateByPattern(pattern string) int {
	if o.cache == nil {
		return 0
	}
	return o.cache.InvalidatePattern("query:" + pattern)
}

// PreparedCount reports the number of live prepared handles.
func (o *Optimizer) PreparedCount() int {
	return o.prepared.size()
}

// Close releases prepared handles. The underlying pool is owned by the
// caller and is not closed.
func (o *Optimizer) Close() {
	o.prepared.close()
}

// Tx is the bound executor passed to Transaction callbacks. Statements run
// inside the transaction and are never cached.
type Tx struct {
	opt *Optimizer
	tx  *sql.Tx
}

// Query executes a statement inside the transaction.
func (t *Tx) Query(ctx context.Context, sqlText string, params ...interface{}) (*Result, error) {
	normalized := normalizeSQL(sqlText)
	start := time.Now()
	result, err := t.opt.execute(ctx, t.tx, normalized, commandWord(normalized), params)
	if err != nil {
		return nil, err
	}
	result.ExecutionTime = time.Since(start)
	t.opt.account(normalized, "tx", result.ExecutionTime)
	return result, nil
}

// Transaction acquires a connection, begins a transaction, and passes a bound
// executor to fn. It commits on normal return and rolls back when fn returns
// an error, propagating the original error.
func (o *Optimizer) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("sql", "begin", err)
	}

	if err := fn(&Tx{opt: o, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			o.log.Errorw("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("sql", "commit", err)
	}
	return nil
}

// BatchItem is one statement in a batch.
type BatchItem struct {
	SQL    string
	Params []interface{}
}

// BatchOptions control batch execution.
type BatchOptions struct {
	Transactional bool
	StopOnError   bool
}

// Batch executes a sequence of statements, optionally inside one
// transaction. With StopOnError the first failure aborts the remainder; the
// per-item results gathered so far are returned either way.
func (o *Optimizer) Batch(ctx context.Context, items []BatchItem, opts BatchOptions) ([]*Result, error) {
	results := make([]*Result, 0, len(items))

	if opts.Transactional {
		err := o.Transaction(ctx, func(tx *Tx) error {
			for _, item := range items {
				res, err := tx.Query(ctx, item.SQL, item.Params...)
				if err != nil {
					return fmt.Errorf("batch item %q: %w", item.SQL, err)
				}
				results = append(results, res)
			}
			return nil
		})
		return results, err
	}

	var firstErr error
	for _, item := range items {
		res, err := o.Query(ctx, item.SQL, item.Params, &Options{BypassCache: true})
		if err != nil {
			if opts.StopOnError {
				return results, fmt.Errorf("batch item %q: %w", item.SQL, err)
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}

func copyRows(rows []map[string]interface{}) []map[string]interface{} {
	if rows == nil {
		return nil
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		m := make(map[string]interface{}, len(row))
		for k, v := range row {
			m[k] = v
		}
		out[i] = m
	}
	return out
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
