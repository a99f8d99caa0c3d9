package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/errors"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Verifier asserts one post-batch invariant for a database family.
type Verifier func(ctx context.Context) error

// Engine plans and executes migration batches against the SQL and document
// stores, with a distributed lock, a version ledger, and rollback on
// failure.
type Engine struct {
	cfg    *sharedConfig.MigrationConfig
	log    logger.Interface
	sqlDB  *sql.DB
	docs   DocumentStore
	ledger *Ledger
	lock   Lock

	verifySQL Verifier
	verifyDoc Verifier

	stopped atomic.Bool

	mu      sync.Mutex
	running bool
}

// NewEngine wires an engine. docs may be nil when no document-family
// migrations exist.
func NewEngine(cfg *sharedConfig.MigrationConfig, sqlDB *sql.DB, docs DocumentStore, ledger *Ledger, lock Lock, log logger.Interface) *Engine {
	e := &Engine{
		cfg:    cfg,
		log:    log.With("component", "migration"),
		sqlDB:  sqlDB,
		docs:   docs,
		ledger: ledger,
		lock:   lock,
	}
	e.verifySQL = e.defaultSQLVerifier
	if docs != nil {
		e.verifyDoc = func(ctx context.Context) error {
			_, err := docs.ListCollections(ctx)
			return err
		}
	}
	return e
}

// SetVerifiers overrides the per-family post-batch checks.
func (e *Engine) SetVerifiers(sqlVerifier, docVerifier Verifier) {
	if sqlVerifier != nil {
		e.verifySQL = sqlVerifier
	}
	if docVerifier != nil {
		e.verifyDoc = docVerifier
	}
}

// EmergencyStop flips a flag consulted between items. The in-flight item
// runs to completion; pending items are skipped and the batch ends
// cancelled.
func (e *Engine) EmergencyStop() {
	e.stopped.Store(true)
	e.log.Warnw("emergency stop requested")
}

// errStopped is the strategy-to-engine signal that the stop flag fired.
var errStopped = fmt.Errorf("emergency stop")

// Execute discovers, validates and runs all unapplied migrations toward
// targetVersion using the given strategy. A second concurrent call is
// refused.
func (e *Engine) Execute(ctx context.Context, targetVersion string, strategy Strategy) (*Batch, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, errors.NewMigrationError("start", targetVersion,
			fmt.Errorf("a batch is already in progress"))
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()
	e.stopped.Store(false)

	batch := &Batch{
		ID:            uuid.NewString(),
		TargetVersion: targetVersion,
		Strategy:      strategy.Name(),
		Status:        BatchPending,
		StartedAt:     time.Now(),
	}

	if err := e.lock.Acquire(ctx, targetVersion, batch.ID, time.Duration(e.cfg.LockTTL)*time.Second); err != nil {
		batch.Status = BatchFailed
		return batch, err
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx), targetVersion, batch.ID); err != nil {
			e.log.Errorw("failed to release migration lock", "error", err)
		}
	}()

	plan, err := e.preparePlan(ctx, batch)
	if err != nil {
		batch.Status = BatchFailed
		batch.FinishedAt = time.Now()
		return batch, err
	}
	if len(batch.Items) == 0 {
		e.log.Infow("nothing to migrate", "target_version", targetVersion)
		batch.Status = BatchCompleted
		batch.FinishedAt = time.Now()
		return batch, nil
	}

	if e.cfg.BackupEnabled {
		batch.Status = BatchBackingUp
		batch.BackupHandle = fmt.Sprintf("backup-%s-%d", targetVersion, time.Now().Unix())
		e.log.Infow("backup handle recorded", "handle", batch.BackupHandle)
	}

	batch.Status = BatchMigrating
	runErr := strategy.Run(ctx, e, batch, plan)

	switch {
	case runErr == errStopped:
		batch.Status = BatchCancelled
		batch.FinishedAt = time.Now()
		e.log.Warnw("batch cancelled by emergency stop", "batch_id", batch.ID)
		return batch, nil
	case runErr != nil:
		return e.rollback(ctx, batch, runErr)
	}

	batch.Status = BatchTesting
	if err := e.verify(ctx, batch); err != nil {
		return e.rollback(ctx, batch, err)
	}

	if err := e.ledger.SetVersion(targetVersion); err != nil {
		return e.rollback(ctx, batch, err)
	}

	batch.Status = BatchCompleted
	batch.FinishedAt = time.Now()
	e.log.Infow("batch completed",
		"batch_id", batch.ID,
		"target_version", targetVersion,
		"items", len(batch.Items))
	return batch, nil
}

// preparePlan discovers migrations, drops already-applied ones, validates
// the rest and fills batch.Items.
func (e *Engine) preparePlan(ctx context.Context, batch *Batch) (*Plan, error) {
	batch.Status = BatchValidating

	discoverer := NewDiscoverer(e.cfg.SQLDir, e.cfg.DocumentDir, e.cfg.SharedDir)
	all, err := discoverer.Discover()
	if err != nil {
		return nil, errors.NewMigrationError("discover", batch.TargetVersion, err)
	}

	applied, err := e.ledger.Applied()
	if err != nil {
		return nil, errors.NewMigrationError("discover", batch.TargetVersion, err)
	}
	pending := make([]*Migration, 0, len(all))
	for _, m := range all {
		if hash, ok := applied[m.Name]; ok {
			if hash != m.ContentHash {
				return nil, errors.NewMigrationError("validate", m.ID(),
					fmt.Errorf("content hash changed after apply"))
			}
			continue
		}
		pending = append(pending, m)
	}

	plan, err := BuildPlan(pending)
	if err != nil {
		return nil, err
	}

	issues := NewValidator(e.sqlDB).Validate(ctx, pending)
	for _, issue := range issues {
		if issue.Severity == SeverityWarning {
			e.log.Warnw("validation warning", "migration", issue.Migration, "message", issue.Message)
		}
	}
	if HasErrors(issues) {
		return nil, errors.NewMigrationError("validate", batch.TargetVersion,
			fmt.Errorf("%d validation errors", countErrors(issues)))
	}

	for _, m := range pending {
		batch.Items = append(batch.Items, &Item{Migration: m, Status: ItemPending})
	}
	return plan, nil
}

func countErrors(issues []Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

// runItem executes one migration under the per-item timeout and records the
// outcome in the ledger.
func (e *Engine) runItem(ctx context.Context, item *Item) error {
	m := item.Migration
	item.Status = ItemInProgress
	item.StartedAt = time.Now()

	itemCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeoutDuration())
	defer cancel()

	e.log.Infow("applying migration", "name", m.Name, "family", m.Family, "type", m.Type)

	var err error
	switch m.Family {
	case FamilySQL:
		err = e.runSQL(itemCtx, m, m.Content)
	case FamilyDocument:
		err = e.runDocument(itemCtx, m, false)
	case FamilyShared:
		err = e.runShared(itemCtx, m, m.Content)
	default:
		err = fmt.Errorf("unknown family %q", m.Family)
	}

	item.Duration = time.Since(item.StartedAt)
	if err != nil {
		item.Status = ItemFailed
		item.Err = err
		e.ledger.Record(m, ItemFailed, item.Duration)
		return errors.NewMigrationError("execute", m.ID(), err)
	}
	item.Status = ItemCompleted
	if lerr := e.ledger.Record(m, ItemCompleted, item.Duration); lerr != nil {
		return errors.NewMigrationError("execute", m.ID(), lerr)
	}
	return nil
}

// runSQL executes a statement list inside one transaction.
func (e *Engine) runSQL(ctx context.Context, m *Migration, content string) error {
	tx, err := e.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, stmt := range splitStatements(content) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec %q: %w", truncateStmt(stmt), err)
		}
	}
	return tx.Commit()
}

func (e *Engine) runDocument(ctx context.Context, m *Migration, rollback bool) error {
	if e.docs == nil {
		return fmt.Errorf("no document store configured")
	}
	return e.docs.Run(ctx, m, rollback)
}

// runShared dispatches each fragment to the matching store: JSON command
// blocks go to the document store, everything else runs as SQL.
func (e *Engine) runShared(ctx context.Context, m *Migration, content string) error {
	var sqlParts []string
	for _, block := range splitCommands(content) {
		if strings.HasPrefix(strings.TrimSpace(block), "{") {
			if e.docs == nil {
				return fmt.Errorf("shared migration needs a document store")
			}
			doc := &Migration{Name: m.Name, Family: FamilyDocument, Content: block}
			if err := e.docs.Run(ctx, doc, false); err != nil {
				return err
			}
			continue
		}
		sqlParts = append(sqlParts, block)
	}
	if len(sqlParts) == 0 {
		return nil
	}
	return e.runSQL(ctx, m, strings.Join(sqlParts, ";\n"))
}

// rollback reverses completed items in reverse order. A failing rollback is
// terminal: it logs critical and leaves the batch failed for operator
// action.
func (e *Engine) rollback(ctx context.Context, batch *Batch, cause error) (*Batch, error) {
	batch.Status = BatchRollingBack
	e.log.Errorw("batch failed, rolling back", "batch_id", batch.ID, "error", cause)

	for i := len(batch.Items) - 1; i >= 0; i-- {
		item := batch.Items[i]
		if item.Status != ItemCompleted {
			continue
		}
		if err := e.rollbackItem(ctx, item); err != nil {
			batch.Status = BatchFailed
			batch.FinishedAt = time.Now()
			e.log.Errorw("critical: rollback failed, stopping",
				"batch_id", batch.ID,
				"migration", item.Migration.Name,
				"error", err)
			return batch, errors.NewMigrationError("rollback", item.Migration.ID(), err)
		}
		item.Status = ItemRolledBack
		e.ledger.Record(item.Migration, ItemRolledBack, time.Since(item.StartedAt))
	}

	batch.Status = BatchRolledBack
	batch.FinishedAt = time.Now()
	return batch, cause
}

func (e *Engine) rollbackItem(ctx context.Context, item *Item) error {
	m := item.Migration
	if !m.HasRollback() {
		return fmt.Errorf("no rollback script for %s", m.Name)
	}
	e.log.Warnw("rolling back migration", "name", m.Name)

	itemCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeoutDuration())
	defer cancel()

	switch m.Family {
	case FamilyDocument:
		return e.runDocument(itemCtx, m, true)
	default:
		content, err := readFileContent(m.RollbackPath)
		if err != nil {
			return err
		}
		if m.Family == FamilyShared {
			return e.runShared(itemCtx, m, content)
		}
		return e.runSQL(itemCtx, m, content)
	}
}

// verify runs at least one invariant per family that took part in the
// batch.
func (e *Engine) verify(ctx context.Context, batch *Batch) error {
	families := make(map[Family]bool)
	for _, item := range batch.Items {
		families[item.Migration.Family] = true
	}

	if families[FamilySQL] || families[FamilyShared] {
		if err := e.verifySQL(ctx); err != nil {
			return errors.NewMigrationError("verify", "sql", err)
		}
	}
	if families[FamilyDocument] || (families[FamilyShared] && e.docs != nil) {
		if e.verifyDoc == nil {
			return errors.NewMigrationError("verify", "document",
				fmt.Errorf("no document verifier configured"))
		}
		if err := e.verifyDoc(ctx); err != nil {
			return errors.NewMigrationError("verify", "document", err)
		}
	}
	return nil
}

func (e *Engine) defaultSQLVerifier(ctx context.Context) error {
	var n int
	row := e.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.tables")
	return row.Scan(&n)
}

func truncateStmt(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 80 {
		return stmt[:80] + "..."
	}
	return stmt
}
