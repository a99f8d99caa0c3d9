package migration

import "time"

// Family identifies which backing store a migration targets.
type Family string

const (
	FamilySQL      Family = "sql"
	FamilyDocument Family = "document"
	FamilyShared   Family = "shared"
)

// familyOrder fixes cross-family ordering. Shared migrations always run
// after database-specific ones.
func (f Family) order() int {
	switch f {
	case FamilySQL:
		return 0
	case FamilyDocument:
		return 1
	case FamilyShared:
		return 2
	default:
		return 3
	}
}

// Type classifies what a migration does, inferred from its content.
type Type string

const (
	TypeSchema     Type = "schema"
	TypeData       Type = "data"
	TypeIndex      Type = "index"
	TypeConstraint Type = "constraint"
	TypeTrigger    Type = "trigger"
	TypeFunction   Type = "function"
	TypeView       Type = "view"
	TypeSeed       Type = "seed"
	TypeCleanup    Type = "cleanup"
)

// Migration is one discovered migration file with its metadata.
type Migration struct {
	Order        int
	Name         string
	Family       Family
	ForwardPath  string
	RollbackPath string
	ContentHash  string
	Content      string
	Type         Type
	Dependencies []string
	Size         int64
	Estimated    time.Duration
}

// ID is the stable identity used in dependency declarations and the ledger.
func (m *Migration) ID() string {
	return m.Name
}

// HasRollback reports whether a rollback sibling was discovered.
func (m *Migration) HasRollback() bool {
	return m.RollbackPath != ""
}

// ItemStatus is the per-migration execution status inside a batch.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemRolledBack ItemStatus = "rolled_back"
	ItemSkipped    ItemStatus = "skipped"
)

// BatchStatus is the aggregate status of one engine run.
type BatchStatus string

const (
	BatchPending     BatchStatus = "pending"
	BatchValidating  BatchStatus = "validating"
	BatchBackingUp   BatchStatus = "backing-up"
	BatchMigrating   BatchStatus = "migrating"
	BatchTesting     BatchStatus = "testing"
	BatchCompleted   BatchStatus = "completed"
	BatchFailed      BatchStatus = "failed"
	BatchRollingBack BatchStatus = "rolling-back"
	BatchRolledBack  BatchStatus = "rolled-back"
	BatchCancelled   BatchStatus = "cancelled"
)

// Item tracks one migration inside a batch.
type Item struct {
	Migration *Migration
	Status    ItemStatus
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Batch is a single engine invocation, frozen once it reaches a terminal
// status.
type Batch struct {
	ID            string
	TargetVersion string
	Strategy      string
	Items         []*Item
	Status        BatchStatus
	BackupHandle  string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Summary returns per-status item counts for batch-level reporting.
func (b *Batch) Summary() map[ItemStatus]int {
	out := make(map[ItemStatus]int)
	for _, it := range b.Items {
		out[it.Status]++
	}
	return out
}
