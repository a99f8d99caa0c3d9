package privacy

import (
	"context"
	"encoding/json"
	"time"
)

// ConsentRepository persists the append-only consent ledger.
type ConsentRepository interface {
	Append(ctx context.Context, record *ConsentRecord) error
	Latest(ctx context.Context, subjectID, purpose string) (*ConsentRecord, error)
	History(ctx context.Context, subjectID string) ([]*ConsentRecord, error)
	// ExpiringBefore lists the latest given consent-basis records whose
	// expiry falls before the cutoff.
	ExpiringBefore(ctx context.Context, cutoff time.Time) ([]*ConsentRecord, error)
}

// RequestRepository persists privacy requests.
type RequestRepository interface {
	Create(ctx context.Context, request *PrivacyRequest) error
	Update(ctx context.Context, request *PrivacyRequest) error
	GetByID(ctx context.Context, id string) (*PrivacyRequest, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*PrivacyRequest, error)
}

// BreachRepository persists breach records.
type BreachRepository interface {
	Create(ctx context.Context, record *BreachRecord) error
	Update(ctx context.Context, record *BreachRecord) error
	GetByID(ctx context.Context, id string) (*BreachRecord, error)
	ListOpen(ctx context.Context) ([]*BreachRecord, error)
}

// FieldRecord is one stored field of a subject's data.
type FieldRecord struct {
	Category DataCategory
	Field    string
	Value    string
}

// SubjectStore reads and mutates per-category subject data. Rectify and the
// erasure mutations run inside a single transaction per call.
type SubjectStore interface {
	Collect(ctx context.Context, subjectID string, categories []DataCategory) ([]FieldRecord, error)
	Rectify(ctx context.Context, subjectID string, edits []FieldRecord) error
	EraseCategory(ctx context.Context, subjectID string, category DataCategory) error
	// AnonymizeCategory rewrites the subject linkage of a category to the
	// anonymous identifier, keeping the values.
	AnonymizeCategory(ctx context.Context, subjectID, anonymousID string, category DataCategory) error
}

// IntegrityConstraint blocks an erasure and names the way out.
type IntegrityConstraint struct {
	Constraint  string
	Alternative string
}

// IntegrityChecker reports constraints that must be cleared before a
// subject can be erased, such as active clan leadership.
type IntegrityChecker interface {
	ErasureConstraints(ctx context.Context, subjectID string) ([]IntegrityConstraint, error)
}

// ActivityEntry is one processing-activity row, as exposed in access
// artifacts.
type ActivityEntry struct {
	Kind       string
	Payload    json.RawMessage
	OccurredAt time.Time
}

// AuditLog is the append-only trail every transition and breach event goes
// to.
type AuditLog interface {
	Append(ctx context.Context, actor, kind string, payload any) error
	// ActivityFor returns the entries recorded for one subject in append
	// order.
	ActivityFor(ctx context.Context, subjectID string) ([]ActivityEntry, error)
}
