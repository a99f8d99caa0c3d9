package privacy

import "time"

// BreachKind classifies what a detector found.
type BreachKind string

const (
	BreachUnauthorizedAccess BreachKind = "unauthorized_access"
	BreachExfiltration       BreachKind = "exfiltration"
	BreachIntegrityViolation BreachKind = "integrity_violation"
	BreachConsentViolation   BreachKind = "consent_violation"
)

// BreachSeverity drives notification urgency.
type BreachSeverity string

const (
	SeverityLow      BreachSeverity = "low"
	SeverityMedium   BreachSeverity = "medium"
	SeverityHigh     BreachSeverity = "high"
	SeverityCritical BreachSeverity = "critical"
)

// BreachRecord is opened by a positive detection and tracks the regulatory
// notification deadlines.
type BreachRecord struct {
	ID                string
	Kind              BreachKind
	Severity          BreachSeverity
	Description       string
	AffectedSubjects  []string
	DetectedAt        time.Time
	RegulatorDeadline time.Time
	UserDeadline      time.Time
	RegulatorNotified bool
	UsersNotified     bool
}
