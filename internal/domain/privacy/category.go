package privacy

// DataCategory partitions a subject's records for access, export and
// erasure handling.
type DataCategory string

const (
	CategoryIdentity   DataCategory = "identity"
	CategoryGaming     DataCategory = "gaming"
	CategorySocial     DataCategory = "social"
	CategoryFinancial  DataCategory = "financial"
	CategoryBehavioral DataCategory = "behavioral"
)

// AllCategories lists every category in a stable order.
func AllCategories() []DataCategory {
	return []DataCategory{
		CategoryIdentity,
		CategoryGaming,
		CategorySocial,
		CategoryFinancial,
		CategoryBehavioral,
	}
}

// ErasureAction decides what happens to a category when a subject is
// erased.
type ErasureAction string

const (
	ActionErase     ErasureAction = "erase"
	ActionAnonymize ErasureAction = "anonymize"
	ActionRetain    ErasureAction = "retain"
)

// CategoryPolicy is one category's erasure treatment. Retain requires a
// justification.
type CategoryPolicy struct {
	Action ErasureAction
	Reason string
}

// ErasurePolicy maps categories to their treatment. Competitive records are
// anonymized so leaderboards and vote tallies stay consistent; financial
// records are kept for fraud prevention.
func DefaultErasurePolicy() map[DataCategory]CategoryPolicy {
	return map[DataCategory]CategoryPolicy{
		CategoryIdentity:   {Action: ActionErase},
		CategoryGaming:     {Action: ActionAnonymize, Reason: "competitive integrity of historical results"},
		CategorySocial:     {Action: ActionErase},
		CategoryFinancial:  {Action: ActionRetain, Reason: "fraud prevention and legal hold"},
		CategoryBehavioral: {Action: ActionErase},
	}
}

// ImmutableCategories are rejected outright during rectification.
var ImmutableCategories = map[DataCategory]string{
	CategoryGaming: "tournament results and voting history are immutable",
}

// immutableFields are individual fields that cannot be rectified regardless
// of category.
var immutableFields = map[string]string{
	"tournament_results": "tournament results are immutable",
	"voting_history":     "voting history is immutable",
	"onchain_records":    "on-chain records cannot be altered",
}

// RectificationBlock explains why a field edit is rejected, or "" when the
// edit is allowed.
func RectificationBlock(category DataCategory, field string) string {
	if reason, ok := immutableFields[field]; ok {
		return reason
	}
	if reason, ok := ImmutableCategories[category]; ok {
		return reason
	}
	return ""
}
