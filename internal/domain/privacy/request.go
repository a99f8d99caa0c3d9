package privacy

import (
	"fmt"
	"time"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// RequestKind is the data-subject right being exercised.
type RequestKind string

const (
	RequestAccess        RequestKind = "access"
	RequestRectification RequestKind = "rectification"
	RequestErasure       RequestKind = "erasure"
	RequestPortability   RequestKind = "portability"
)

// RequestState is the lifecycle state of a privacy request.
type RequestState string

const (
	StateReceived   RequestState = "received"
	StateProcessing RequestState = "processing"
	StateCompleted  RequestState = "completed"
	StateFailed     RequestState = "failed"
	StateRefused    RequestState = "refused"
)

// validTransitions encodes the request state machine. Terminal states have
// no outgoing edges.
var validTransitions = map[RequestState][]RequestState{
	StateReceived:   {StateProcessing},
	StateProcessing: {StateCompleted, StateFailed, StateRefused},
}

// PrivacyRequest tracks one access/rectification/erasure/portability
// request from receipt to a terminal state.
type PrivacyRequest struct {
	ID          string
	Kind        RequestKind
	SubjectID   string
	State       RequestState
	IssuedAt    time.Time
	CompletedAt *time.Time
	Artifact    []byte
	ReasonCode  string
}

func NewPrivacyRequest(id string, kind RequestKind, subjectID string) (*PrivacyRequest, error) {
	switch kind {
	case RequestAccess, RequestRectification, RequestErasure, RequestPortability:
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown request kind %q", kind))
	}
	if subjectID == "" {
		return nil, errors.NewValidationError("subject id is required")
	}
	return &PrivacyRequest{
		ID:        id,
		Kind:      kind,
		SubjectID: subjectID,
		State:     StateReceived,
		IssuedAt:  time.Now(),
	}, nil
}

// Transition moves the request to the next state, enforcing the state
// machine.
func (r *PrivacyRequest) Transition(next RequestState) error {
	for _, allowed := range validTransitions[r.State] {
		if allowed == next {
			r.State = next
			if r.Terminal() {
				now := time.Now()
				r.CompletedAt = &now
			}
			return nil
		}
	}
	return errors.NewConflictError(fmt.Sprintf("illegal transition %s -> %s", r.State, next))
}

// Terminal reports whether the request is frozen.
func (r *PrivacyRequest) Terminal() bool {
	return r.State == StateCompleted || r.State == StateFailed || r.State == StateRefused
}
