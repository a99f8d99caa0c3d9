package errors

import (
	"errors"
	"fmt"
	"time"
)

// TransportError indicates a network-level failure on the realtime session.
// It is recoverable through reconnection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AuthError indicates a rejected token or failed authentication exchange.
type AuthError struct {
	Reason    string
	Retryable bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func NewAuthError(reason string, retryable bool) *AuthError {
	return &AuthError{Reason: reason, Retryable: retryable}
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TimeoutError indicates an operation exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

func NewTimeoutError(op string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout}
}

func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// RateLimitError carries the structured retry metadata returned on rejection.
type RateLimitError struct {
	Scope           string
	MsBeforeNext    int64
	RemainingPoints int
	TotalHits       int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s scope, retry in %dms", e.Scope, e.MsBeforeNext)
}

func (e *RateLimitError) RetryAfter() time.Duration {
	return time.Duration(e.MsBeforeNext) * time.Millisecond
}

func IsRateLimitError(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// StoreError indicates a failure of a backing store (Redis, SQL, document).
type StoreError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store failure during %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func NewStoreError(store, op string, err error) *StoreError {
	return &StoreError{Store: store, Op: op, Err: err}
}

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// MigrationError indicates a failure during migration validation, execution,
// or rollback. Phase distinguishes where the failure occurred.
type MigrationError struct {
	Phase     string
	Migration string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Migration != "" {
		return fmt.Sprintf("migration %s failed during %s: %v", e.Migration, e.Phase, e.Err)
	}
	return fmt.Sprintf("migration %s failed: %v", e.Phase, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func NewMigrationError(phase, migration string, err error) *MigrationError {
	return &MigrationError{Phase: phase, Migration: migration, Err: err}
}

func IsMigrationError(err error) bool {
	var me *MigrationError
	return errors.As(err, &me)
}

// IntegrityError is returned when a data-lifecycle request cannot proceed
// without breaking competitive integrity. Alternatives names the concrete
// actions the subject can take to unblock the request.
type IntegrityError struct {
	Constraints  []string
	Alternatives []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("request blocked by integrity constraints: %v", e.Constraints)
}

func NewIntegrityError(constraints, alternatives []string) *IntegrityError {
	return &IntegrityError{Constraints: constraints, Alternatives: alternatives}
}

func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// BreachDetectedError signals that a detector opened a breach record.
type BreachDetectedError struct {
	BreachID string
	Kind     string
	Severity string
}

func (e *BreachDetectedError) Error() string {
	return fmt.Sprintf("breach detected: %s (%s severity)", e.Kind, e.Severity)
}

func NewBreachDetectedError(breachID, kind, severity string) *BreachDetectedError {
	return &BreachDetectedError{BreachID: breachID, Kind: kind, Severity: severity}
}

func IsBreachDetected(err error) bool {
	var be *BreachDetectedError
	return errors.As(err, &be)
}
