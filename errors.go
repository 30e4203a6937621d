package bastion

import (
	"errors"
	"fmt"
)

var (
	// ErrStore is the sentinel for persistence-layer failures. Store
	// errors always propagate; swallowing them risks data integrity.
	ErrStore = errors.New("bastion: store failure")

	// ErrValidation is the sentinel for malformed input (bad IP, bad
	// permission name, bad subject/resource reference). Raised before
	// any mutation is attempted.
	ErrValidation = errors.New("bastion: invalid input")

	// ErrSelfRevocation is the sentinel for the lockout safety rule: a
	// non-admin actor may not revoke or reduce their own admin
	// permission on the resource being modified.
	ErrSelfRevocation = errors.New("bastion: cannot revoke own admin permission")

	// ErrUnknownAction is the sentinel for audit actions missing from
	// the taxonomy. This is a programmer error, not a runtime condition.
	ErrUnknownAction = errors.New("bastion: unknown audit action")

	// ErrAuditWrite marks audit persistence failures. It is logged at
	// the Logger boundary and never propagates out of Record.
	ErrAuditWrite = errors.New("bastion: audit write failed")

	// ErrNotFound is returned when a referenced entity cannot be found.
	ErrNotFound = errors.New("bastion: not found")

	// ErrAccessDenied is returned by Enforce-style helpers when a
	// guard pipeline denies the request.
	ErrAccessDenied = errors.New("bastion: access denied")
)

// StoreError wraps an underlying persistence failure with the operation
// that triggered it. Matches ErrStore via errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("bastion: store failure in %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports a match for the ErrStore sentinel.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// ValidationError describes malformed input with enough detail for the
// caller to render a message. Matches ErrValidation via errors.Is.
type ValidationError struct {
	Field  string
	Value  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bastion: invalid %s %q: %s", e.Field, e.Value, e.Detail)
}

// Is reports a match for the ErrValidation sentinel.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SelfRevocationError reports which change would have locked the acting
// user out of the resource. Matches ErrSelfRevocation via errors.Is.
type SelfRevocationError struct {
	ActorUserID int64
	Resource    ResourceRef
}

func (e *SelfRevocationError) Error() string {
	return fmt.Sprintf("bastion: user %d cannot revoke own admin permission on %s %d",
		e.ActorUserID, e.Resource.Kind, e.Resource.ID)
}

// Is reports a match for the ErrSelfRevocation sentinel.
func (e *SelfRevocationError) Is(target error) bool { return target == ErrSelfRevocation }

// UnknownActionError names the audit action missing from the taxonomy.
// Matches ErrUnknownAction via errors.Is.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("bastion: unknown audit action %q", e.Action)
}

// Is reports a match for the ErrUnknownAction sentinel.
func (e *UnknownActionError) Is(target error) bool { return target == ErrUnknownAction }
