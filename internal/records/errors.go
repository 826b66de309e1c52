package records

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError returned by the store.
	ErrValidation = errors.New("records: validation failed")

	errMissingKV     = errors.New("key-value store is required")
	errMissingHashes = errors.New("hash generator is required")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("records: invalid %s: %s", e.Field, e.Reason)
}

// Is lets callers match any validation failure with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a failure of the underlying medium with a dotted code.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the dotted error code, e.g. records.badges.write_failed.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opNewStore      = "records.store.new"
	opProfile       = "records.profile"
	opTokens        = "records.tokens"
	opBadges        = "records.badges"
	opContributions = "records.contributions"
	opVotes         = "records.votes"
	opSession       = "records.session"
	opInitialize    = "records.initialize"
)

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
