package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the store matches one of them with errors.Is.
var (
	// ErrLifecycle is returned when operating on a store that does not exist, or creating one that does.
	ErrLifecycle = errors.New("lifecycle error")
	// ErrNotFound is returned when a slice, field or root cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration is returned for invalid declarations or store layouts.
	ErrConfiguration = errors.New("configuration error")
	// ErrReducer is returned when a reducer or reaction fails during dispatch.
	ErrReducer = errors.New("reducer failure")
)

var (
	// ErrStoreExists is returned by CreateStore when a store is already live.
	ErrStoreExists = fmt.Errorf("%w: store already created", ErrLifecycle)
	// ErrStoreNotCreated is returned by every store operation before CreateStore.
	ErrStoreNotCreated = fmt.Errorf("%w: store not created", ErrLifecycle)
	// ErrDispatchLoop is wrapped in the ReducerError returned when deferred
	// dispatches keep queueing each other past the drain limit.
	ErrDispatchLoop = errors.New("deferred dispatches did not settle")
	// ErrSnapshotNotFound is returned when a snapshot ID cannot be found in a snapshot store.
	ErrSnapshotNotFound = fmt.Errorf("snapshot %w", ErrNotFound)
)

// NotFoundError reports an unresolvable name.
type NotFoundError struct {
	Kind string // "slice", "field", "root", "reducer"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConfigurationError reports an invalid declaration or store layout.
type ConfigurationError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// ReducerError wraps the failure of a reducer or reaction.
// The committed store value is unchanged when it is returned.
type ReducerError struct {
	Slice   string
	Reducer string
	Err     error
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("reducer %s.%s failed: %v", e.Slice, e.Reducer, e.Err)
}

func (e *ReducerError) Unwrap() []error {
	return []error{ErrReducer, e.Err}
}

func configErr(subject, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
