package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors for storage operations.
var (
	// ErrObjectNotFound is returned when an object doesn't exist at a key.
	// Absence is a presence signal, not a failure; callers check it with errors.Is.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidID is returned when a session or step ID contains unsafe characters.
	ErrInvalidID = errors.New("invalid identifier: contains path separator or traversal sequence")
)

// ConfigError reports invalid or unresolvable storage configuration.
// It is only returned at construction time, never mid-operation.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "storage config: " + e.Reason
}

// TransientError wraps a retry-eligible backend failure such as a timeout
// or connection reset. It surfaces only after retries are exhausted.
type TransientError struct {
	Op  string
	Key string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("storage %s %q: transient: %v", e.Op, e.Key, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a backend failure that retrying cannot fix, such as
// access denied, a malformed key, or a missing bucket.
type PermanentError struct {
	Op  string
	Key string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retry-eligible backend failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AggregateError reports a manager-level operation whose independent
// sub-operations failed. It carries every sub-failure; Remaining lists the
// keys that still exist after a partial deletion.
type AggregateError struct {
	Op        string
	SessionID string
	StepID    string
	Remaining []string
	Errs      []error
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storage %s %s", e.Op, e.SessionID)
	if e.StepID != "" {
		b.WriteString("/" + e.StepID)
	}
	fmt.Fprintf(&b, ": %d sub-operations failed", len(e.Errs))
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, ", %d keys remain", len(e.Remaining))
	}
	for _, err := range e.Errs {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errs }
