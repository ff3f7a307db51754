// Package enginerr defines the structured error kind shared by every
// subsystem and surfaced through HostStatus.LastError, per the servicing
// engine's error handling design.
package enginerr

import (
	"errors"
	"fmt"
)

// Kind classifies a servicing error so the orchestrator and datastore can
// react without string-matching error messages.
type Kind string

const (
	// Initialization covers startup failures: unreadable /proc/cmdline,
	// failed safety checks before any destructive action.
	Initialization Kind = "Initialization"
	// InvalidInput covers static schema errors and dynamic validation
	// errors (unknown id, duplicate disk device, bad key-file
	// permissions, changed storage sections across an update).
	InvalidInput Kind = "InvalidInput"
	// Unsupported covers requested operations the engine deliberately
	// refuses, such as removing partitions across an update.
	Unsupported Kind = "Unsupported"
	// Servicing covers external tool failures, mount/unmount failures,
	// hash mismatches, and UKI enumeration failures.
	Servicing Kind = "Servicing"
	// Internal covers broken invariants, e.g. an A/B pair referencing a
	// missing child in the storage graph.
	Internal Kind = "Internal"
)

// Error is the structured error every subsystem returns. Op identifies the
// failing operation (e.g. "storage.adoptPartitions"); Detail is free-form
// human text; Cause is the wrapped underlying error, if any.
type Error struct {
	Kind   Kind   `yaml:"kind"`
	Op     string `yaml:"op"`
	Detail string `yaml:"detail"`
	Cause  error  `yaml:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no wrapped cause.
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap constructs an Error wrapping cause.
func Wrap(kind Kind, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns Internal — an unclassified error is an invariant break
// by definition.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
