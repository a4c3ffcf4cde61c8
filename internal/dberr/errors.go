// Package dberr defines the typed error taxonomy shared by every layer of
// the engine: storage, catalogue, transactions, planning and execution.
package dberr

import (
	"errors"
	"fmt"
)

// Kind identifies the family and specific failure of an Error, following
// the taxonomy of the Database/Transaction/Query/Function/IO families.
type Kind string

const (
	// Database kinds.
	KindSchemaExists       Kind = "schema_exists"
	KindSchemaMissing      Kind = "schema_missing"
	KindEntityExists       Kind = "entity_exists"
	KindEntityMissing      Kind = "entity_missing"
	KindColumnMissing      Kind = "column_missing"
	KindIndexExists        Kind = "index_exists"
	KindIndexMissing       Kind = "index_missing"
	KindIndexNotSupported  Kind = "index_not_supported"
	KindDuplicateColumn    Kind = "duplicate_column"
	KindTupleMissing       Kind = "tuple_missing"
	KindDataCorruption     Kind = "data_corruption"
	KindReservedValue      Kind = "reserved_value"
	KindVersionMismatch    Kind = "version_mismatch"

	// Transaction kinds.
	KindClosedDBO Kind = "closed_dbo"
	KindDeadlock  Kind = "deadlock"
	KindAborted   Kind = "aborted"
	KindCancelled Kind = "cancelled"

	// Query kinds.
	KindSyntax             Kind = "syntax"
	KindTypeMismatch       Kind = "type_mismatch"
	KindUnsupportedPredicate Kind = "unsupported_predicate"
	KindBindingUnknown     Kind = "binding_unknown"
	KindPolicyViolation    Kind = "policy_violation"

	// Function kinds.
	KindNotSupported      Kind = "not_supported"
	KindSignatureMismatch Kind = "signature_mismatch"

	// IO kinds.
	KindStoreMissing   Kind = "store_missing"
	KindOutOfDiskSpace Kind = "out_of_disk_space"
	KindIOOther        Kind = "io_other"
)

// Error is the single error type surfaced across package boundaries. It
// names the Kind of failure and the fully-qualified object affected so
// that every failure produces a stable, human-readable diagnosis.
type Error struct {
	Kind   Kind
	Object string
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Object != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Object)
	case e.Object != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Object)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error for the given kind, naming the affected object.
func New(kind Kind, object, msg string) *Error {
	return &Error{Kind: kind, Object: object, Msg: msg}
}

// Wrap annotates a lower-level error with a Kind and affected object,
// preserving the original error as the cause.
func Wrap(kind Kind, object string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Object: object, Msg: msg, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err is not a
// *Error (or wraps one).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
