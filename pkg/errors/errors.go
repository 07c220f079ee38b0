// Package errors defines the error taxonomy shared by the PHI core.
// Every public operation surfaces one of these kinds; callers dispatch
// with errors.Is rather than string matching. Messages never carry key
// material or field plaintext.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Key vault errors
	ErrKeyVaultUnavailable = errors.New("key vault unavailable")
	ErrKeyCorrupt          = errors.New("key material corrupt")

	// Field encryption errors
	ErrSchemaMismatch    = errors.New("ciphertext algorithm does not match field schema")
	ErrDecryptionFailure = errors.New("decryption failed")
	ErrEncryptionFailure = errors.New("encryption failed")

	// Policy outcomes surfaced as errors at the service boundary
	ErrPolicyDeny     = errors.New("access denied by policy")
	ErrMissingSubject = errors.New("action requires a target entity")

	// Audit errors
	ErrAuditWriteFailure = errors.New("audit write failed")

	// Transient store/vault failure; retryable by the caller.
	ErrUnavailable = errors.New("backing store unavailable")

	// Lookup misses
	ErrNotFound = errors.New("not found")
)

// KeyVaultUnavailable wraps a vault round-trip failure, preserving the kind.
func KeyVaultUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrKeyVaultUnavailable, err)
}

// KeyCorrupt marks a key that exists under its alt-name but cannot be
// unwrapped or parsed. Fatal: implies key material loss, never retried.
func KeyCorrupt(altName string) error {
	return fmt.Errorf("%w: alt-name %q", ErrKeyCorrupt, altName)
}

// SchemaMismatch reports a stored algorithm tag that disagrees with the
// field's configured classification.
func SchemaMismatch(field string, stored, configured string) error {
	return fmt.Errorf("%w: field %q stored as %s, configured as %s",
		ErrSchemaMismatch, field, stored, configured)
}

// DecryptionFailure marks malformed or truncated ciphertext for a field.
// Callers must treat this as data-integrity failure, not absence.
func DecryptionFailure(field string) error {
	return fmt.Errorf("%w: field %q", ErrDecryptionFailure, field)
}

// EncryptionFailure marks a cipher failure while sealing a field.
func EncryptionFailure(field string) error {
	return fmt.Errorf("%w: field %q", ErrEncryptionFailure, field)
}

// PolicyDeny reports a denied (action, entity type) pair. A normal outcome
// of evaluation, not a system fault.
func PolicyDeny(action, entityType string) error {
	return fmt.Errorf("%w: %s on %s", ErrPolicyDeny, action, entityType)
}

// MissingSubject reports a target-scoped action invoked without a target.
func MissingSubject(action string) error {
	return fmt.Errorf("%w: %s", ErrMissingSubject, action)
}

// AuditWriteFailure wraps an exhausted audit append. The operation it was
// auditing must fail with it (fail-closed).
func AuditWriteFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrAuditWriteFailure, err)
}

// Unavailable wraps a transient store failure as retryable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// NotFound reports a missing record.
func NotFound(entityType string) error {
	return fmt.Errorf("%s %w", entityType, ErrNotFound)
}

// IsRetryable reports whether the error represents a transient failure
// that may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrKeyVaultUnavailable)
}

// IsFatal reports whether the error implies data or key integrity loss
// and must never be retried silently.
func IsFatal(err error) bool {
	return errors.Is(err, ErrKeyCorrupt) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrDecryptionFailure)
}

// IsDenied reports whether the error is an authorization outcome rather
// than a system fault.
func IsDenied(err error) bool {
	return errors.Is(err, ErrPolicyDeny) || errors.Is(err, ErrMissingSubject)
}
