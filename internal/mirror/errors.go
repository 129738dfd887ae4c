package mirror

import (
	"errors"
	"fmt"
)

// Sentinel errors categorizing pipeline failures. Callers branch with
// errors.Is instead of inspecting concrete error types.
var (
	// ErrFileTooLarge marks an attachment over the configured size limit.
	// Recovered per attachment; the message persists without it.
	ErrFileTooLarge = errors.New("attachment exceeds maximum size")

	// ErrStorageUnavailable marks an object-store failure. Fatal to the
	// sync pass; the cursor stays at its last committed value.
	ErrStorageUnavailable = errors.New("object storage unavailable")

	// ErrStoreUnavailable marks relational connectivity loss. Fatal to the
	// pass, unlike per-record constraint violations.
	ErrStoreUnavailable = errors.New("relational store unavailable")

	// ErrUnexpectedConflict marks a uniqueness violation on a path that
	// already checked for duplicates. It indicates a concurrent pass is
	// racing this one, so the sync aborts.
	ErrUnexpectedConflict = errors.New("unexpected uniqueness conflict")
)

// FetchError is a terminal fetch failure: either a non-retryable status or
// an exhausted retry budget. Transient statuses are retried internally and
// never surface as FetchError until retries run out.
type FetchError struct {
	URL      string
	Status   int
	Attempts int
}

func (e *FetchError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("fetch %s: status %d after %d attempts", e.URL, e.Status, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// IsOversize reports whether err is a size-gate rejection.
func IsOversize(err error) bool {
	return errors.Is(err, ErrFileTooLarge)
}

// IsFatal reports whether err must abort the whole sync pass rather than
// skip a single record. Page-level fetch errors are fatal by position (they
// occur outside per-record processing), so FetchError is not listed here:
// a media download failure inside a record only skips that record.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrUnexpectedConflict)
}
