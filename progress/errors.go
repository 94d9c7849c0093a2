/*
errors.go - Error types for the progress workflow

PURPOSE:
  Sentinel errors for errors.Is checks plus structured errors carrying
  context for the API boundary (423 for locked periods, 422 for missing
  mandatory evidence).
*/
package progress

import (
	"errors"
	"fmt"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrPeriodLocked is returned when a write targets a reporting period
	// whose quarter has closed. Surfaced as HTTP 423.
	ErrPeriodLocked = errors.New("reporting period is locked")

	// ErrEvidenceRequired is returned when sustained Amber/Red status makes
	// evidence mandatory and the draft carries none.
	ErrEvidenceRequired = errors.New("evidence is required based on sustained Amber/Red status")

	// ErrTargetNotFound is returned when a referenced target doesn't exist
	// or is archived.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUpdateNotFound is returned when a referenced progress update
	// doesn't exist or is archived.
	ErrUpdateNotFound = errors.New("progress update not found")

	// ErrNotSubmitted is returned when approving or rejecting an update
	// that is still a draft.
	ErrNotSubmitted = errors.New("progress update has not been submitted")

	// ErrValidation is returned for malformed draft payloads.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PeriodLockedError carries the lock context for display.
type PeriodLockedError struct {
	TargetID   plan.TargetID
	PeriodEnd  fiscal.Date
	QuarterEnd fiscal.Date
	Today      fiscal.Date
	GraceDays  int
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("period ending %s is locked: quarter closed %s plus %d grace days (today %s)",
		e.PeriodEnd, e.QuarterEnd, e.GraceDays, e.Today)
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

// FieldError reports a single invalid draft field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// IsClientError reports whether the error is the caller's fault rather
// than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrEvidenceRequired) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotSubmitted)
}

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrUpdateNotFound)
}
