/*
errors.go - Centralized error types for the compensation engine

PURPOSE:
  All error types in one place. The taxonomy follows who is at fault and
  what the caller should do about it:

  1. Validation errors   - bad submitter input; surface verbatim, never retry
  2. Configuration errors - catalog invariant violations; a deployment bug,
                            surfaced distinctly from validation errors
  3. Reconciliation errors - the configured components exceed the target CTC;
                            surfaced with the computed shortfall
  4. State errors        - transition attempted from the wrong state, or no
                            authorization decision supplied; surfaced as
                            conflicts for the caller to refresh and retry
  5. Concurrency conflicts - the current-pointer compare-and-set lost a race;
                            the approver must reload and re-approve

USAGE:
  Callers classify with errors.Is() or the helpers below:

    if comp.IsClientError(err) { ... 400 ... }
    if comp.IsConflict(err)    { ... 409 ... }
    if comp.IsConfigError(err) { ... 500, page the on-call ... }
*/
package comp

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed submitter input (non-positive
	// CTC, missing employee, zero effective month, empty rejection reason).
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEffectiveMonth is returned when another non-rejected
	// structure already targets the same employee and effective month.
	ErrDuplicateEffectiveMonth = errors.New("duplicate effective month")

	// ErrNotPending is returned when a decision is attempted on a structure
	// that is not in pending_approval. Approval is a one-shot transition:
	// a second Approve on the same id gets this error, never a silent success.
	ErrNotPending = errors.New("structure is not pending approval")

	// ErrNotDraft is returned when submit-for-approval is attempted on a
	// structure that is not in draft.
	ErrNotDraft = errors.New("structure is not a draft")

	// ErrUnauthorized is returned when no positive authorization decision
	// was supplied with an Approve/Reject call. The capability check itself
	// belongs to the external auth collaborator.
	ErrUnauthorized = errors.New("authorization decision missing or denied")

	// ErrCurrentConflict is returned when the current-pointer update loses
	// a race with another approval for the same employee. Fail fast; the
	// approver reloads and re-approves if the structure is still valid.
	ErrCurrentConflict = errors.New("current structure changed concurrently")

	// ErrStructureNotFound is returned when a structure id does not exist.
	ErrStructureNotFound = errors.New("structure not found")

	// ErrNoCurrentStructure is returned by GetCurrent when the employee has
	// no approved structure yet.
	ErrNoCurrentStructure = errors.New("no current structure")

	// Configuration errors: catalog invariants violated.
	ErrCatalogInvalid            = errors.New("invalid catalog")
	ErrAmbiguousBasic            = errors.New("ambiguous basic component")
	ErrMultipleBalanceComponents = errors.New("multiple balance components in catalog")
	ErrUnknownCalcType           = errors.New("unknown calc type")
	ErrMissingMandatoryComponent = errors.New("mandatory component missing from catalog")

	// ErrCTCInsufficient is returned when the configured components already
	// exceed the target CTC, which would force the balance component
	// negative. Never clamped silently.
	ErrCTCInsufficient = errors.New("target CTC insufficient for configured components")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CTCInsufficientError reports the computed shortfall so the caller can
// adjust component percentages or the target CTC.
type CTCInsufficientError struct {
	AnnualCTC Money
	Allocated Money // sum of all non-balance earnings + deferred components
	Shortfall Money // Allocated - AnnualCTC, always positive
}

func (e *CTCInsufficientError) Error() string {
	return fmt.Sprintf("CTC insufficient: target %s, components need %s, shortfall %s",
		e.AnnualCTC, e.Allocated, e.Shortfall)
}

func (e *CTCInsufficientError) Unwrap() error { return ErrCTCInsufficient }

// UnknownCalcTypeError names the component carrying the unknown rule.
type UnknownCalcTypeError struct {
	Key      ComponentKey
	CalcType CalcType
}

func (e *UnknownCalcTypeError) Error() string {
	return fmt.Sprintf("unknown calc type %q on component %q", e.CalcType, e.Key)
}

func (e *UnknownCalcTypeError) Unwrap() error { return ErrUnknownCalcType }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the submitter's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCTCInsufficient)
}

// IsConflict reports whether the caller should refresh and retry manually.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrNotDraft) ||
		errors.Is(err, ErrDuplicateEffectiveMonth) ||
		errors.Is(err, ErrCurrentConflict)
}

// IsConfigError reports whether the error indicates a deployment/config
// bug rather than bad input. These are logged and surfaced distinctly.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrCatalogInvalid) ||
		errors.Is(err, ErrAmbiguousBasic) ||
		errors.Is(err, ErrMultipleBalanceComponents) ||
		errors.Is(err, ErrUnknownCalcType) ||
		errors.Is(err, ErrMissingMandatoryComponent)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStructureNotFound) ||
		errors.Is(err, ErrNoCurrentStructure)
}
