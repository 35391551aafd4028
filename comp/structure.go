/*
structure.go - The versioned compensation structure aggregate

PURPOSE:
  A CompensationStructure wraps one resolved pay structure in a versioned
  record with an explicit state machine:

      draft ──▶ pending_approval ──▶ approved
                       │
                       └──────────▶ rejected

  draft is optional staging and may be skipped. approved and rejected are
  terminal: a rejected structure is never reopened, only superseded by a
  brand-new submission with a new id.

OWNERSHIP:
  The lifecycle service (service.go) exclusively owns state transitions and
  the per-employee "current structure" pointer. The resolver owns no state.
  The resolved snapshot is frozen at submission time - re-resolution never
  happens implicitly later, so the approver decides on exactly what was
  computed when HR submitted.

SEE ALSO:
  - service.go: Submit/Approve/Reject operations
  - store.go: Persistence contract, including the current-pointer CAS
*/
package comp

import "time"

// =============================================================================
// STATUS - State machine values
// =============================================================================

type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending_approval"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// transitions is the complete transition table. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusPending},
	StatusPending: {StatusApproved, StatusRejected},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// COMPENSATION STRUCTURE - The aggregate
// =============================================================================

type CompensationStructure struct {
	ID         StructureID `json:"id"`
	EmployeeID EmployeeID  `json:"employee_id"`

	// AnnualCTC is the target; immutable once approved.
	AnnualCTC Money `json:"annual_ctc"`

	RetentionBonus         Money `json:"retention_bonus"`
	RetentionVestingMonths int   `json:"retention_vesting_months,omitempty"`

	// EffectiveMonth is the payroll month this structure takes effect.
	// Unique per employee among non-rejected structures.
	EffectiveMonth Month `json:"effective_month"`

	Overrides []ComponentOverride `json:"overrides,omitempty"`

	// Resolved is the frozen snapshot computed at submission time.
	Resolved *ResolvedStructure `json:"resolved"`

	Status Status `json:"status"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	DecidedBy       string     `json:"decided_by,omitempty"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	Remarks         string     `json:"remarks,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// PreviousStructureID is a back-reference (not ownership) to the
	// structure this one would supersede, recorded at submission time for
	// the percentage-change comparison.
	PreviousStructureID *StructureID `json:"previous_structure_id,omitempty"`
}

// =============================================================================
// AUTHORIZATION - Decision supplied by the external auth collaborator
// =============================================================================

// Authorization carries the caller's identity and the auth collaborator's
// verdict. The engine never evaluates roles itself; it only refuses to act
// when no positive decision was supplied, and records who decided.
type Authorization struct {
	ActorID string
	Role    string
	Allowed bool
}

func (a Authorization) valid() bool {
	return a.Allowed && a.ActorID != ""
}

// =============================================================================
// COMPARISON - Percentage change against the superseded structure
// =============================================================================

// Comparison reports the monthly-gross change against the previous
// structure. Applicable is false when there is no previous structure or
// its gross was zero - "n/a", never a division by zero and never a guess
// that a 0 to X jump is meaningful.
type Comparison struct {
	Applicable      bool    `json:"applicable"`
	OldGrossMonthly Money   `json:"old_gross_monthly"`
	NewGrossMonthly Money   `json:"new_gross_monthly"`
	PercentChange   float64 `json:"percent_change"`
}
