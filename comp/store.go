/*
store.go - Persistence contract for structures and the history ledger

PURPOSE:
  Defines the interface between the lifecycle service and the database.
  Two properties of the underlying store are load-bearing:

  1. INSERT-IF-ABSENT on (employee_id, effective_month) over non-rejected
     structures. Two submissions racing for the same employee and month
     must serialize here - a unique-constraint or compare-and-set
     primitive, not a read-then-write.

  2. The decision + current-pointer update is ATOMIC. Approving flips
     status pending_approval -> approved AND compare-and-sets the
     employee's current-structure pointer in one operation. If two
     approvers race on two pending structures for the same employee,
     exactly one wins; the other fails fast with ErrCurrentConflict.

HISTORY LEDGER:
  The structures table IS the history ledger: rows are only ever inserted,
  and the single pending -> terminal status flip is the only update this
  interface permits. No delete path exists. Rejected structures stay
  forever for audit; they are just never made current.

IMPLEMENTATIONS:
  - comp/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: Production SQLite

SEE ALSO:
  - service.go: The only writer
*/
package comp

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Structure persistence
// =============================================================================

type Store interface {
	// InsertStructure persists a new structure, enforcing the
	// (employee_id, effective_month) uniqueness among non-rejected rows.
	// Returns ErrDuplicateEffectiveMonth on conflict.
	InsertStructure(ctx context.Context, s *CompensationStructure) error

	// GetStructure returns a structure by id, or ErrStructureNotFound.
	GetStructure(ctx context.Context, id StructureID) (*CompensationStructure, error)

	// MarkSubmitted moves a draft to pending_approval.
	// Returns ErrNotDraft if the structure is not a draft.
	MarkSubmitted(ctx context.Context, id StructureID, at time.Time) error

	// MarkApproved atomically (a) flips pending_approval -> approved with
	// the decision audit fields and (b) compare-and-sets the employee's
	// current pointer from expectedPrevious to id.
	// Returns ErrNotPending if the structure is not pending, and
	// ErrCurrentConflict if the pointer no longer matches expectedPrevious.
	// expectedPrevious is captured at submission time, so a pending
	// structure whose baseline has since been superseded can never be
	// approved: it must be rejected and resubmitted against the new
	// current structure.
	MarkApproved(ctx context.Context, id StructureID, decidedBy string, at time.Time, remarks string, expectedPrevious *StructureID) error

	// MarkRejected flips pending_approval -> rejected, recording the
	// reason. Never touches the current pointer.
	// Returns ErrNotPending if the structure is not pending.
	MarkRejected(ctx context.Context, id StructureID, decidedBy string, at time.Time, reason string) error

	// CurrentStructureID returns the employee's current pointer, or nil
	// when the employee has no approved structure.
	CurrentStructureID(ctx context.Context, employeeID EmployeeID) (*StructureID, error)

	// ListByStatus returns all structures in the given status, ordered by
	// CreatedAt ascending.
	ListByStatus(ctx context.Context, status Status) ([]*CompensationStructure, error)

	// ListByEmployee returns every structure version for the employee -
	// the history ledger view - ordered by effective_month ascending.
	ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]*CompensationStructure, error)

	// CountByStatus returns per-status totals.
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// =============================================================================
// CATALOG STORE - Optional persistence for the process-wide catalog
// =============================================================================

// CatalogStore persists the catalog configuration so admin replacements
// survive restarts. Implementations store the raw factory JSON.
type CatalogStore interface {
	SaveCatalog(ctx context.Context, configJSON string) error

	// LoadCatalog returns the stored config, or ("", nil) when none has
	// been saved yet.
	LoadCatalog(ctx context.Context) (string, error)
}
