/*
service.go - Structure lifecycle operations

PURPOSE:
  The lifecycle service is the single owner of state transitions and the
  per-employee current-structure pointer. It re-uses the resolver at
  Submit time as the validation step: if resolution fails, no structure
  row is created at all.

OPERATION FLOW:

  Preview  ──▶ Resolve only, nothing persisted
  Submit   ──▶ Resolve ──▶ freeze snapshot ──▶ insert-if-absent ──▶ notify
  Approve  ──▶ pending? auth supplied? ──▶ atomic status flip + pointer CAS ──▶ notify
  Reject   ──▶ pending? reason given?  ──▶ status flip only ──▶ notify

NOTIFICATIONS:
  Dispatched on a separate goroutine after the transition commits. A
  failed dispatch never rolls the transition back.

CONCURRENCY:
  The resolver is a pure function - concurrent Preview/Submit calls need
  no locking. The only shared mutable state is in the Store, which
  provides the insert-if-absent and compare-and-set primitives, and the
  process-wide catalog, which is guarded by an RWMutex for admin
  replacement.

SEE ALSO:
  - resolve.go: The validation/computation step
  - store.go: Atomicity contract the service relies on
*/
package comp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store    Store
	notifier Notifier

	mu      sync.RWMutex
	catalog Catalog

	// Overridable for tests.
	now   func() time.Time
	newID func() StructureID
}

// NewService creates a lifecycle service over the given store and catalog.
// The catalog is validated up front: an invalid catalog is a deployment
// bug and the process should not come up with one.
func NewService(store Store, catalog Catalog, notifier Notifier) (*Service, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		notifier: notifier,
		catalog:  catalog,
		now:      time.Now,
		newID:    func() StructureID { return StructureID(uuid.NewString()) },
	}, nil
}

// Catalog returns the current process-wide catalog snapshot.
func (s *Service) Catalog() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Catalog{Components: make([]ComponentDefinition, len(s.catalog.Components))}
	copy(out.Components, s.catalog.Components)
	return out
}

// ReplaceCatalog swaps the process-wide catalog (admin operation). The
// replacement is validated; persistence is the caller's concern (see
// CatalogStore).
func (s *Service) ReplaceCatalog(catalog Catalog) error {
	if err := catalog.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
	return nil
}

// =============================================================================
// PREVIEW - Resolution without persistence
// =============================================================================

// PreviewInput mirrors SubmitInput minus the workflow fields. A nil
// Catalog means "use the service's catalog".
type PreviewInput struct {
	Catalog                *Catalog
	Overrides              []ComponentOverride
	AnnualCTC              Money
	RetentionBonus         Money
	RetentionVestingMonths int
}

// Preview resolves without persisting anything. Deterministic: identical
// inputs yield identical output, so what HR previews is exactly what
// Submit will freeze.
func (s *Service) Preview(in PreviewInput) (*ResolvedStructure, error) {
	catalog := s.Catalog()
	if in.Catalog != nil {
		catalog = *in.Catalog
	}
	return Resolve(ResolveInput{
		Catalog:                catalog,
		Overrides:              in.Overrides,
		AnnualCTC:              in.AnnualCTC,
		RetentionBonus:         in.RetentionBonus,
		RetentionVestingMonths: in.RetentionVestingMonths,
	})
}

// =============================================================================
// SUBMIT
// =============================================================================

type SubmitInput struct {
	EmployeeID             EmployeeID
	AnnualCTC              Money
	RetentionBonus         Money
	RetentionVestingMonths int
	EffectiveMonth         Month
	Overrides              []ComponentOverride
	Remarks                string
	SubmittedBy            string

	// AsDraft stages the structure instead of submitting it for approval.
	// Drafts still hold the (employee, effective month) slot.
	AsDraft bool
}

// Submit resolves, freezes the snapshot, and creates the structure in
// pending_approval (or draft). The previous-structure back-reference is
// captured now so the approver can compare against what this submission
// would supersede.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*CompensationStructure, error) {
	if in.EmployeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Message: "required"}
	}
	if in.EffectiveMonth.IsZero() {
		return nil, &ValidationError{Field: "effective_month", Message: "required"}
	}
	if in.RetentionVestingMonths < 0 {
		return nil, &ValidationError{Field: "retention_vesting_months", Message: "must not be negative"}
	}
	if in.RetentionBonus.IsPositive() && in.RetentionVestingMonths == 0 {
		return nil, &ValidationError{Field: "retention_vesting_months", Message: "required with a retention bonus"}
	}

	resolved, err := s.Preview(PreviewInput{
		Overrides:              in.Overrides,
		AnnualCTC:              in.AnnualCTC,
		RetentionBonus:         in.RetentionBonus,
		RetentionVestingMonths: in.RetentionVestingMonths,
	})
	if err != nil {
		return nil, err
	}

	previous, err := s.store.CurrentStructureID(ctx, in.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to read current structure: %w", err)
	}

	status := StatusPending
	if in.AsDraft {
		status = StatusDraft
	}

	structure := &CompensationStructure{
		ID:                     s.newID(),
		EmployeeID:             in.EmployeeID,
		AnnualCTC:              in.AnnualCTC,
		RetentionBonus:         in.RetentionBonus,
		RetentionVestingMonths: in.RetentionVestingMonths,
		EffectiveMonth:         in.EffectiveMonth,
		Overrides:              in.Overrides,
		Resolved:               resolved,
		Status:                 status,
		CreatedBy:              in.SubmittedBy,
		CreatedAt:              s.now().UTC(),
		Remarks:                in.Remarks,
		PreviousStructureID:    previous,
	}

	if err := s.store.InsertStructure(ctx, structure); err != nil {
		return nil, err
	}

	if status == StatusPending {
		s.dispatch(Notification{
			Event:       EventStructureSubmitted,
			EmployeeID:  structure.EmployeeID,
			StructureID: structure.ID,
			Actor:       in.SubmittedBy,
			Message:     fmt.Sprintf("compensation structure effective %s submitted for approval", in.EffectiveMonth),
		})
	}

	return structure, nil
}

// SubmitForApproval moves a staged draft into pending_approval.
func (s *Service) SubmitForApproval(ctx context.Context, id StructureID, submittedBy string) (*CompensationStructure, error) {
	if err := s.store.MarkSubmitted(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	structure, err := s.store.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dispatch(Notification{
		Event:       EventStructureSubmitted,
		EmployeeID:  structure.EmployeeID,
		StructureID: structure.ID,
		Actor:       submittedBy,
		Message:     fmt.Sprintf("compensation structure effective %s submitted for approval", structure.EffectiveMonth),
	})
	return structure, nil
}

// =============================================================================
// APPROVE / REJECT
// =============================================================================

// Approve transitions a pending structure to approved and makes it the
// employee's current structure. One-shot: a second call returns
// ErrNotPending. The auth verdict must come from the caller - the engine
// only refuses to proceed without one and records who decided.
func (s *Service) Approve(ctx context.Context, id StructureID, auth Authorization, remarks string) (*CompensationStructure, error) {
	if !auth.valid() {
		return nil, ErrUnauthorized
	}

	structure, err := s.store.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkApproved(ctx, id, auth.ActorID, s.now().UTC(), remarks, structure.PreviousStructureID); err != nil {
		return nil, err
	}

	approved, err := s.store.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}

	s.dispatch(Notification{
		Event:       EventStructureApproved,
		EmployeeID:  approved.EmployeeID,
		StructureID: approved.ID,
		Actor:       auth.ActorID,
		Message:     fmt.Sprintf("compensation structure effective %s approved", approved.EffectiveMonth),
	})
	return approved, nil
}

// Reject transitions a pending structure to rejected. The rejected row
// stays in history for audit; the current pointer is untouched.
func (s *Service) Reject(ctx context.Context, id StructureID, auth Authorization, reason string) (*CompensationStructure, error) {
	if !auth.valid() {
		return nil, ErrUnauthorized
	}
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "required"}
	}

	if err := s.store.MarkRejected(ctx, id, auth.ActorID, s.now().UTC(), reason); err != nil {
		return nil, err
	}

	rejected, err := s.store.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}

	s.dispatch(Notification{
		Event:       EventStructureRejected,
		EmployeeID:  rejected.EmployeeID,
		StructureID: rejected.ID,
		Actor:       auth.ActorID,
		Message:     fmt.Sprintf("compensation structure effective %s rejected: %s", rejected.EffectiveMonth, reason),
	})
	return rejected, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a structure by id.
func (s *Service) Get(ctx context.Context, id StructureID) (*CompensationStructure, error) {
	return s.store.GetStructure(ctx, id)
}

// GetCurrent returns the employee's single current (approved) structure.
func (s *Service) GetCurrent(ctx context.Context, employeeID EmployeeID) (*CompensationStructure, error) {
	id, err := s.store.CurrentStructureID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrNoCurrentStructure
	}
	return s.store.GetStructure(ctx, *id)
}

// ListPending returns all structures awaiting a decision.
func (s *Service) ListPending(ctx context.Context) ([]*CompensationStructure, error) {
	return s.store.ListByStatus(ctx, StatusPending)
}

// GetHistory returns every structure version for the employee, ordered by
// effective month ascending. Append-only: this is the audit trail.
func (s *Service) GetHistory(ctx context.Context, employeeID EmployeeID) ([]*CompensationStructure, error) {
	return s.store.ListByEmployee(ctx, employeeID)
}

// CompareToPrevious reports the monthly-gross change against the
// structure this one supersedes. Pure read.
func (s *Service) CompareToPrevious(ctx context.Context, id StructureID) (*Comparison, error) {
	structure, err := s.store.GetStructure(ctx, id)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{NewGrossMonthly: structure.Resolved.Summary.GrossMonthly}
	if structure.PreviousStructureID == nil {
		return cmp, nil
	}

	previous, err := s.store.GetStructure(ctx, *structure.PreviousStructureID)
	if err != nil {
		return nil, err
	}

	cmp.OldGrossMonthly = previous.Resolved.Summary.GrossMonthly
	if cmp.OldGrossMonthly.IsZero() {
		return cmp, nil
	}

	cmp.Applicable = true
	change := cmp.NewGrossMonthly.Sub(cmp.OldGrossMonthly)
	cmp.PercentChange, _ = change.Value.
		Div(cmp.OldGrossMonthly.Value).
		Mul(hundred).
		Round(2).
		Float64()
	return cmp, nil
}

// Stats returns the approval-queue totals.
type Stats struct {
	PendingCount  int `json:"pending_count"`
	ApprovedCount int `json:"approved_count"`
	RejectedCount int `json:"rejected_count"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		PendingCount:  counts[StatusPending],
		ApprovedCount: counts[StatusApproved],
		RejectedCount: counts[StatusRejected],
	}, nil
}

// =============================================================================
// NOTIFICATION DISPATCH
// =============================================================================

// dispatch hands the event to the notifier on its own goroutine. By the
// time this runs the transition has committed; the dispatcher gets a
// fresh context so a cancelled request cannot suppress the notification.
func (s *Service) dispatch(n Notification) {
	if s.notifier == nil {
		return
	}
	go s.notifier.Dispatch(context.Background(), n)
}
