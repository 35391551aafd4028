/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (decimal-backed Money, typed ids) from the
  external API contract: amounts cross the wire as plain numbers, months
  as "YYYY-MM" strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the lifecycle service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/catalog.go: CatalogJSON type reused for catalog payloads
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/comp"
	"github.com/warp/comp-engine/directory"
	"github.com/warp/comp-engine/factory"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// OverrideRequest customizes one component for a preview or submission.
type OverrideRequest struct {
	Key     string   `json:"key"`
	Enabled bool     `json:"enabled"`
	Value   *float64 `json:"value,omitempty"`
}

// PreviewRequest resolves a structure without persisting anything.
// Catalog, when present, replaces the process-wide catalog for this one
// computation (useful for what-if modelling against a draft catalog).
type PreviewRequest struct {
	AnnualCTC              float64              `json:"annual_ctc"`
	RetentionBonus         float64              `json:"retention_bonus,omitempty"`
	RetentionVestingMonths int                  `json:"retention_vesting_months,omitempty"`
	Overrides              []OverrideRequest    `json:"overrides,omitempty"`
	Catalog                *factory.CatalogJSON `json:"catalog,omitempty"`
}

// SubmitRequest creates a structure for the employee in the URL.
type SubmitRequest struct {
	AnnualCTC              float64           `json:"annual_ctc"`
	RetentionBonus         float64           `json:"retention_bonus,omitempty"`
	RetentionVestingMonths int               `json:"retention_vesting_months,omitempty"`
	EffectiveMonth         string            `json:"effective_month"`
	Overrides              []OverrideRequest `json:"overrides,omitempty"`
	Remarks                string            `json:"remarks,omitempty"`
	SubmittedBy            string            `json:"submitted_by"`
	AsDraft                bool              `json:"as_draft,omitempty"`
}

// DecisionRequest approves or rejects a pending structure. Role is the
// caller's role as established by the external auth layer; the engine
// records it but does not evaluate it.
type DecisionRequest struct {
	DecidedBy string `json:"decided_by"`
	Role      string `json:"role,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ComponentDTO is one resolved component.
type ComponentDTO struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	Classification string  `json:"classification"`
	CalcType       string  `json:"calc_type"`
	Monthly        float64 `json:"monthly"`
	Annual         float64 `json:"annual"`
	Enabled        bool    `json:"enabled"`
}

// SummaryDTO is the totals block.
type SummaryDTO struct {
	GrossMonthly           float64 `json:"gross_monthly"`
	TotalDeductionsMonthly float64 `json:"total_deductions_monthly"`
	InHandApproxMonthly    float64 `json:"in_hand_approx_monthly"`
	AnnualCTC              float64 `json:"annual_ctc"`
}

// RoundingDTO is the rounding self-check report.
type RoundingDTO struct {
	ComponentCount  int     `json:"component_count"`
	CumulativeDrift float64 `json:"cumulative_drift"`
	Exceeded        bool    `json:"exceeded"`
}

// ResolvedDTO is a full resolution result.
type ResolvedDTO struct {
	Components             []ComponentDTO `json:"components"`
	Summary                SummaryDTO     `json:"summary"`
	Rounding               RoundingDTO    `json:"rounding"`
	RetentionVestingMonths int            `json:"retention_vesting_months,omitempty"`
}

// StructureDTO is a compensation structure in API responses.
type StructureDTO struct {
	ID                     string       `json:"id"`
	EmployeeID             string       `json:"employee_id"`
	AnnualCTC              float64      `json:"annual_ctc"`
	RetentionBonus         float64      `json:"retention_bonus,omitempty"`
	RetentionVestingMonths int          `json:"retention_vesting_months,omitempty"`
	EffectiveMonth         string       `json:"effective_month"`
	Status                 string       `json:"status"`
	Resolved               *ResolvedDTO `json:"resolved,omitempty"`
	CreatedBy              string       `json:"created_by,omitempty"`
	CreatedAt              string       `json:"created_at"`
	DecidedBy              string       `json:"decided_by,omitempty"`
	DecidedAt              string       `json:"decided_at,omitempty"`
	Remarks                string       `json:"remarks,omitempty"`
	RejectionReason        string       `json:"rejection_reason,omitempty"`
	PreviousStructureID    string       `json:"previous_structure_id,omitempty"`
}

// ComparisonDTO reports the change against the superseded structure.
// PercentChange is only meaningful when Applicable is true; "n/a"
// otherwise.
type ComparisonDTO struct {
	Applicable      bool    `json:"applicable"`
	OldGrossMonthly float64 `json:"old_gross_monthly"`
	NewGrossMonthly float64 `json:"new_gross_monthly"`
	PercentChange   float64 `json:"percent_change"`
}

// EmployeeDTO is a directory record.
type EmployeeDTO struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Department           string   `json:"department,omitempty"`
	Designation          string   `json:"designation,omitempty"`
	ExistingAnnualSalary *float64 `json:"existing_annual_salary,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toOverrides(reqs []OverrideRequest) []comp.ComponentOverride {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]comp.ComponentOverride, 0, len(reqs))
	for _, r := range reqs {
		ov := comp.ComponentOverride{
			Key:     comp.ComponentKey(r.Key),
			Enabled: r.Enabled,
		}
		if r.Value != nil {
			v := decimal.NewFromFloat(*r.Value)
			ov.Value = &v
		}
		out = append(out, ov)
	}
	return out
}

func toResolvedDTO(r *comp.ResolvedStructure) *ResolvedDTO {
	if r == nil {
		return nil
	}
	dto := &ResolvedDTO{
		Summary: SummaryDTO{
			GrossMonthly:           r.Summary.GrossMonthly.Float64(),
			TotalDeductionsMonthly: r.Summary.TotalDeductionsMonthly.Float64(),
			InHandApproxMonthly:    r.Summary.InHandApproxMonthly.Float64(),
			AnnualCTC:              r.Summary.AnnualCTC.Float64(),
		},
		Rounding: RoundingDTO{
			ComponentCount:  r.Rounding.ComponentCount,
			CumulativeDrift: r.Rounding.CumulativeDrift.Float64(),
			Exceeded:        r.Rounding.Exceeded,
		},
		RetentionVestingMonths: r.RetentionVestingMonths,
	}
	for _, c := range r.Components {
		dto.Components = append(dto.Components, ComponentDTO{
			Key:            string(c.Key),
			Name:           c.Name,
			Classification: string(c.Classification),
			CalcType:       string(c.CalcType),
			Monthly:        c.Monthly.Float64(),
			Annual:         c.Annual.Float64(),
			Enabled:        c.Enabled,
		})
	}
	return dto
}

func toStructureDTO(s *comp.CompensationStructure) StructureDTO {
	dto := StructureDTO{
		ID:                     string(s.ID),
		EmployeeID:             string(s.EmployeeID),
		AnnualCTC:              s.AnnualCTC.Float64(),
		RetentionBonus:         s.RetentionBonus.Float64(),
		RetentionVestingMonths: s.RetentionVestingMonths,
		EffectiveMonth:         s.EffectiveMonth.String(),
		Status:                 string(s.Status),
		Resolved:               toResolvedDTO(s.Resolved),
		CreatedBy:              s.CreatedBy,
		CreatedAt:              s.CreatedAt.Format(time.RFC3339),
		DecidedBy:              s.DecidedBy,
		Remarks:                s.Remarks,
		RejectionReason:        s.RejectionReason,
	}
	if s.DecidedAt != nil {
		dto.DecidedAt = s.DecidedAt.Format(time.RFC3339)
	}
	if s.PreviousStructureID != nil {
		dto.PreviousStructureID = string(*s.PreviousStructureID)
	}
	return dto
}

func toEmployeeDTO(e *directory.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:          string(e.ID),
		Name:        e.Name,
		Department:  e.Department,
		Designation: e.Designation,
	}
	if e.ExistingAnnualSalary != nil {
		salary := e.ExistingAnnualSalary.Float64()
		dto.ExistingAnnualSalary = &salary
	}
	return dto
}
