/*
resolve.go - The component resolution algorithm

PURPOSE:
  Turns a flat list of rule-typed components into concrete monthly and
  annual amounts, reconciled against a target annual CTC via the balance
  component. This is a pure function: no side effects, no I/O, identical
  inputs always produce identical output. That property is what makes the
  preview feature trustworthy - the approver sees exactly what was
  computed at submission, and audits can re-derive any historical result.

RESOLUTION ORDER:
  Components resolve in a fixed multi-pass pipeline, NOT in catalog order
  (catalog order is display-only) and NOT via a generic dependency graph -
  the rule set is small and fixed, so five explicit passes are clearer:

    pass 1: fixed_monthly, fixed_annual, percentage_of_ctc  (no deps)
    pass 2: establish the basic anchor                      (needs pass 1)
    pass 3: percentage_of_basic                             (needs pass 2)
    pass 4: percentage_of_gross                             (needs gross of 1-3)
    pass 5: balance = CTC - other earnings - deferred       (needs 1-4)

  A negative balance is never clamped: it means the configured components
  already exceed the target CTC, and the caller gets the shortfall back
  in a CTCInsufficientError.

ROUNDING:
  Annual values divide by 12 with round-half-to-even at the currency
  sub-unit. The RoundingReport re-sums monthly*12 per component and flags
  (but never fails on) cumulative drift beyond one sub-unit per component.

SEE ALSO:
  - catalog.go: Input types and the override merge
  - errors.go: Failure modes
*/
package comp

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// ResolveInput is everything the resolver needs. It holds no references to
// shared state; callers may resolve concurrently without locking.
type ResolveInput struct {
	Catalog   Catalog
	Overrides []ComponentOverride
	AnnualCTC Money

	// RetentionBonus is folded in as a synthetic deferred component: part
	// of CTC, never part of monthly gross, paid as a lump sum at vesting.
	RetentionBonus         Money
	RetentionVestingMonths int
}

// ResolvedComponent is one component's concrete outcome.
type ResolvedComponent struct {
	Key            ComponentKey   `json:"key"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	CalcType       CalcType       `json:"calc_type"`
	Monthly        Money          `json:"monthly"`
	Annual         Money          `json:"annual"`
	Enabled        bool           `json:"enabled"`
}

// Summary is the caller-facing totals block.
type Summary struct {
	GrossMonthly           Money `json:"gross_monthly"`
	TotalDeductionsMonthly Money `json:"total_deductions_monthly"`
	InHandApproxMonthly    Money `json:"in_hand_approx_monthly"`
	AnnualCTC              Money `json:"annual_ctc"`
}

// RoundingReport is the self-check of monthly*12 against annual values.
// Informational only: resolution never fails on rounding drift.
type RoundingReport struct {
	ComponentCount  int   `json:"component_count"`
	CumulativeDrift Money `json:"cumulative_drift"`
	Exceeded        bool  `json:"exceeded"`
}

// ResolvedStructure is the full resolver output.
type ResolvedStructure struct {
	Components             []ResolvedComponent `json:"components"`
	Summary                Summary             `json:"summary"`
	Rounding               RoundingReport      `json:"rounding"`
	RetentionVestingMonths int                 `json:"retention_vesting_months,omitempty"`
}

// RetentionBonusKey is the key of the synthetic deferred component the
// resolver appends when a retention bonus is present.
const RetentionBonusKey ComponentKey = "retention_bonus"

// =============================================================================
// RESOLVE - The pure resolution function
// =============================================================================

// Resolve computes the full pay structure. Any component it cannot resolve
// aborts the entire resolution - a partially resolved compensation
// structure is worse than an explicit failure.
func Resolve(in ResolveInput) (*ResolvedStructure, error) {
	if err := in.Catalog.Validate(); err != nil {
		return nil, err
	}
	if !in.AnnualCTC.IsPositive() {
		return nil, &ValidationError{Field: "annual_ctc", Message: "must be positive"}
	}
	if in.RetentionBonus.IsNegative() {
		return nil, &ValidationError{Field: "retention_bonus", Message: "must not be negative"}
	}

	merged := merge(in.Catalog, in.Overrides)
	annuals := make(map[ComponentKey]Money, len(merged))

	// Pass 1: independent components.
	for _, mc := range merged {
		if !mc.enabled {
			continue
		}
		switch mc.def.CalcType {
		case CalcFixedMonthly:
			annuals[mc.def.Key] = Money{Value: mc.value.Mul(decimal.NewFromInt(12))}
		case CalcFixedAnnual:
			annuals[mc.def.Key] = Money{Value: mc.value}
		case CalcPercentOfCTC:
			annuals[mc.def.Key] = in.AnnualCTC.Percent(mc.value)
		case CalcPercentOfBasic, CalcPercentOfGross, CalcBalance:
			// Later passes.
		default:
			return nil, &UnknownCalcTypeError{Key: mc.def.Key, CalcType: mc.def.CalcType}
		}
	}

	// Pass 2: basic anchor, only needed when something depends on it.
	if needsBasic(merged) {
		basicAnnual, err := resolveBasic(merged, annuals)
		if err != nil {
			return nil, err
		}

		// Pass 3: percentage_of_basic.
		for _, mc := range merged {
			if mc.enabled && mc.def.CalcType == CalcPercentOfBasic {
				annuals[mc.def.Key] = basicAnnual.Percent(mc.value)
			}
		}
	}

	// Pass 4: percentage_of_gross. Gross here is every enabled earning
	// resolved so far - i.e. everything except the balance component and
	// percentage_of_gross earnings themselves.
	gross := ZeroMoney()
	for _, mc := range merged {
		if mc.enabled && mc.def.Classification == ClassEarning {
			if a, ok := annuals[mc.def.Key]; ok {
				gross = gross.Add(a)
			}
		}
	}
	for _, mc := range merged {
		if mc.enabled && mc.def.CalcType == CalcPercentOfGross {
			annuals[mc.def.Key] = gross.Percent(mc.value)
		}
	}

	// Pass 5: balance component reconciles everything to the target CTC.
	allocated := ZeroMoney()
	for _, mc := range merged {
		if !mc.enabled || mc.def.CalcType == CalcBalance {
			continue
		}
		if mc.def.Classification == ClassEarning || mc.def.Classification == ClassDeferred {
			allocated = allocated.Add(annuals[mc.def.Key])
		}
	}
	allocated = allocated.Add(in.RetentionBonus)

	for _, mc := range merged {
		if mc.enabled && mc.def.CalcType == CalcBalance {
			remainder := in.AnnualCTC.Sub(allocated)
			if remainder.IsNegative() {
				return nil, &CTCInsufficientError{
					AnnualCTC: in.AnnualCTC,
					Allocated: allocated,
					Shortfall: remainder.Neg(),
				}
			}
			annuals[mc.def.Key] = remainder
		}
	}

	return assemble(in, merged, annuals), nil
}

// needsBasic reports whether any enabled component depends on the basic
// anchor.
func needsBasic(merged []mergedComponent) bool {
	for _, mc := range merged {
		if mc.enabled && mc.def.CalcType == CalcPercentOfBasic {
			return true
		}
	}
	return false
}

// resolveBasic establishes the basic anchor's annual value. An explicit
// IsBasic marker wins; otherwise there must be exactly one enabled earning
// component with an independently resolvable calc type.
func resolveBasic(merged []mergedComponent, annuals map[ComponentKey]Money) (Money, error) {
	anchorable := func(mc mergedComponent) bool {
		if !mc.enabled || mc.def.Classification != ClassEarning {
			return false
		}
		switch mc.def.CalcType {
		case CalcPercentOfCTC, CalcFixedMonthly, CalcFixedAnnual:
			return true
		}
		return false
	}

	for _, mc := range merged {
		if mc.def.IsBasic && mc.enabled {
			if !anchorable(mc) {
				return Money{}, ErrAmbiguousBasic
			}
			return annuals[mc.def.Key], nil
		}
	}

	var candidates []ComponentKey
	for _, mc := range merged {
		if anchorable(mc) {
			candidates = append(candidates, mc.def.Key)
		}
	}
	if len(candidates) != 1 {
		return Money{}, ErrAmbiguousBasic
	}
	return annuals[candidates[0]], nil
}

// assemble builds the output list (catalog display order, synthetic
// retention bonus last), the summary totals, and the rounding self-check.
func assemble(in ResolveInput, merged []mergedComponent, annuals map[ComponentKey]Money) *ResolvedStructure {
	components := make([]ResolvedComponent, 0, len(merged)+1)
	for _, mc := range merged {
		rc := ResolvedComponent{
			Key:            mc.def.Key,
			Name:           mc.def.Name,
			Classification: mc.def.Classification,
			CalcType:       mc.def.CalcType,
			Enabled:        mc.enabled,
		}
		if mc.enabled {
			rc.Annual = annuals[mc.def.Key]
			rc.Monthly = rc.Annual.PerMonth()
		} else {
			// Disabled components resolve to zero but stay in the output
			// so the caller can still display them.
			rc.Annual = ZeroMoney()
			rc.Monthly = ZeroMoney()
		}
		components = append(components, rc)
	}

	if in.RetentionBonus.IsPositive() {
		components = append(components, ResolvedComponent{
			Key:            RetentionBonusKey,
			Name:           "Retention Bonus",
			Classification: ClassDeferred,
			CalcType:       CalcFixedAnnual,
			Annual:         in.RetentionBonus,
			Monthly:        ZeroMoney(), // lump sum at vesting, never monthly
			Enabled:        true,
		})
	}

	summary := Summary{
		GrossMonthly:           ZeroMoney(),
		TotalDeductionsMonthly: ZeroMoney(),
		AnnualCTC:              in.AnnualCTC,
	}
	for _, rc := range components {
		if !rc.Enabled {
			continue
		}
		switch rc.Classification {
		case ClassEarning:
			summary.GrossMonthly = summary.GrossMonthly.Add(rc.Monthly)
		case ClassDeduction:
			summary.TotalDeductionsMonthly = summary.TotalDeductionsMonthly.Add(rc.Monthly)
		}
	}
	summary.InHandApproxMonthly = summary.GrossMonthly.Sub(summary.TotalDeductionsMonthly)

	twelve := decimal.NewFromInt(12)
	drift := decimal.Zero
	for _, rc := range components {
		if !rc.Enabled {
			continue
		}
		if rc.Key == RetentionBonusKey {
			// Pays nothing monthly by contract; its annual value is
			// not a rounding artifact.
			continue
		}
		delta := rc.Monthly.Value.Mul(twelve).Sub(rc.Annual.Value).Abs()
		drift = drift.Add(delta)
	}
	subunit := decimal.New(1, -2) // one currency sub-unit
	tolerance := subunit.Mul(decimal.NewFromInt(int64(len(components))))

	return &ResolvedStructure{
		Components: components,
		Summary:    summary,
		Rounding: RoundingReport{
			ComponentCount:  len(components),
			CumulativeDrift: Money{Value: drift},
			Exceeded:        drift.GreaterThan(tolerance),
		},
		RetentionVestingMonths: in.RetentionVestingMonths,
	}
}
