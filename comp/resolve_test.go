package comp_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/comp-engine/comp"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testCatalog is the minimal realistic structure: basic at 40% of CTC,
// HRA at 50% of basic, special allowance absorbing the remainder.
func testCatalog() comp.Catalog {
	return comp.Catalog{Components: []comp.ComponentDefinition{
		{
			Key: "basic", Name: "Basic Salary",
			CalcType: comp.CalcPercentOfCTC, DefaultValue: decimal.NewFromInt(40),
			Classification: comp.ClassEarning,
			IsBasic:        true, IsMandatory: true, Order: 1,
		},
		{
			Key: "hra", Name: "House Rent Allowance",
			CalcType: comp.CalcPercentOfBasic, DefaultValue: decimal.NewFromInt(50),
			Classification: comp.ClassEarning, Order: 2,
		},
		{
			Key: "special_allowance", Name: "Special Allowance",
			CalcType:       comp.CalcBalance,
			Classification: comp.ClassEarning, IsMandatory: true, Order: 3,
		},
	}}
}

func money(v int64) comp.Money { return comp.NewMoneyFromInt(v) }

func componentByKey(t *testing.T, r *comp.ResolvedStructure, key comp.ComponentKey) comp.ResolvedComponent {
	t.Helper()
	for _, c := range r.Components {
		if c.Key == key {
			return c
		}
	}
	t.Fatalf("component %q not in output", key)
	return comp.ResolvedComponent{}
}

func assertAnnual(t *testing.T, r *comp.ResolvedStructure, key comp.ComponentKey, want int64) {
	t.Helper()
	got := componentByKey(t, r, key)
	assert.True(t, got.Annual.Equal(money(want)),
		"component %q: want annual %d, got %s", key, want, got.Annual)
}

// =============================================================================
// BASIC RESOLUTION
// =============================================================================

func TestResolve_StandardStructure(t *testing.T) {
	// GIVEN: 12,00,000 annual CTC, basic 40% of CTC, HRA 50% of basic
	// WHEN: Resolving
	// THEN: basic=4,80,000  hra=2,40,000  special=4,80,000  gross=1,00,000/mo

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	assertAnnual(t, result, "basic", 480_000)
	assertAnnual(t, result, "hra", 240_000)
	assertAnnual(t, result, "special_allowance", 480_000)

	assert.True(t, result.Summary.GrossMonthly.Equal(money(100_000)),
		"gross monthly: want 100000, got %s", result.Summary.GrossMonthly)
	assert.True(t, result.Summary.AnnualCTC.Equal(money(1_200_000)))
}

func TestResolve_Deterministic(t *testing.T) {
	// Same input resolved twice must produce identical output: the preview
	// an approver sees is exactly what submission froze.
	in := comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: comp.MustParseMoney("1357913.57"),
	}

	first, err := comp.Resolve(in)
	require.NoError(t, err)
	second, err := comp.Resolve(in)
	require.NoError(t, err)

	require.Equal(t, len(first.Components), len(second.Components))
	for i := range first.Components {
		assert.True(t, first.Components[i].Annual.Equal(second.Components[i].Annual))
		assert.True(t, first.Components[i].Monthly.Equal(second.Components[i].Monthly))
	}
	assert.True(t, first.Summary.GrossMonthly.Equal(second.Summary.GrossMonthly))
}

func TestResolve_FixedComponents(t *testing.T) {
	// fixed_monthly annualizes by *12; fixed_annual is taken as-is.
	catalog := testCatalog()
	catalog.Components = append(catalog.Components,
		comp.ComponentDefinition{
			Key: "conveyance", Name: "Conveyance Allowance",
			CalcType: comp.CalcFixedMonthly, DefaultValue: decimal.NewFromInt(1600),
			Classification: comp.ClassEarning, Order: 4,
		},
		comp.ComponentDefinition{
			Key: "lta", Name: "Leave Travel Allowance",
			CalcType: comp.CalcFixedAnnual, DefaultValue: decimal.NewFromInt(24_000),
			Classification: comp.ClassEarning, Order: 5,
		},
	)

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   catalog,
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	assertAnnual(t, result, "conveyance", 19_200)
	assertAnnual(t, result, "lta", 24_000)
	// The balance shrinks by exactly what the fixed components took.
	assertAnnual(t, result, "special_allowance", 480_000-19_200-24_000)
}

func TestResolve_PercentOfGross_ExcludesBalance(t *testing.T) {
	// GIVEN: A 3.25% of-gross deduction
	// WHEN: Resolving 12,00,000 CTC
	// THEN: The base is basic+hra (7,20,000), not the post-balance gross -
	//       otherwise gross would depend on a value computed after it.

	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "esic", Name: "ESIC",
		CalcType: comp.CalcPercentOfGross, DefaultValue: decimal.NewFromInt(10),
		Classification: comp.ClassDeduction, Order: 6,
	})

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   catalog,
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	assertAnnual(t, result, "esic", 72_000)
	// Deductions never reduce the CTC allocation.
	assertAnnual(t, result, "special_allowance", 480_000)
}

// =============================================================================
// RETENTION BONUS
// =============================================================================

func TestResolve_RetentionBonus_ReducesBalance(t *testing.T) {
	// GIVEN: 12,00,000 CTC with a 1,20,000 retention bonus
	// WHEN: Resolving
	// THEN: Balance absorbs the bonus (3,60,000 instead of 4,80,000) and
	//       monthly gross drops to 90,000; the bonus itself pays nothing monthly.
	//       90,000 follows from the reconciliation identity: earnings are
	//       4,80,000 + 2,40,000 + 3,60,000 = 10,80,000 annually, and
	//       10,80,000 + 1,20,000 deferred == CTC.

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:                testCatalog(),
		AnnualCTC:              money(1_200_000),
		RetentionBonus:         money(120_000),
		RetentionVestingMonths: 12,
	})
	require.NoError(t, err)

	assertAnnual(t, result, "special_allowance", 360_000)
	assert.True(t, result.Summary.GrossMonthly.Equal(money(90_000)),
		"gross monthly: want 90000, got %s", result.Summary.GrossMonthly)

	bonus := componentByKey(t, result, comp.RetentionBonusKey)
	assert.Equal(t, comp.ClassDeferred, bonus.Classification)
	assert.True(t, bonus.Annual.Equal(money(120_000)))
	assert.True(t, bonus.Monthly.IsZero(), "retention bonus must not appear in monthly pay")
	assert.Equal(t, 12, result.RetentionVestingMonths)
}

func TestResolve_RetentionBonus_Negative_Rejected(t *testing.T) {
	_, err := comp.Resolve(comp.ResolveInput{
		Catalog:        testCatalog(),
		AnnualCTC:      money(1_200_000),
		RetentionBonus: money(-1),
	})
	assert.ErrorIs(t, err, comp.ErrValidation)
}

// =============================================================================
// CTC RECONCILIATION FAILURES
// =============================================================================

func TestResolve_OverAllocation_ReturnsShortfall(t *testing.T) {
	// GIVEN: HRA overridden to 200% of basic (9,60,000 on 12,00,000 CTC)
	// WHEN: Resolving
	// THEN: basic+hra = 14,40,000 > CTC; shortfall reported, never clamped

	hra := decimal.NewFromInt(200)
	_, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "hra", Enabled: true, Value: &hra},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, comp.ErrCTCInsufficient)

	var insufficient *comp.CTCInsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Shortfall.Equal(money(240_000)),
		"shortfall: want 240000, got %s", insufficient.Shortfall)
	assert.True(t, insufficient.Allocated.Equal(money(1_440_000)))
}

func TestResolve_NonPositiveCTC_Rejected(t *testing.T) {
	for _, ctc := range []comp.Money{money(0), money(-500_000)} {
		_, err := comp.Resolve(comp.ResolveInput{
			Catalog:   testCatalog(),
			AnnualCTC: ctc,
		})
		assert.ErrorIs(t, err, comp.ErrValidation, "ctc=%s", ctc)
	}
}

// =============================================================================
// OVERRIDES
// =============================================================================

func TestResolve_DisabledComponent_ZeroButPresent(t *testing.T) {
	// Disabled components stay in the output at zero so the caller can
	// still render the full catalog; the balance absorbs their share.
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "hra", Enabled: false},
		},
	})
	require.NoError(t, err)

	hra := componentByKey(t, result, "hra")
	assert.False(t, hra.Enabled)
	assert.True(t, hra.Annual.IsZero())
	assert.True(t, hra.Monthly.IsZero())

	assertAnnual(t, result, "special_allowance", 720_000)
}

func TestResolve_MandatoryComponent_CannotBeDisabled(t *testing.T) {
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "basic", Enabled: false},
		},
	})
	require.NoError(t, err)

	basic := componentByKey(t, result, "basic")
	assert.True(t, basic.Enabled, "mandatory component must stay enabled")
	assert.True(t, basic.Annual.Equal(money(480_000)))
}

func TestResolve_ValueOverride_ReplacesDefault(t *testing.T) {
	// Basic bumped from 40% to 50% of CTC for this submission only.
	basicPct := decimal.NewFromInt(50)
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "basic", Enabled: true, Value: &basicPct},
		},
	})
	require.NoError(t, err)

	assertAnnual(t, result, "basic", 600_000)
	assertAnnual(t, result, "hra", 300_000)
	assertAnnual(t, result, "special_allowance", 300_000)
}

func TestResolve_UnknownOverrideKey_Ignored(t *testing.T) {
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "no_such_component", Enabled: false},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Components, 3)
}

// =============================================================================
// BASIC ANCHOR RESOLUTION
// =============================================================================

func TestResolve_AmbiguousBasic_TwoCandidates(t *testing.T) {
	// GIVEN: No explicit anchor and two independently resolvable earnings
	// WHEN: A percentage_of_basic component needs an anchor
	// THEN: Resolution refuses to guess

	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "base_a", Name: "Base A", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(30), Classification: comp.ClassEarning, Order: 1},
		{Key: "base_b", Name: "Base B", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(30), Classification: comp.ClassEarning, Order: 2},
		{Key: "hra", Name: "HRA", CalcType: comp.CalcPercentOfBasic,
			DefaultValue: decimal.NewFromInt(50), Classification: comp.ClassEarning, Order: 3},
		{Key: "rest", Name: "Rest", CalcType: comp.CalcBalance,
			Classification: comp.ClassEarning, Order: 4},
	}}

	_, err := comp.Resolve(comp.ResolveInput{Catalog: catalog, AnnualCTC: money(1_200_000)})
	assert.ErrorIs(t, err, comp.ErrAmbiguousBasic)
}

func TestResolve_SingleCandidate_NoExplicitAnchor(t *testing.T) {
	// With exactly one resolvable earning, the anchor is unambiguous even
	// without an IsBasic marker.
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "base", Name: "Base", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(40), Classification: comp.ClassEarning, Order: 1},
		{Key: "hra", Name: "HRA", CalcType: comp.CalcPercentOfBasic,
			DefaultValue: decimal.NewFromInt(50), Classification: comp.ClassEarning, Order: 2},
		{Key: "rest", Name: "Rest", CalcType: comp.CalcBalance,
			Classification: comp.ClassEarning, Order: 3},
	}}

	result, err := comp.Resolve(comp.ResolveInput{Catalog: catalog, AnnualCTC: money(1_200_000)})
	require.NoError(t, err)
	assertAnnual(t, result, "hra", 240_000)
}

func TestResolve_DisabledAnchor_NotDependedOn(t *testing.T) {
	// Disabling both the anchor and everything that depends on it is fine:
	// the anchor is only established when something needs it.
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "base", Name: "Base", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(40), Classification: comp.ClassEarning,
			IsBasic: true, Order: 1},
		{Key: "hra", Name: "HRA", CalcType: comp.CalcPercentOfBasic,
			DefaultValue: decimal.NewFromInt(50), Classification: comp.ClassEarning, Order: 2},
		{Key: "rest", Name: "Rest", CalcType: comp.CalcBalance,
			Classification: comp.ClassEarning, Order: 3},
	}}

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   catalog,
		AnnualCTC: money(1_200_000),
		Overrides: []comp.ComponentOverride{
			{Key: "base", Enabled: false},
			{Key: "hra", Enabled: false},
		},
	})
	require.NoError(t, err)
	assertAnnual(t, result, "rest", 1_200_000)
}

// =============================================================================
// CATALOG INVARIANTS
// =============================================================================

func TestResolve_MultipleBalanceComponents_Rejected(t *testing.T) {
	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "second_balance", Name: "Second Balance",
		CalcType: comp.CalcBalance, Classification: comp.ClassEarning, Order: 9,
	})

	_, err := comp.Resolve(comp.ResolveInput{Catalog: catalog, AnnualCTC: money(1_200_000)})
	assert.ErrorIs(t, err, comp.ErrMultipleBalanceComponents)
}

func TestResolve_UnknownCalcType_NamesComponent(t *testing.T) {
	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "mystery", Name: "Mystery",
		CalcType: "percentage_of_moon", Classification: comp.ClassEarning, Order: 9,
	})

	_, err := comp.Resolve(comp.ResolveInput{Catalog: catalog, AnnualCTC: money(1_200_000)})
	require.Error(t, err)

	var unknown *comp.UnknownCalcTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, comp.ComponentKey("mystery"), unknown.Key)
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestResolve_Rounding_CleanDivision_NoDrift(t *testing.T) {
	// 12,00,000 CTC: every annual value divides evenly by 12, so the
	// self-check sees zero drift.
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	assert.True(t, result.Rounding.CumulativeDrift.IsZero())
	assert.False(t, result.Rounding.Exceeded)
}

func TestResolve_Rounding_RetentionBonusIsNotDrift(t *testing.T) {
	// 12,00,000 CTC + 1,20,000 retention bonus: every recurring annual
	// value still divides evenly by 12. The bonus pays zero monthly by
	// contract, so it must not count as drift.
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:                testCatalog(),
		AnnualCTC:              money(1_200_000),
		RetentionBonus:         money(120_000),
		RetentionVestingMonths: 12,
	})
	require.NoError(t, err)

	assert.True(t, result.Rounding.CumulativeDrift.IsZero(),
		"retention bonus counted as drift: %s", result.Rounding.CumulativeDrift)
	assert.False(t, result.Rounding.Exceeded)
}

func TestResolve_Rounding_ReportsDriftWithoutFailing(t *testing.T) {
	// 1,00,000 CTC: basic = 40,000/yr = 3,333.33/mo after banker's
	// rounding, so monthly*12 under-counts by 0.04 per recurring
	// component. The self-check reports the drift; resolution succeeds.
	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   testCatalog(),
		AnnualCTC: money(100_000),
	})
	require.NoError(t, err)

	basic := componentByKey(t, result, "basic")
	assert.Equal(t, "3333.33", basic.Monthly.String())

	// 0.04 drift on each of basic/hra/special.
	assert.Equal(t, "0.12", result.Rounding.CumulativeDrift.String())
	assert.True(t, result.Rounding.Exceeded,
		"0.12 is past the one-sub-unit-per-component tolerance")
	assert.Equal(t, 3, result.Rounding.ComponentCount)
}

func TestResolve_Summary_InHandIsGrossMinusDeductions(t *testing.T) {
	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "professional_tax", Name: "Professional Tax",
		CalcType: comp.CalcFixedMonthly, DefaultValue: decimal.NewFromInt(200),
		Classification: comp.ClassDeduction, Order: 6,
	})

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   catalog,
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	assert.True(t, result.Summary.TotalDeductionsMonthly.Equal(money(200)))
	want := result.Summary.GrossMonthly.Sub(money(200))
	assert.True(t, result.Summary.InHandApproxMonthly.Equal(want))
}

func TestResolve_DeferredComponents_InCTCButNotGross(t *testing.T) {
	// Employer PF consumes CTC headroom without ever appearing in gross.
	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "employer_pf", Name: "Employer PF",
		CalcType: comp.CalcPercentOfBasic, DefaultValue: decimal.NewFromInt(12),
		Classification: comp.ClassDeferred, IsMandatory: true, Order: 6,
	})

	result, err := comp.Resolve(comp.ResolveInput{
		Catalog:   catalog,
		AnnualCTC: money(1_200_000),
	})
	require.NoError(t, err)

	// employer_pf = 12% of 4,80,000 = 57,600; balance shrinks accordingly.
	assertAnnual(t, result, "employer_pf", 57_600)
	assertAnnual(t, result, "special_allowance", 480_000-57_600)

	// Gross = basic + hra + balance, monthly.
	want := money(480_000 + 240_000 + 422_400).PerMonth()
	assert.True(t, result.Summary.GrossMonthly.Equal(want),
		"gross monthly: want %s, got %s", want, result.Summary.GrossMonthly)
}
