/*
catalog.go - Component catalog and per-structure overrides

PURPOSE:
  The catalog is the master list of compensation component definitions:
  what rule each component follows (percentage of CTC, of basic, of gross,
  fixed, or the balancing remainder), whether it is an earning, a deduction
  or a deferred part of CTC, and whether HR may disable it per structure.

  The catalog is pure configuration - it computes nothing. The resolver
  (resolve.go) consumes a catalog snapshot plus per-structure overrides.

CATALOG INVARIANTS (enforced by Validate):
  - Component keys are unique
  - At most ONE component has CalcBalance
  - At most ONE component is marked as the basic anchor
  - Every calc type and classification is a known enum value

OVERRIDES:
  A ComponentOverride customizes one component for one submission:
  enable/disable (ignored for mandatory components) and a value that
  replaces the default. The balance component's value is never
  overridable - it is always computed as the reconciling remainder.

SEE ALSO:
  - resolve.go: Consumes Catalog + overrides
  - factory/catalog.go: JSON catalog configuration and the default catalog
*/
package comp

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALC TYPES - How a component's annual value is derived
// =============================================================================

type CalcType string

const (
	CalcPercentOfCTC   CalcType = "percentage_of_ctc"
	CalcPercentOfBasic CalcType = "percentage_of_basic"
	CalcPercentOfGross CalcType = "percentage_of_gross"
	CalcFixedMonthly   CalcType = "fixed_monthly"
	CalcFixedAnnual    CalcType = "fixed_annual"
	CalcBalance        CalcType = "balance"
)

func (c CalcType) Valid() bool {
	switch c {
	case CalcPercentOfCTC, CalcPercentOfBasic, CalcPercentOfGross,
		CalcFixedMonthly, CalcFixedAnnual, CalcBalance:
		return true
	}
	return false
}

// =============================================================================
// CLASSIFICATION - Where a component lands in the pay structure
// =============================================================================

type Classification string

const (
	// ClassEarning components make up monthly gross.
	ClassEarning Classification = "earning"

	// ClassDeduction components reduce monthly in-hand (employee PF,
	// professional tax, ESIC).
	ClassDeduction Classification = "deduction"

	// ClassDeferred components are part of CTC but not of monthly pay
	// (employer PF, gratuity accrual, retention bonus).
	ClassDeferred Classification = "deferred"
)

func (c Classification) Valid() bool {
	switch c {
	case ClassEarning, ClassDeduction, ClassDeferred:
		return true
	}
	return false
}

// =============================================================================
// COMPONENT DEFINITION
// =============================================================================

// ComponentDefinition is one named compensation rule in the catalog.
type ComponentDefinition struct {
	Key  ComponentKey `json:"key"`
	Name string       `json:"name"`

	CalcType CalcType `json:"calc_type"`

	// DefaultValue is a percentage for percentage_* calc types and a
	// currency amount for fixed_* types. Unused for balance.
	DefaultValue decimal.Decimal `json:"default_value"`

	Classification Classification `json:"classification"`

	// IsBasic marks the basic anchor: the earning component whose annual
	// value every percentage_of_basic component is computed from.
	IsBasic bool `json:"is_basic,omitempty"`

	// IsMandatory components cannot be disabled by an override.
	IsMandatory bool `json:"is_mandatory,omitempty"`

	// Order is display/output order only. Resolution order is the fixed
	// calc-type pipeline, never this.
	Order int `json:"order"`
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an ordered set of component definitions.
type Catalog struct {
	Components []ComponentDefinition `json:"components"`
}

// Validate checks the catalog invariants. Violations are configuration
// errors (deployment bugs), not submitter mistakes.
func (c Catalog) Validate() error {
	seen := make(map[ComponentKey]bool, len(c.Components))
	balances := 0
	anchors := 0

	for _, def := range c.Components {
		if def.Key == "" {
			return fmt.Errorf("%w: component with empty key", ErrCatalogInvalid)
		}
		if seen[def.Key] {
			return fmt.Errorf("%w: duplicate component key %q", ErrCatalogInvalid, def.Key)
		}
		seen[def.Key] = true

		if !def.CalcType.Valid() {
			return &UnknownCalcTypeError{Key: def.Key, CalcType: def.CalcType}
		}
		if !def.Classification.Valid() {
			return fmt.Errorf("%w: component %q has unknown classification %q",
				ErrCatalogInvalid, def.Key, def.Classification)
		}
		if def.CalcType == CalcBalance {
			balances++
		}
		if def.IsBasic {
			anchors++
		}
	}

	if balances > 1 {
		return fmt.Errorf("%w: found %d", ErrMultipleBalanceComponents, balances)
	}
	if anchors > 1 {
		return fmt.Errorf("%w: %d components marked as basic anchor", ErrAmbiguousBasic, anchors)
	}
	return nil
}

// Sorted returns the components in display order: Order ascending, ties
// broken by key. The receiver is not modified.
func (c Catalog) Sorted() []ComponentDefinition {
	out := make([]ComponentDefinition, len(c.Components))
	copy(out, c.Components)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Find returns the definition for key, or nil.
func (c Catalog) Find(key ComponentKey) *ComponentDefinition {
	for i := range c.Components {
		if c.Components[i].Key == key {
			return &c.Components[i]
		}
	}
	return nil
}

// CheckMandatory verifies that every key in required is still present.
// Used when an admin replaces the catalog: dropping a mandatory builtin
// component entirely is a fatal configuration bug, not a recoverable
// submission error.
func (c Catalog) CheckMandatory(required []ComponentKey) error {
	for _, key := range required {
		if c.Find(key) == nil {
			return fmt.Errorf("%w: %q", ErrMissingMandatoryComponent, key)
		}
	}
	return nil
}

// =============================================================================
// OVERRIDES - Per-structure instance data
// =============================================================================

// ComponentOverride customizes one catalog component for one submission.
type ComponentOverride struct {
	Key ComponentKey `json:"key"`

	// Enabled is forced true for mandatory components.
	Enabled bool `json:"enabled"`

	// Value replaces the definition's DefaultValue when non-nil.
	// Ignored for the balance component.
	Value *decimal.Decimal `json:"value,omitempty"`
}

// mergedComponent is a definition with its override applied.
type mergedComponent struct {
	def     ComponentDefinition
	enabled bool
	value   decimal.Decimal
}

// merge applies overrides to the catalog in display order. Overrides
// referencing unknown keys are ignored; mandatory components stay enabled
// regardless of what the override says.
func merge(catalog Catalog, overrides []ComponentOverride) []mergedComponent {
	byKey := make(map[ComponentKey]ComponentOverride, len(overrides))
	for _, ov := range overrides {
		byKey[ov.Key] = ov
	}

	defs := catalog.Sorted()
	out := make([]mergedComponent, 0, len(defs))
	for _, def := range defs {
		mc := mergedComponent{def: def, enabled: true, value: def.DefaultValue}
		if ov, ok := byKey[def.Key]; ok {
			if !def.IsMandatory {
				mc.enabled = ov.Enabled
			}
			if ov.Value != nil && def.CalcType != CalcBalance {
				mc.value = *ov.Value
			}
		}
		out = append(out, mc)
	}
	return out
}
