/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts JSON component-catalog definitions into comp.Catalog values.
  This keeps the catalog as configuration: HR admins adjust component
  percentages and defaults without code changes, and the config is
  storable in the database (see comp.CatalogStore).

JSON SCHEMA:
  {
    "components": [
      {
        "key": "basic",
        "name": "Basic Salary",
        "calc_type": "percentage_of_ctc",
        "value": 40,
        "classification": "earning",
        "is_basic": true,
        "is_mandatory": true,
        "order": 1
      },
      ...
    ]
  }

DEFAULT CATALOG:
  DefaultCatalog() ships a complete India-style CTC catalog (basic, HRA,
  conveyance, medical, employer/employee PF, gratuity, professional tax,
  ESIC, special-allowance balance) so the engine works with zero config.

REPLACEMENT SAFETY:
  Admin-supplied replacement catalogs are checked against the deployment's
  mandatory component keys: silently dropping a mandatory component is a
  configuration bug (comp.ErrMissingMandatoryComponent), fatal rather than
  recoverable.

SEE ALSO:
  - comp/catalog.go: Catalog type and invariants
  - api/handlers.go: The admin catalog replacement endpoint
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/comp"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a component catalog.
type CatalogJSON struct {
	Components []ComponentJSON `json:"components"`
}

// ComponentJSON is the JSON representation of one component definition.
type ComponentJSON struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	CalcType       string  `json:"calc_type"`
	Value          float64 `json:"value"`
	Classification string  `json:"classification,omitempty"`
	IsBasic        bool    `json:"is_basic,omitempty"`
	IsMandatory    bool    `json:"is_mandatory,omitempty"`
	Order          int     `json:"order,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseCatalog converts a JSON catalog definition into a validated
// comp.Catalog. Defaults: classification "earning", order = position in
// the list when omitted.
func ParseCatalog(configJSON string) (comp.Catalog, error) {
	var cfg CatalogJSON
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return comp.Catalog{}, fmt.Errorf("invalid catalog JSON: %w", err)
	}
	return FromJSON(cfg)
}

// FromJSON converts an already-decoded CatalogJSON into a validated
// comp.Catalog.
func FromJSON(cfg CatalogJSON) (comp.Catalog, error) {
	if len(cfg.Components) == 0 {
		return comp.Catalog{}, fmt.Errorf("%w: no components", comp.ErrCatalogInvalid)
	}

	catalog := comp.Catalog{Components: make([]comp.ComponentDefinition, 0, len(cfg.Components))}
	for i, c := range cfg.Components {
		classification := comp.Classification(c.Classification)
		if c.Classification == "" {
			classification = comp.ClassEarning
		}
		order := c.Order
		if order == 0 {
			order = i + 1
		}
		catalog.Components = append(catalog.Components, comp.ComponentDefinition{
			Key:            comp.ComponentKey(c.Key),
			Name:           c.Name,
			CalcType:       comp.CalcType(c.CalcType),
			DefaultValue:   decimal.NewFromFloat(c.Value),
			Classification: classification,
			IsBasic:        c.IsBasic,
			IsMandatory:    c.IsMandatory,
			Order:          order,
		})
	}

	if err := catalog.Validate(); err != nil {
		return comp.Catalog{}, err
	}
	return catalog, nil
}

// ParseReplacementCatalog parses an admin-supplied catalog and
// additionally verifies that every mandatory component of the default
// catalog is still present.
func ParseReplacementCatalog(configJSON string) (comp.Catalog, error) {
	catalog, err := ParseCatalog(configJSON)
	if err != nil {
		return comp.Catalog{}, err
	}
	if err := catalog.CheckMandatory(MandatoryKeys()); err != nil {
		return comp.Catalog{}, err
	}
	return catalog, nil
}

// MandatoryKeys returns the component keys the deployment treats as
// non-removable.
func MandatoryKeys() []comp.ComponentKey {
	var keys []comp.ComponentKey
	for _, def := range DefaultCatalog().Components {
		if def.IsMandatory {
			keys = append(keys, def.Key)
		}
	}
	return keys
}

// =============================================================================
// DEFAULT CATALOG - India-style CTC structure
// =============================================================================

// DefaultCatalog returns the built-in catalog. Percentages follow common
// Indian CTC conventions: basic at 40% of CTC, HRA at 50% of basic,
// statutory PF at 12% of basic on both sides, gratuity accrual at 4.81%
// of basic, ESIC at 3.25% of gross, and the special allowance absorbing
// whatever remains of the target CTC.
func DefaultCatalog() comp.Catalog {
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
			Key: "conveyance", Name: "Conveyance Allowance",
			CalcType: comp.CalcFixedMonthly, DefaultValue: decimal.NewFromInt(1600),
			Classification: comp.ClassEarning, Order: 3,
		},
		{
			Key: "medical", Name: "Medical Allowance",
			CalcType: comp.CalcFixedMonthly, DefaultValue: decimal.NewFromInt(1250),
			Classification: comp.ClassEarning, Order: 4,
		},
		{
			Key: "special_allowance", Name: "Special Allowance",
			CalcType:       comp.CalcBalance,
			Classification: comp.ClassEarning, IsMandatory: true, Order: 5,
		},
		{
			Key: "employer_pf", Name: "Employer Provident Fund",
			CalcType: comp.CalcPercentOfBasic, DefaultValue: decimal.NewFromInt(12),
			Classification: comp.ClassDeferred, IsMandatory: true, Order: 6,
		},
		{
			Key: "gratuity", Name: "Gratuity Accrual",
			CalcType: comp.CalcPercentOfBasic, DefaultValue: decimal.NewFromFloat(4.81),
			Classification: comp.ClassDeferred, Order: 7,
		},
		{
			Key: "employee_pf", Name: "Employee Provident Fund",
			CalcType: comp.CalcPercentOfBasic, DefaultValue: decimal.NewFromInt(12),
			Classification: comp.ClassDeduction, IsMandatory: true, Order: 8,
		},
		{
			Key: "professional_tax", Name: "Professional Tax",
			CalcType: comp.CalcFixedMonthly, DefaultValue: decimal.NewFromInt(200),
			Classification: comp.ClassDeduction, Order: 9,
		},
		{
			Key: "esic", Name: "ESIC (Employer Contribution)",
			CalcType: comp.CalcPercentOfGross, DefaultValue: decimal.NewFromFloat(3.25),
			Classification: comp.ClassDeduction, Order: 10,
		},
	}}
}

// ToJSON converts a catalog back to its JSON schema form (for the admin
// API and for persistence through comp.CatalogStore).
func ToJSON(catalog comp.Catalog) CatalogJSON {
	cfg := CatalogJSON{}
	for _, def := range catalog.Sorted() {
		value, _ := def.DefaultValue.Float64()
		cfg.Components = append(cfg.Components, ComponentJSON{
			Key:            string(def.Key),
			Name:           def.Name,
			CalcType:       string(def.CalcType),
			Value:          value,
			Classification: string(def.Classification),
			IsBasic:        def.IsBasic,
			IsMandatory:    def.IsMandatory,
			Order:          def.Order,
		})
	}
	return cfg
}

// DefaultCatalogJSON returns the default catalog in its storable JSON
// form, for seeding the CatalogStore.
func DefaultCatalogJSON() string {
	out, _ := json.MarshalIndent(ToJSON(DefaultCatalog()), "", "  ")
	return string(out)
}
