package comp_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/comp-engine/comp"
)

func TestCatalogValidate_DuplicateKey(t *testing.T) {
	catalog := testCatalog()
	catalog.Components = append(catalog.Components, comp.ComponentDefinition{
		Key: "basic", Name: "Basic Again",
		CalcType: comp.CalcFixedMonthly, Classification: comp.ClassEarning, Order: 9,
	})
	assert.ErrorIs(t, catalog.Validate(), comp.ErrCatalogInvalid)
}

func TestCatalogValidate_EmptyKey(t *testing.T) {
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "", Name: "Nameless", CalcType: comp.CalcFixedMonthly,
			Classification: comp.ClassEarning},
	}}
	assert.ErrorIs(t, catalog.Validate(), comp.ErrCatalogInvalid)
}

func TestCatalogValidate_TwoAnchors(t *testing.T) {
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "a", Name: "A", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(40), Classification: comp.ClassEarning,
			IsBasic: true, Order: 1},
		{Key: "b", Name: "B", CalcType: comp.CalcPercentOfCTC,
			DefaultValue: decimal.NewFromInt(20), Classification: comp.ClassEarning,
			IsBasic: true, Order: 2},
	}}
	assert.ErrorIs(t, catalog.Validate(), comp.ErrAmbiguousBasic)
}

func TestCatalogValidate_UnknownClassification(t *testing.T) {
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "x", Name: "X", CalcType: comp.CalcFixedMonthly,
			Classification: "windfall"},
	}}
	assert.ErrorIs(t, catalog.Validate(), comp.ErrCatalogInvalid)
}

func TestCatalogSorted_OrderThenKey(t *testing.T) {
	catalog := comp.Catalog{Components: []comp.ComponentDefinition{
		{Key: "zeta", Name: "Z", CalcType: comp.CalcFixedMonthly,
			Classification: comp.ClassEarning, Order: 2},
		{Key: "alpha", Name: "A", CalcType: comp.CalcFixedMonthly,
			Classification: comp.ClassEarning, Order: 2},
		{Key: "omega", Name: "O", CalcType: comp.CalcFixedMonthly,
			Classification: comp.ClassEarning, Order: 1},
	}}

	sorted := catalog.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, comp.ComponentKey("omega"), sorted[0].Key)
	assert.Equal(t, comp.ComponentKey("alpha"), sorted[1].Key)
	assert.Equal(t, comp.ComponentKey("zeta"), sorted[2].Key)

	// Receiver untouched.
	assert.Equal(t, comp.ComponentKey("zeta"), catalog.Components[0].Key)
}

func TestCatalogCheckMandatory_MissingKey(t *testing.T) {
	catalog := testCatalog()
	err := catalog.CheckMandatory([]comp.ComponentKey{"basic", "employee_pf"})
	assert.ErrorIs(t, err, comp.ErrMissingMandatoryComponent)

	assert.NoError(t, catalog.CheckMandatory([]comp.ComponentKey{"basic", "special_allowance"}))
}

func TestCatalogFind(t *testing.T) {
	catalog := testCatalog()
	require.NotNil(t, catalog.Find("hra"))
	assert.Nil(t, catalog.Find("bonus"))
}
