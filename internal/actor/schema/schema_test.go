package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/schema"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/tabs"
)

func TestEnumerateCoversEveryCombination(t *testing.T) {
	assert.Len(t, schema.Enumerate(entity.ActorTenant), 4)
	assert.Len(t, schema.Enumerate(entity.ActorLandlord), 4)
	assert.Len(t, schema.Enumerate(entity.ActorAval), 8)
	assert.Len(t, schema.Enumerate(entity.ActorJointObligor), 8)

	seen := map[string]bool{}
	for _, at := range entity.ActorTypes {
		for _, v := range schema.Enumerate(at) {
			key := v.Key()
			assert.False(t, seen[key], "duplicate variant key %s", key)
			seen[key] = true
		}
	}
}

func TestResolveVariantDefaultsNationality(t *testing.T) {
	a := &entity.Actor{Type: entity.ActorTenant}
	v := schema.ResolveVariant(a)
	assert.Equal(t, entity.NationalityMexican, v.Nationality)

	g := entity.GuaranteeProperty
	a = &entity.Actor{Type: entity.ActorAval, GuaranteeMethod: &g}
	v = schema.ResolveVariant(a)
	assert.Equal(t, entity.GuaranteeProperty, v.Guarantee)
}

func TestEveryVariantHasAtLeastOneRequiredField(t *testing.T) {
	for _, at := range entity.ActorTypes {
		for _, v := range schema.Enumerate(at) {
			fields := schema.ApplicableFields(v)
			require.NotEmpty(t, fields, "variant %s has no fields", v.Key())
			var required int
			for _, f := range fields {
				if f.Required(v) {
					required++
				}
			}
			assert.Positive(t, required, "variant %s has no required fields", v.Key())
		}
	}
}

func TestValidateTabPersonalMexican(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorTenant, Nationality: entity.NationalityMexican}
	data := map[string]any{
		"firstName":        "Maria",
		"lastNamePaternal": "Lopez",
		"email":            "maria@example.com",
		"phone":            "+525512345678",
		"curp":             "LOPM800101MDFXXX08",
		"rfc":              "LOPM800101AB1",
		"address":          "Av. Reforma 1, CDMX",
	}
	res, err := schema.ValidateTab(v, tabs.TabPersonal, data)
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)

	delete(data, "curp")
	res, err = schema.ValidateTab(v, tabs.TabPersonal, data)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "curp", res.Errors[0].Path)
}

func TestValidateTabForeignerUsesPassport(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorTenant, Nationality: entity.NationalityForeign}
	data := map[string]any{
		"firstName":        "John",
		"lastNamePaternal": "Smith",
		"email":            "john@example.com",
		"phone":            "+14155550100",
		"passportNumber":   "A1234567",
		"address":          "Calle 2, CDMX",
	}
	res, err := schema.ValidateTab(v, tabs.TabPersonal, data)
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)

	// curp does not exist for foreigners, so sending one is rejected
	data["curp"] = "LOPM800101MDFXXX08"
	res, err = schema.ValidateTab(v, tabs.TabPersonal, data)
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestValidateTabUnknownTab(t *testing.T) {
	// employment belongs to individual tenants only
	v := schema.Variant{Actor: entity.ActorTenant, Company: true, Nationality: entity.NationalityMexican}
	_, err := schema.ValidateTab(v, tabs.TabEmployment, map[string]any{})
	assert.ErrorIs(t, err, schema.ErrUnknownTab)

	v = schema.Variant{Actor: entity.ActorLandlord, Nationality: entity.NationalityMexican}
	_, err = schema.ValidateTab(v, tabs.TabGuarantee, map[string]any{})
	assert.ErrorIs(t, err, schema.ErrUnknownTab)
}

func TestValidateTabRejectsFieldsFromOtherTabs(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorTenant, Nationality: entity.NationalityMexican}
	res, err := schema.ValidateTab(v, tabs.TabEmployment, map[string]any{
		"employmentStatus": "employed",
		"monthlyIncome":    35000,
		"clabe":            "002010077777777771",
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "clabe", res.Errors[0].Path)
}

func TestValidateTabBlankOptionalAccepted(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorTenant, Nationality: entity.NationalityMexican}
	res, err := schema.ValidateTab(v, tabs.TabEmployment, map[string]any{
		"employmentStatus": "self-employed",
		"monthlyIncome":    "42000.50",
		"employerName":     "",
	})
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)
}

func TestFieldFormats(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorLandlord, Nationality: entity.NationalityMexican}
	res, err := schema.ValidateTab(v, tabs.TabBank, map[string]any{
		"bankName":      "BBVA",
		"accountHolder": "Maria Lopez",
		"clabe":         "not-a-clabe",
	})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Errors[0].Message, "CLABE")

	res, err = schema.ValidateTab(v, tabs.TabBank, map[string]any{
		"bankName":      "BBVA",
		"accountHolder": "Maria Lopez",
		"clabe":         "002010077777777771",
	})
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)
}

func completeGuarantorRecord() map[string]any {
	return map[string]any{
		"firstName":        "Pedro",
		"lastNamePaternal": "Ramirez",
		"email":            "pedro@example.com",
		"phone":            "5512345678",
		"curp":             "RAMP750315HDFXXX09",
		"rfc":              "RAMP750315AB1",
		"address":          "Calle 5, CDMX",
		"bankName":         "Santander",
		"accountHolder":    "Pedro Ramirez",
		"monthlyIncome":    60000,
	}
}

func TestValidateStrictGuarantorNeedsMethod(t *testing.T) {
	v := schema.Variant{Actor: entity.ActorJointObligor, Nationality: entity.NationalityMexican}
	res := schema.ValidateStrict(v, schema.Record{Fields: completeGuarantorRecord()})
	require.False(t, res.OK)
	assert.Equal(t, "guaranteeMethod", res.Errors[0].Path)
}

func TestValidateStrictIncomeGuarantorPasses(t *testing.T) {
	v := schema.Variant{
		Actor:       entity.ActorJointObligor,
		Nationality: entity.NationalityMexican,
		Guarantee:   entity.GuaranteeIncome,
	}
	rec := schema.Record{
		Fields:             completeGuarantorRecord(),
		PersonalReferences: 3,
		DocumentCategories: []string{
			schema.DocIdentification, schema.DocProofOfAddress, schema.DocIncomeProof,
		},
	}
	res := schema.ValidateStrict(v, rec)
	assert.True(t, res.OK, "errors: %v", res.Errors)

	// the property branch must not leak into the income variant
	rec.Fields["propertyDeedNumber"] = ""
	res = schema.ValidateStrict(v, rec)
	assert.True(t, res.OK, "errors: %v", res.Errors)
}

func TestValidateStrictReferenceCardinality(t *testing.T) {
	v := schema.Variant{
		Actor:       entity.ActorJointObligor,
		Nationality: entity.NationalityMexican,
		Guarantee:   entity.GuaranteeIncome,
	}
	rec := schema.Record{
		Fields:             completeGuarantorRecord(),
		PersonalReferences: 2,
		DocumentCategories: []string{
			schema.DocIdentification, schema.DocProofOfAddress, schema.DocIncomeProof,
		},
	}
	res := schema.ValidateStrict(v, rec)
	require.False(t, res.OK)
	assert.Equal(t, "personalReferences", res.Errors[0].Path)

	rec.PersonalReferences = 4
	res = schema.ValidateStrict(v, rec)
	assert.False(t, res.OK)
}

func TestReferenceRule(t *testing.T) {
	kind, min, max := schema.ReferenceRule(schema.Variant{Actor: entity.ActorTenant})
	assert.Equal(t, entity.ReferencePersonal, kind)
	assert.Equal(t, 1, min)
	assert.Equal(t, 5, max)

	kind, min, max = schema.ReferenceRule(schema.Variant{Actor: entity.ActorTenant, Company: true})
	assert.Equal(t, entity.ReferenceCommercial, kind)
	assert.Equal(t, 1, min)
	assert.Equal(t, 5, max)

	_, min, max = schema.ReferenceRule(schema.Variant{Actor: entity.ActorAval})
	assert.Equal(t, 3, min)
	assert.Equal(t, 3, max)

	_, _, max = schema.ReferenceRule(schema.Variant{Actor: entity.ActorLandlord})
	assert.Zero(t, max)
}

func TestRequiredDocumentsExclusiveBranches(t *testing.T) {
	income := schema.RequiredDocuments(schema.Variant{
		Actor: entity.ActorAval, Nationality: entity.NationalityMexican, Guarantee: entity.GuaranteeIncome,
	})
	assert.Contains(t, income, schema.DocIncomeProof)
	assert.NotContains(t, income, schema.DocPropertyDeed)
	assert.NotContains(t, income, schema.DocTaxStatement)

	property := schema.RequiredDocuments(schema.Variant{
		Actor: entity.ActorAval, Nationality: entity.NationalityMexican, Guarantee: entity.GuaranteeProperty,
	})
	assert.Contains(t, property, schema.DocPropertyDeed)
	assert.Contains(t, property, schema.DocTaxStatement)
	assert.NotContains(t, property, schema.DocIncomeProof)

	company := schema.RequiredDocuments(schema.Variant{Actor: entity.ActorTenant, Company: true})
	assert.Contains(t, company, schema.DocConstitutiveAct)
	assert.Contains(t, company, schema.DocLegalRepID)
	assert.NotContains(t, company, schema.DocIdentification)
}
