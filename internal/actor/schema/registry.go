// Package schema is the per-actor-type validation schema registry. For a
// resolved variant it produces either a single-tab schema (loose, used on
// incremental saves) or the strict completion schema (used at submission).
package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/tabs"
)

// ErrUnknownTab marks a tab name the registry does not know for the
// variant's actor type and company mode. Callers must reject the request
// before touching storage: it means client and server registries drifted.
var ErrUnknownTab = errors.New("unknown tab for actor type")

func always(Variant) bool   { return true }
func optional(Variant) bool { return false }

func mexican(v Variant) bool { return v.Nationality == entity.NationalityMexican }
func foreign(v Variant) bool { return v.Nationality == entity.NationalityForeign }

func incomeMethod(v Variant) bool   { return v.Guarantee == entity.GuaranteeIncome }
func propertyMethod(v Variant) bool { return v.Guarantee == entity.GuaranteeProperty }

// personalFields are the individual-identity fields shared by every actor
// type on the personal tab. CURP and RFC apply to Mexican nationals only;
// foreigners identify with a passport number instead.
func personalFields() []Field {
	return []Field{
		{Name: "firstName", Tab: tabs.TabPersonal, Kind: KindString},
		{Name: "middleName", Tab: tabs.TabPersonal, Kind: KindString, requiredWhen: optional},
		{Name: "lastNamePaternal", Tab: tabs.TabPersonal, Kind: KindString},
		{Name: "lastNameMaternal", Tab: tabs.TabPersonal, Kind: KindString, requiredWhen: optional},
		{Name: "email", Tab: tabs.TabPersonal, Kind: KindEmail},
		{Name: "phone", Tab: tabs.TabPersonal, Kind: KindPhone},
		{Name: "birthDate", Tab: tabs.TabPersonal, Kind: KindDate, requiredWhen: optional},
		{Name: "maritalStatus", Tab: tabs.TabPersonal, Kind: KindString, requiredWhen: optional},
		{Name: "curp", Tab: tabs.TabPersonal, Kind: KindCURP, requiredWhen: mexican, appliesWhen: mexican},
		{Name: "rfc", Tab: tabs.TabPersonal, Kind: KindRFC, requiredWhen: mexican, appliesWhen: mexican},
		{Name: "passportNumber", Tab: tabs.TabPersonal, Kind: KindString, requiredWhen: foreign, appliesWhen: foreign},
		{Name: "address", Tab: tabs.TabPersonal, Kind: KindString},
	}
}

// companyFields are the company-identity fields on the company tab.
func companyFields() []Field {
	return []Field{
		{Name: "companyName", Tab: tabs.TabCompany, Kind: KindString},
		{Name: "rfc", Tab: tabs.TabCompany, Kind: KindRFC},
		{Name: "incorporationDate", Tab: tabs.TabCompany, Kind: KindDate, requiredWhen: optional},
		{Name: "legalRepName", Tab: tabs.TabCompany, Kind: KindString},
		{Name: "legalRepEmail", Tab: tabs.TabCompany, Kind: KindEmail},
		{Name: "legalRepPhone", Tab: tabs.TabCompany, Kind: KindPhone},
		{Name: "address", Tab: tabs.TabCompany, Kind: KindString},
	}
}

func tenantFields() []Field {
	fs := append(personalFields(), companyFields()...)
	fs = append(fs,
		Field{Name: "employmentStatus", Tab: tabs.TabEmployment, Kind: KindString},
		Field{Name: "employerName", Tab: tabs.TabEmployment, Kind: KindString, requiredWhen: optional},
		Field{Name: "position", Tab: tabs.TabEmployment, Kind: KindString, requiredWhen: optional},
		Field{Name: "monthlyIncome", Tab: tabs.TabEmployment, Kind: KindNumber},
		Field{Name: "workAddress", Tab: tabs.TabEmployment, Kind: KindString, requiredWhen: optional},
		Field{Name: "yearsEmployed", Tab: tabs.TabEmployment, Kind: KindNumber, requiredWhen: optional},
	)
	return fs
}

func landlordFields() []Field {
	fs := append(personalFields(), companyFields()...)
	fs = append(fs,
		Field{Name: "propertyAddress", Tab: tabs.TabProperty, Kind: KindString},
		Field{Name: "propertyType", Tab: tabs.TabProperty, Kind: KindString, requiredWhen: optional},
		Field{Name: "predialNumber", Tab: tabs.TabProperty, Kind: KindString, requiredWhen: optional},
		Field{Name: "ownershipPercentage", Tab: tabs.TabProperty, Kind: KindPercent, requiredWhen: optional},
		Field{Name: "bankName", Tab: tabs.TabBank, Kind: KindString},
		Field{Name: "clabe", Tab: tabs.TabBank, Kind: KindCLABE},
		Field{Name: "accountHolder", Tab: tabs.TabBank, Kind: KindString},
	)
	return fs
}

// guarantorFields serve both aval and joint obligor. The guarantee tab
// splits on the method: the income branch and the property branch are
// mutually exclusive, the unchosen branch is never required.
func guarantorFields() []Field {
	fs := append(personalFields(), companyFields()...)
	fs = append(fs,
		Field{Name: "bankName", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: incomeMethod, appliesWhen: incomeMethod},
		Field{Name: "accountHolder", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: incomeMethod, appliesWhen: incomeMethod},
		Field{Name: "monthlyIncome", Tab: tabs.TabGuarantee, Kind: KindNumber, requiredWhen: incomeMethod, appliesWhen: incomeMethod},
		Field{Name: "incomeSource", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: optional, appliesWhen: incomeMethod},
		Field{Name: "propertyAddress", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: propertyMethod, appliesWhen: propertyMethod},
		Field{Name: "propertyDeedNumber", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: propertyMethod, appliesWhen: propertyMethod},
		Field{Name: "propertyRegistry", Tab: tabs.TabGuarantee, Kind: KindString, requiredWhen: propertyMethod, appliesWhen: propertyMethod},
		Field{Name: "propertyValue", Tab: tabs.TabGuarantee, Kind: KindNumber, requiredWhen: optional, appliesWhen: propertyMethod},
	)
	return fs
}

var (
	matrixOnce sync.Once
	matrix     map[entity.ActorType][]Field
)

func fieldsFor(t entity.ActorType) []Field {
	matrixOnce.Do(func() {
		matrix = map[entity.ActorType][]Field{
			entity.ActorTenant:       tenantFields(),
			entity.ActorLandlord:     landlordFields(),
			entity.ActorAval:         guarantorFields(),
			entity.ActorJointObligor: guarantorFields(),
		}
	})
	return matrix[t]
}

// applies filters a field down to the variant's company mode first (the
// tab registry decides which identity tab exists), then the field's own
// predicate.
func applies(f Field, v Variant) bool {
	if d, ok := tabs.Find(v.Actor, v.Company, f.Tab); !ok || !d.Applicable(v.Company) {
		return false
	}
	return f.Applies(v)
}

// TabFields returns the whitelisted field names for one tab of a variant.
// ErrUnknownTab when the tab does not exist for this actor type and
// company mode (e.g. employment requested for a company tenant).
func TabFields(v Variant, tab string) (map[string]Field, error) {
	if _, ok := tabs.Find(v.Actor, v.Company, tab); !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownTab, v.Actor, tab)
	}
	out := map[string]Field{}
	for _, f := range fieldsFor(v.Actor) {
		if f.Tab == tab && applies(f, v) {
			out[f.Name] = f
		}
	}
	return out, nil
}

// ValidateTab runs the loose single-tab schema: required fields of that
// tab must be present, present values must match their format, unknown
// keys are rejected. Optional fields may be absent or blank.
func ValidateTab(v Variant, tab string, data map[string]any) (*Result, error) {
	fields, err := TabFields(v, tab)
	if err != nil {
		return nil, err
	}
	res := &Result{OK: true}
	for name := range data {
		if _, ok := fields[name]; !ok {
			res.add(name, "field does not belong to tab "+tab)
		}
	}
	for name, f := range fields {
		val, ok := data[name]
		if !ok || !Present(val) {
			if f.Required(v) {
				res.add(name, "required")
			}
			continue
		}
		if msg := f.CheckFormat(val); msg != "" {
			res.add(name, msg)
		}
	}
	return res, nil
}

// Record is the full accumulated state of one actor fed to the strict
// schema: form fields plus the reference and document facts the field
// map cannot see.
type Record struct {
	Fields               map[string]any
	PersonalReferences   int
	CommercialReferences int
	DocumentCategories   []string
}

// ValidateStrict runs the full completion schema for a variant: every
// applicable required field present and well-formed, reference cardinality
// satisfied, every required document category confirmed. Guarantors must
// have chosen a guarantee method before the strict schema can pass.
func ValidateStrict(v Variant, rec Record) *Result {
	res := &Result{OK: true}

	if v.Actor.IsGuarantor() && v.Guarantee == "" {
		res.add("guaranteeMethod", "required")
	}

	for _, f := range fieldsFor(v.Actor) {
		if !applies(f, v) {
			continue
		}
		val, ok := rec.Fields[f.Name]
		if !ok || !Present(val) {
			if f.Required(v) {
				res.add(f.Name, "required")
			}
			continue
		}
		if msg := f.CheckFormat(val); msg != "" {
			res.add(f.Name, msg)
		}
	}

	if kind, min, max := ReferenceRule(v); max > 0 {
		n := rec.PersonalReferences
		path := "personalReferences"
		if kind == entity.ReferenceCommercial {
			n = rec.CommercialReferences
			path = "commercialReferences"
		}
		if n < min || n > max {
			if min == max {
				res.add(path, fmt.Sprintf("exactly %d references required, have %d", min, n))
			} else {
				res.add(path, fmt.Sprintf("between %d and %d references required, have %d", min, max, n))
			}
		}
	}

	have := map[string]bool{}
	for _, c := range rec.DocumentCategories {
		have[c] = true
	}
	for _, c := range RequiredDocuments(v) {
		if !have[c] {
			res.add("documents."+c, "required document missing")
		}
	}
	return res
}

// ApplicableFields returns every field applicable to a variant keyed by
// name, across all tabs. Used for free-form staff edits that bypass the
// tab structure.
func ApplicableFields(v Variant) map[string]Field {
	out := map[string]Field{}
	for _, f := range fieldsFor(v.Actor) {
		if applies(f, v) {
			out[f.Name] = f
		}
	}
	return out
}

// ReferenceRule returns the reference kind and cardinality bounds for a
// variant. max == 0 means the variant carries no references.
func ReferenceRule(v Variant) (kind entity.ReferenceKind, min, max int) {
	switch v.Actor {
	case entity.ActorTenant:
		if v.Company {
			return entity.ReferenceCommercial, 1, 5
		}
		return entity.ReferencePersonal, 1, 5
	case entity.ActorAval, entity.ActorJointObligor:
		return entity.ReferencePersonal, 3, 3
	}
	return "", 0, 0
}

// Document category identifiers. One identifier per upload slot; the
// required set per variant comes from RequiredDocuments.
const (
	DocIdentification  = "identification"
	DocProofOfAddress  = "proofOfAddress"
	DocConstitutiveAct = "constitutiveAct"
	DocLegalRepID      = "legalRepId"
	DocIncomeProof     = "incomeProof"
	DocPropertyDeed    = "propertyDeed"
	DocTaxStatement    = "taxStatement"
)

// RequiredDocuments returns the document categories a variant must have
// confirmed before submission. Exactly one of the guarantee document sets
// (income proof, or deed plus tax statement) applies once the method is
// chosen; the unchosen set never appears.
func RequiredDocuments(v Variant) []string {
	var out []string
	if v.Company {
		out = append(out, DocConstitutiveAct, DocLegalRepID)
	} else {
		out = append(out, DocIdentification, DocProofOfAddress)
	}
	switch v.Actor {
	case entity.ActorTenant:
		if !v.Company {
			out = append(out, DocIncomeProof)
		}
	case entity.ActorLandlord:
		out = append(out, DocPropertyDeed)
	case entity.ActorAval, entity.ActorJointObligor:
		switch v.Guarantee {
		case entity.GuaranteeIncome:
			out = append(out, DocIncomeProof)
		case entity.GuaranteeProperty:
			out = append(out, DocPropertyDeed, DocTaxStatement)
		}
	}
	return out
}
