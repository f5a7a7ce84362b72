package schema

import (
	"fmt"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
)

// Variant is the resolved discriminant combination of one actor record.
// It is the tag that selects which branch of the field matrix applies.
type Variant struct {
	Actor       entity.ActorType
	Company     bool
	Nationality entity.Nationality
	Guarantee   entity.GuaranteeMethod // empty for non-guarantor types
}

// ResolveVariant derives the variant tag from an actor's discriminant
// columns. Nationality defaults to MEXICAN when unset so partially
// created records still resolve to a schema.
func ResolveVariant(a *entity.Actor) Variant {
	v := Variant{Actor: a.Type, Company: a.IsCompany, Nationality: a.Nationality}
	if v.Nationality == "" {
		v.Nationality = entity.NationalityMexican
	}
	if a.Type.IsGuarantor() && a.GuaranteeMethod != nil {
		v.Guarantee = *a.GuaranteeMethod
	}
	return v
}

// Key is a stable string form of the variant, used for lookup-table
// indexing and log fields.
func (v Variant) Key() string {
	mode := "individual"
	if v.Company {
		mode = "company"
	}
	if v.Actor.IsGuarantor() {
		g := string(v.Guarantee)
		if g == "" {
			g = "unset"
		}
		return fmt.Sprintf("%s/%s/%s/%s", v.Actor, mode, v.Nationality, g)
	}
	return fmt.Sprintf("%s/%s/%s", v.Actor, mode, v.Nationality)
}

// Enumerate lists every variant combination the registry recognizes for
// an actor type. Guarantor types carry the guarantee-method dimension;
// the others do not.
func Enumerate(t entity.ActorType) []Variant {
	var out []Variant
	for _, company := range []bool{false, true} {
		for _, nat := range []entity.Nationality{entity.NationalityMexican, entity.NationalityForeign} {
			if t.IsGuarantor() {
				for _, g := range []entity.GuaranteeMethod{entity.GuaranteeIncome, entity.GuaranteeProperty} {
					out = append(out, Variant{Actor: t, Company: company, Nationality: nat, Guarantee: g})
				}
			} else {
				out = append(out, Variant{Actor: t, Company: company, Nationality: nat})
			}
		}
	}
	return out
}
