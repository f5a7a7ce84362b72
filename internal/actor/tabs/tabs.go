// Package tabs is the static tab configuration registry. The ordered tab
// list per actor type drives both the wizard sequence and server-side
// validation of tab names on update calls, so it must stay the single
// source of truth for both sides.
package tabs

import (
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
)

// Descriptor describes one wizard tab. Order in the registry defines the
// UI sequence and the last-tab determination.
type Descriptor struct {
	ID    string
	Label string
	// NeedsSave marks tabs whose completion counts toward AllSaved. The
	// final documents tab is excluded; uploads confirm out-of-band.
	NeedsSave bool
	// companyOnly/individualOnly gate applicability on the company
	// discriminant. Zero value means applicable to both.
	companyOnly    bool
	individualOnly bool
}

func (d Descriptor) Applicable(isCompany bool) bool {
	if d.companyOnly {
		return isCompany
	}
	if d.individualOnly {
		return !isCompany
	}
	return true
}

const (
	TabPersonal   = "personal"
	TabCompany    = "company"
	TabEmployment = "employment"
	TabProperty   = "property"
	TabBank       = "bank"
	TabGuarantee  = "guarantee"
	TabReferences = "references"
	TabDocuments  = "documents"
)

var registry = map[entity.ActorType][]Descriptor{
	entity.ActorTenant: {
		{ID: TabPersonal, Label: "Personal information", NeedsSave: true, individualOnly: true},
		{ID: TabCompany, Label: "Company information", NeedsSave: true, companyOnly: true},
		{ID: TabEmployment, Label: "Employment", NeedsSave: true, individualOnly: true},
		{ID: TabReferences, Label: "References", NeedsSave: true},
		{ID: TabDocuments, Label: "Documents", NeedsSave: false},
	},
	entity.ActorLandlord: {
		{ID: TabPersonal, Label: "Personal information", NeedsSave: true, individualOnly: true},
		{ID: TabCompany, Label: "Company information", NeedsSave: true, companyOnly: true},
		{ID: TabProperty, Label: "Property", NeedsSave: true},
		{ID: TabBank, Label: "Bank account", NeedsSave: true},
		{ID: TabDocuments, Label: "Documents", NeedsSave: false},
	},
	entity.ActorAval: {
		{ID: TabPersonal, Label: "Personal information", NeedsSave: true, individualOnly: true},
		{ID: TabCompany, Label: "Company information", NeedsSave: true, companyOnly: true},
		{ID: TabGuarantee, Label: "Guarantee", NeedsSave: true},
		{ID: TabReferences, Label: "References", NeedsSave: true},
		{ID: TabDocuments, Label: "Documents", NeedsSave: false},
	},
	entity.ActorJointObligor: {
		{ID: TabPersonal, Label: "Personal information", NeedsSave: true, individualOnly: true},
		{ID: TabCompany, Label: "Company information", NeedsSave: true, companyOnly: true},
		{ID: TabGuarantee, Label: "Guarantee", NeedsSave: true},
		{ID: TabReferences, Label: "References", NeedsSave: true},
		{ID: TabDocuments, Label: "Documents", NeedsSave: false},
	},
}

// Tabs returns the ordered applicable tab list for an actor type and
// company mode. Pure function of its two inputs.
func Tabs(t entity.ActorType, isCompany bool) []Descriptor {
	all := registry[t]
	out := make([]Descriptor, 0, len(all))
	for _, d := range all {
		if d.Applicable(isCompany) {
			out = append(out, d)
		}
	}
	return out
}

// Find returns the descriptor for a tab id, or ok=false when the tab does
// not exist for this actor type and company mode. Unknown tabs indicate
// client/server registry drift and must be rejected before any write.
func Find(t entity.ActorType, isCompany bool, tabID string) (Descriptor, bool) {
	for _, d := range Tabs(t, isCompany) {
		if d.ID == tabID {
			return d, true
		}
	}
	return Descriptor{}, false
}

// LastTab returns the final tab id for an actor type. The documents tab
// closes every flow; saving it triggers auto-submission.
func LastTab(t entity.ActorType) string {
	all := registry[t]
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1].ID
}

// Next returns the id of the next applicable tab after current, or ""
// when current is the last one.
func Next(t entity.ActorType, isCompany bool, current string) string {
	ts := Tabs(t, isCompany)
	for i, d := range ts {
		if d.ID == current && i+1 < len(ts) {
			return ts[i+1].ID
		}
	}
	return ""
}

// Prev returns the id of the applicable tab preceding current, or ""
// when current is the first one.
func Prev(t entity.ActorType, isCompany bool, current string) string {
	ts := Tabs(t, isCompany)
	for i, d := range ts {
		if d.ID == current && i > 0 {
			return ts[i-1].ID
		}
	}
	return ""
}
