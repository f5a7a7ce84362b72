// Package wizard is the tab navigation state machine mirrored by the
// self-service form UI. It gates forward navigation on prior-tab
// completion and computes overall progress. The machine is plain
// in-memory state scoped to one editing session; the authoritative
// completion set lives on the actor row and seeds the machine at load.
package wizard

import (
	"errors"

	"github.com/netoho/hestia-app-staging-sub001/internal/actor/entity"
	"github.com/netoho/hestia-app-staging-sub001/internal/actor/tabs"
)

// ErrTabNotAccessible rejects navigation to a tab whose preceding
// applicable tab has not been saved. Navigation is only ever re-checked
// at save time, not at navigation time.
var ErrTabNotAccessible = errors.New("tab not accessible yet")

// Machine tracks one actor's walk through their tab sequence.
type Machine struct {
	actorType entity.ActorType
	isCompany bool
	// AdminMode bypasses gating entirely for staff edit sessions.
	AdminMode bool

	activeTab string
	saved     map[string]bool
	saving    string
}

// New builds a machine seeded from the server-persisted completed-tab
// set. The active tab starts at the first applicable tab.
func New(t entity.ActorType, isCompany bool, completed []string) *Machine {
	m := &Machine{
		actorType: t,
		isCompany: isCompany,
		saved:     map[string]bool{},
	}
	for _, id := range completed {
		m.saved[id] = true
	}
	if ts := tabs.Tabs(t, isCompany); len(ts) > 0 {
		m.activeTab = ts[0].ID
	}
	return m
}

func (m *Machine) ActiveTab() string { return m.activeTab }

// SavedMap returns a copy of the per-tab saved flags.
func (m *Machine) SavedMap() map[string]bool {
	out := make(map[string]bool, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out
}

// MarkSaved flags a tab as saved. Idempotent.
func (m *Machine) MarkSaved(tabID string) {
	if _, ok := tabs.Find(m.actorType, m.isCompany, tabID); ok {
		m.saved[tabID] = true
	}
}

// BeginSave / EndSave track the in-flight save so the UI can disable
// duplicate submits for the same tab.
func (m *Machine) BeginSave(tabID string) { m.saving = tabID }
func (m *Machine) EndSave()               { m.saving = "" }
func (m *Machine) Saving() string         { return m.saving }

// CanAccess reports whether a tab may become active: the first tab is
// always open, any other tab requires its immediately preceding
// applicable tab to be saved. Admin mode bypasses gating.
func (m *Machine) CanAccess(tabID string) bool {
	if m.AdminMode {
		return true
	}
	if _, ok := tabs.Find(m.actorType, m.isCompany, tabID); !ok {
		return false
	}
	prev := tabs.Prev(m.actorType, m.isCompany, tabID)
	if prev == "" {
		return true
	}
	return m.saved[prev]
}

// GoTo activates a tab if accessible.
func (m *Machine) GoTo(tabID string) error {
	if !m.CanAccess(tabID) {
		return ErrTabNotAccessible
	}
	m.activeTab = tabID
	return nil
}

// GoToNext advances to the next applicable tab after the current one.
// It takes the fresh saved map explicitly so a caller advancing right
// after a save does not act on a stale snapshot of the machine.
func (m *Machine) GoToNext(freshSaved map[string]bool) bool {
	if freshSaved != nil {
		for k, v := range freshSaved {
			if v {
				m.saved[k] = true
			}
		}
	}
	next := tabs.Next(m.actorType, m.isCompany, m.activeTab)
	if next == "" {
		return false
	}
	if !m.CanAccess(next) {
		return false
	}
	m.activeTab = next
	return true
}

// AllSaved reports whether every needs-save tab is saved, which enables
// the final submission UI. The trailing documents tab does not count.
func (m *Machine) AllSaved() bool {
	for _, d := range tabs.Tabs(m.actorType, m.isCompany) {
		if d.NeedsSave && !m.saved[d.ID] {
			return false
		}
	}
	return true
}

// Progress returns saved and total counts over needs-save tabs.
func (m *Machine) Progress() (saved, total int) {
	for _, d := range tabs.Tabs(m.actorType, m.isCompany) {
		if !d.NeedsSave {
			continue
		}
		total++
		if m.saved[d.ID] {
			saved++
		}
	}
	return saved, total
}
