/*
Package authz evaluates role-based capabilities.

PURPOSE:
  One place that answers "what can this principal do", evaluated once per
  request, instead of role booleans re-derived ad hoc in every handler.

ROLES:
  SENIOR_MANAGER     owns KPAs; edits what they own, approves updates
  PROGRAMME_MANAGER  updates progress on items they are responsible for
  ME_STRATEGY        monitoring & evaluation; sees and edits everything
  FINANCE            read everything, manage cost lines
  SYSTEM_ADMIN       everything
*/
package authz

import (
	"strings"

	"github.com/BigAlzz/smon/plan"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	SeniorManager    Role = "SENIOR_MANAGER"
	ProgrammeManager Role = "PROGRAMME_MANAGER"
	MEStrategy       Role = "ME_STRATEGY"
	Finance          Role = "FINANCE"
	SystemAdmin      Role = "SYSTEM_ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case SeniorManager, ProgrammeManager, MEStrategy, Finance, SystemAdmin:
		return r, true
	default:
		return "", false
	}
}

// =============================================================================
// CAPABILITIES
// =============================================================================

type Capability uint

const (
	CapViewAllKPAs Capability = 1 << iota
	CapEditAnyKPA
	CapEditOwnedKPA
	CapUpdateProgress
	CapApproveUpdates
	CapManageCostLines
	CapManageYears
	CapAdmin
)

type CapabilitySet uint

func (c CapabilitySet) Has(cap Capability) bool { return uint(c)&uint(cap) != 0 }

func caps(list ...Capability) CapabilitySet {
	var c uint
	for _, cap := range list {
		c |= uint(cap)
	}
	return CapabilitySet(c)
}

// Capabilities returns the capability set for a role. Unknown roles get
// nothing.
func Capabilities(r Role) CapabilitySet {
	switch r {
	case SystemAdmin:
		return caps(CapViewAllKPAs, CapEditAnyKPA, CapEditOwnedKPA, CapUpdateProgress,
			CapApproveUpdates, CapManageCostLines, CapManageYears, CapAdmin)
	case MEStrategy:
		return caps(CapViewAllKPAs, CapEditAnyKPA, CapEditOwnedKPA, CapUpdateProgress,
			CapApproveUpdates, CapManageYears)
	case SeniorManager:
		return caps(CapViewAllKPAs, CapEditOwnedKPA, CapUpdateProgress, CapApproveUpdates)
	case ProgrammeManager:
		return caps(CapViewAllKPAs, CapUpdateProgress, CapApproveUpdates)
	case Finance:
		return caps(CapViewAllKPAs, CapManageCostLines)
	default:
		return 0
	}
}

// =============================================================================
// PRINCIPAL
// =============================================================================

// Principal is the authenticated actor, built once per request by the
// auth middleware.
type Principal struct {
	UserID plan.UserID
	Name   string
	Role   Role
	caps   CapabilitySet
}

func NewPrincipal(userID plan.UserID, name string, role Role) Principal {
	return Principal{UserID: userID, Name: name, Role: role, caps: Capabilities(role)}
}

func (p Principal) Can(cap Capability) bool { return p.caps.Has(cap) }

// CanEditKPA: admins and M&E edit anything; senior managers only KPAs
// they own.
func (p Principal) CanEditKPA(k plan.KPA) bool {
	if p.Can(CapEditAnyKPA) {
		return true
	}
	return p.Can(CapEditOwnedKPA) && k.OwnerID == p.UserID
}

// CanEditPlanItem mirrors the KPA rule, except programme managers may
// edit items naming them as responsible officer.
func (p Principal) CanEditPlanItem(k plan.KPA, item plan.OperationalPlanItem) bool {
	if p.CanEditKPA(k) {
		return true
	}
	if p.Role == ProgrammeManager && p.Name != "" {
		return strings.Contains(
			strings.ToLower(item.ResponsibleOfficer),
			strings.ToLower(p.Name),
		)
	}
	return false
}
