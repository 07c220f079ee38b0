package policy

import "github.com/jwalitptl/phi-api/internal/model"

// RuleEffect is a rule table entry. Absence of an entry is abstain, which
// callers treat as deny; RuleDeny exists for deliberate capability removal
// from a role that would otherwise hold it through another role.
type RuleEffect int

const (
	RuleAllow RuleEffect = iota
	RuleDeny
)

// RuleTable maps entity type -> role -> action -> effect.
type RuleTable map[model.EntityType]map[model.Role]map[model.Action]RuleEffect

// DefaultRules is the production rule table. The administrator's explicit
// denies on the sensitive subset are intentional: elevated system rights
// do not extend to raw clinical content, and an omission would be undone
// the moment an administrator also held a granting role.
func DefaultRules() RuleTable {
	return RuleTable{
		model.EntityPatient: {
			model.RoleAdministrator: {
				model.ActionView:               RuleAllow,
				model.ActionCreate:             RuleAllow,
				model.ActionEdit:               RuleAllow,
				model.ActionDelete:             RuleAllow,
				model.ActionSearch:             RuleAllow,
				model.ActionImport:             RuleAllow,
				model.ActionViewAggregateStats: RuleAllow,
				model.ActionViewSensitive:      RuleDeny,
				model.ActionEditSensitive:      RuleDeny,
			},
			model.RoleClinician: {
				model.ActionView:          RuleAllow,
				model.ActionViewSensitive: RuleAllow,
				model.ActionCreate:        RuleAllow,
				model.ActionEdit:          RuleAllow,
				model.ActionEditSensitive: RuleAllow,
				model.ActionSearch:        RuleAllow,
			},
			model.RoleCareSupport: {
				model.ActionView:          RuleAllow,
				model.ActionViewSensitive: RuleAllow,
				model.ActionSearch:        RuleAllow,
			},
			model.RoleFrontDesk: {
				model.ActionView:          RuleAllow,
				model.ActionCreate:        RuleAllow,
				model.ActionEdit:          RuleAllow,
				model.ActionSearch:        RuleAllow,
				model.ActionViewSensitive: RuleDeny,
			},
			model.RolePatientSelf: {
				model.ActionViewOwnRecord: RuleAllow,
			},
		},
		model.EntityMedicalKnowledge: {
			model.RoleAdministrator: {
				model.ActionDelete: RuleAllow,
				model.ActionImport: RuleAllow,
			},
			model.RoleClinician: {
				model.ActionView:   RuleAllow,
				model.ActionCreate: RuleAllow,
				model.ActionEdit:   RuleAllow,
				model.ActionSearch: RuleAllow,
			},
			model.RoleCareSupport: {
				model.ActionView:   RuleAllow,
				model.ActionSearch: RuleAllow,
			},
		},
		model.EntityAuditLog: {
			model.RoleAdministrator: {
				model.ActionView:               RuleAllow,
				model.ActionSearch:             RuleAllow,
				model.ActionViewAggregateStats: RuleAllow,
			},
		},
	}
}
