package projection

import "github.com/jwalitptl/phi-api/internal/model"

// DefaultTable is the production visibility table. Administrators see
// demographics for account management but never clinical content; the
// identifier is masked for everyone who only needs to confirm it.
func DefaultTable() Table {
	return Table{
		model.EntityPatient: {
			model.FieldFirstName: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Visible,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldLastName: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Visible,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldEmail: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Masked,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldPhone: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Masked,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldDateOfBirth: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Visible,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldNationalID: {
				model.RoleAdministrator: Masked,
				model.RoleClinician:     Visible,
				model.RoleFrontDesk:     Masked,
				model.RolePatientSelf:   Visible,
			},
			model.FieldDiagnoses: {
				model.RoleClinician:   Visible,
				model.RoleCareSupport: Visible,
				model.RolePatientSelf: Visible,
			},
			model.FieldMedications: {
				model.RoleClinician:   Visible,
				model.RoleCareSupport: Visible,
				model.RolePatientSelf: Visible,
			},
			model.FieldNotes: {
				model.RoleClinician: Visible,
			},
			model.FieldStatus: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Visible,
				model.RoleFrontDesk:     Visible,
				model.RolePatientSelf:   Visible,
			},
			model.FieldCreatedAt: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleFrontDesk:     Visible,
			},
			model.FieldUpdatedAt: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
			},
		},
		model.EntityMedicalKnowledge: {
			model.FieldCondition: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
				model.RoleCareSupport:   Visible,
			},
			model.FieldSummary: {
				model.RoleClinician:   Visible,
				model.RoleCareSupport: Visible,
			},
			model.FieldTreatment: {
				model.RoleClinician: Visible,
			},
			model.FieldSource: {
				model.RoleAdministrator: Visible,
				model.RoleClinician:     Visible,
			},
		},
	}
}
