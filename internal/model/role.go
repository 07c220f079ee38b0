package model

import "github.com/google/uuid"

// Role is one of the closed set of caller roles. Role sets arrive on the
// request already resolved and validated by the authentication layer; the
// core never infers roles from identity fields.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleClinician     Role = "clinician"
	RoleCareSupport   Role = "care_support"
	RoleFrontDesk     Role = "front_desk"
	RolePatientSelf   Role = "patient_self"
)

// Action is an enumerated verb a caller may request against an entity type.
type Action string

const (
	ActionView               Action = "view"
	ActionViewSensitive      Action = "view_sensitive"
	ActionCreate             Action = "create"
	ActionEdit               Action = "edit"
	ActionEditSensitive      Action = "edit_sensitive"
	ActionDelete             Action = "delete"
	ActionSearch             Action = "search"
	ActionImport             Action = "import"
	ActionViewAggregateStats Action = "view_aggregate_stats"
	ActionViewOwnRecord      Action = "view_own_record"
)

// EntityType names a sensitive aggregate kind.
type EntityType string

const (
	EntityPatient          EntityType = "patient"
	EntityMedicalKnowledge EntityType = "medical_knowledge"
	EntityAuditLog         EntityType = "audit_log"
)

// Actor is the caller identity as resolved by the excluded auth layer.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Roles []Role    `json:"roles"`
	// PatientRecordID links a patient-self actor to their own record.
	PatientRecordID uuid.UUID `json:"patient_record_id,omitempty"`
}

// HasRole reports whether the actor holds the given role.
func (a Actor) HasRole(r Role) bool {
	for _, held := range a.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// Subject identifies the target of a target-scoped action.
type Subject struct {
	EntityType EntityType
	ID         uuid.UUID
	// OwnerRecordID is the patient record that owns the subject, used by
	// own-record checks. For patient records it equals ID.
	OwnerRecordID uuid.UUID
}
