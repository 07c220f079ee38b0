package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

// Patient is the sensitive aggregate held decrypted in memory only for the
// duration of a single request. It is never persisted in this form.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth"`
	NationalID  string    `json:"national_id"`
	Diagnoses   []string  `json:"diagnoses"`
	Medications []string  `json:"medications"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patient attribute names, shared by the field schema, codec and projection.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldDateOfBirth = "date_of_birth"
	FieldNationalID  = "national_id"
	FieldDiagnoses   = "diagnoses"
	FieldMedications = "medications"
	FieldNotes       = "notes"
	FieldStatus      = "status"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// Fields returns the attribute map the codec and projection operate on.
func (p *Patient) Fields() map[string]any {
	return map[string]any{
		FieldFirstName:   p.FirstName,
		FieldLastName:    p.LastName,
		FieldEmail:       p.Email,
		FieldPhone:       p.Phone,
		FieldDateOfBirth: p.DateOfBirth,
		FieldNationalID:  p.NationalID,
		FieldDiagnoses:   p.Diagnoses,
		FieldMedications: p.Medications,
		FieldNotes:       p.Notes,
		FieldStatus:      p.Status,
		FieldCreatedAt:   p.CreatedAt,
		FieldUpdatedAt:   p.UpdatedAt,
	}
}

// PatientFromFields rebuilds a patient from a decoded attribute map.
func PatientFromFields(id uuid.UUID, fields map[string]any) *Patient {
	p := &Patient{ID: id}
	p.FirstName, _ = fields[FieldFirstName].(string)
	p.LastName, _ = fields[FieldLastName].(string)
	p.Email, _ = fields[FieldEmail].(string)
	p.Phone, _ = fields[FieldPhone].(string)
	p.DateOfBirth, _ = fields[FieldDateOfBirth].(time.Time)
	p.NationalID, _ = fields[FieldNationalID].(string)
	p.Diagnoses, _ = fields[FieldDiagnoses].([]string)
	p.Medications, _ = fields[FieldMedications].([]string)
	p.Notes, _ = fields[FieldNotes].(string)
	p.Status, _ = fields[FieldStatus].(string)
	p.CreatedAt, _ = fields[FieldCreatedAt].(time.Time)
	p.UpdatedAt, _ = fields[FieldUpdatedAt].(time.Time)
	return p
}

type CreatePatientRequest struct {
	FirstName   string    `json:"first_name" validate:"required"`
	LastName    string    `json:"last_name" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required"`
	NationalID  string    `json:"national_id"`
	Diagnoses   []string  `json:"diagnoses"`
	Medications []string  `json:"medications"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status" validate:"required,oneof=active inactive"`
}

type UpdatePatientRequest struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	Email       *string    `json:"email" validate:"omitempty,email"`
	Phone       *string    `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Status      *string    `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdatePatientSensitiveRequest carries the clinical subset; gated by the
// edit_sensitive action rather than plain edit.
type UpdatePatientSensitiveRequest struct {
	NationalID  *string   `json:"national_id"`
	Diagnoses   *[]string `json:"diagnoses"`
	Medications *[]string `json:"medications"`
	Notes       *string   `json:"notes"`
}
