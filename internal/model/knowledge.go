package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalKnowledge is a clinical reference entry (condition descriptions,
// treatment notes). A second sensitive aggregate: condition names are
// equality-searchable, the narrative fields are opaque.
type MedicalKnowledge struct {
	ID        uuid.UUID `json:"id"`
	Condition string    `json:"condition"`
	Summary   string    `json:"summary"`
	Treatment string    `json:"treatment"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	FieldCondition = "condition"
	FieldSummary   = "summary"
	FieldTreatment = "treatment"
	FieldSource    = "source"
)

func (k *MedicalKnowledge) Fields() map[string]any {
	return map[string]any{
		FieldCondition: k.Condition,
		FieldSummary:   k.Summary,
		FieldTreatment: k.Treatment,
		FieldSource:    k.Source,
		FieldCreatedAt: k.CreatedAt,
		FieldUpdatedAt: k.UpdatedAt,
	}
}

func KnowledgeFromFields(id uuid.UUID, fields map[string]any) *MedicalKnowledge {
	k := &MedicalKnowledge{ID: id}
	k.Condition, _ = fields[FieldCondition].(string)
	k.Summary, _ = fields[FieldSummary].(string)
	k.Treatment, _ = fields[FieldTreatment].(string)
	k.Source, _ = fields[FieldSource].(string)
	k.CreatedAt, _ = fields[FieldCreatedAt].(time.Time)
	k.UpdatedAt, _ = fields[FieldUpdatedAt].(time.Time)
	return k
}

type CreateKnowledgeRequest struct {
	Condition string `json:"condition" validate:"required"`
	Summary   string `json:"summary" validate:"required"`
	Treatment string `json:"treatment"`
	Source    string `json:"source"`
}
