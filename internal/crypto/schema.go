package crypto

import (
	"time"

	"github.com/jwalitptl/phi-api/internal/model"
)

// Class is a field's cryptographic treatment, fixed at schema-design time.
// Changing a field's class requires re-encrypting all stored values; it is
// a migration, never a runtime operation.
type Class string

const (
	// ClassDeterministic yields byte-identical ciphertext for equal
	// plaintext, supporting equality search.
	ClassDeterministic Class = "deterministic"
	// ClassRange attaches an order-comparable encoding, supporting
	// interval queries on ciphertext.
	ClassRange Class = "range"
	// ClassRandom is freshly randomized per encryption; no query support.
	ClassRandom Class = "random"
)

// Kind is the plaintext type of a classified field, needed to serialize
// before encryption and to produce typed defaults for legacy documents.
type Kind string

const (
	KindString     Kind = "string"
	KindStringList Kind = "string_list"
	KindTime       Kind = "time"
)

// FieldSpec declares how one sensitive attribute is handled.
type FieldSpec struct {
	Class Class
	Kind  Kind
}

// Schema maps entity types to their classified attributes. Attributes not
// listed here pass through the codec unencrypted.
type Schema map[model.EntityType]map[string]FieldSpec

// Lookup returns the spec for a field, if it is classified.
func (s Schema) Lookup(et model.EntityType, field string) (FieldSpec, bool) {
	fields, ok := s[et]
	if !ok {
		return FieldSpec{}, false
	}
	spec, ok := fields[field]
	return spec, ok
}

// Fields returns the classified attribute names for an entity type.
func (s Schema) Fields(et model.EntityType) map[string]FieldSpec {
	return s[et]
}

// DefaultValue is what a classified field decodes to when absent from a
// stored document (legacy data predating a schema change).
func (spec FieldSpec) DefaultValue() any {
	switch spec.Kind {
	case KindStringList:
		return []string{}
	case KindTime:
		return time.Time{}
	default:
		return ""
	}
}

// DefaultSchema is the production field classification for all sensitive
// aggregates. Fields routinely looked up exactly are deterministic, fields
// queried by interval are range, maximally sensitive fields are random.
func DefaultSchema() Schema {
	return Schema{
		model.EntityPatient: {
			model.FieldFirstName:   {Class: ClassDeterministic, Kind: KindString},
			model.FieldLastName:    {Class: ClassDeterministic, Kind: KindString},
			model.FieldEmail:       {Class: ClassDeterministic, Kind: KindString},
			model.FieldPhone:       {Class: ClassDeterministic, Kind: KindString},
			model.FieldDateOfBirth: {Class: ClassRange, Kind: KindTime},
			model.FieldNationalID:  {Class: ClassRandom, Kind: KindString},
			model.FieldDiagnoses:   {Class: ClassRandom, Kind: KindStringList},
			model.FieldMedications: {Class: ClassRandom, Kind: KindStringList},
			model.FieldNotes:       {Class: ClassRandom, Kind: KindString},
		},
		model.EntityMedicalKnowledge: {
			model.FieldCondition: {Class: ClassDeterministic, Kind: KindString},
			model.FieldSummary:   {Class: ClassRandom, Kind: KindString},
			model.FieldTreatment: {Class: ClassRandom, Kind: KindString},
		},
	}
}
