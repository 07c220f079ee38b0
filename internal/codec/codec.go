// Package codec converts between plaintext domain entities and their
// encrypted storage documents. Both directions are pure functions of the
// document and current key state: nothing here caches decrypted values
// past the single call.
package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/phi-api/internal/crypto"
	"github.com/jwalitptl/phi-api/internal/model"
)

// Codec walks an entity's declared sensitive attributes through the field
// encryption engine; unclassified attributes pass through unchanged.
type Codec struct {
	engine *crypto.Engine
}

func New(engine *crypto.Engine) *Codec {
	return &Codec{engine: engine}
}

// plain attributes carried in the document alongside the classified ones.
var plainFields = map[model.EntityType][]string{
	model.EntityPatient:          {model.FieldStatus},
	model.EntityMedicalKnowledge: {model.FieldSource},
}

// EncodePatient produces the encrypted storage document for a patient.
func (c *Codec) EncodePatient(ctx context.Context, p *model.Patient) (*model.Document, error) {
	fields, err := c.encodeFields(ctx, model.EntityPatient, p.Fields())
	if err != nil {
		return nil, err
	}
	return &model.Document{
		ID:         p.ID,
		EntityType: model.EntityPatient,
		Fields:     fields,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}, nil
}

// DecodePatient reconstitutes the plaintext patient from its document.
func (c *Codec) DecodePatient(ctx context.Context, doc *model.Document) (*model.Patient, error) {
	fields, err := c.decodeFields(ctx, model.EntityPatient, doc.Fields)
	if err != nil {
		return nil, err
	}
	p := model.PatientFromFields(doc.ID, fields)
	p.CreatedAt = doc.CreatedAt
	p.UpdatedAt = doc.UpdatedAt
	return p, nil
}

func (c *Codec) EncodeKnowledge(ctx context.Context, k *model.MedicalKnowledge) (*model.Document, error) {
	fields, err := c.encodeFields(ctx, model.EntityMedicalKnowledge, k.Fields())
	if err != nil {
		return nil, err
	}
	return &model.Document{
		ID:         k.ID,
		EntityType: model.EntityMedicalKnowledge,
		Fields:     fields,
		CreatedAt:  k.CreatedAt,
		UpdatedAt:  k.UpdatedAt,
	}, nil
}

func (c *Codec) DecodeKnowledge(ctx context.Context, doc *model.Document) (*model.MedicalKnowledge, error) {
	fields, err := c.decodeFields(ctx, model.EntityMedicalKnowledge, doc.Fields)
	if err != nil {
		return nil, err
	}
	k := model.KnowledgeFromFields(doc.ID, fields)
	k.CreatedAt = doc.CreatedAt
	k.UpdatedAt = doc.UpdatedAt
	return k, nil
}

func (c *Codec) encodeFields(ctx context.Context, et model.EntityType, values map[string]any) (model.DocumentFields, error) {
	out := model.DocumentFields{}

	for name := range c.engine.Schema().Fields(et) {
		value, ok := values[name]
		if !ok {
			continue
		}
		blob, err := c.engine.Encrypt(ctx, et, name, value)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", name, err)
		}
		out[name] = raw
	}

	for _, name := range plainFields[et] {
		value, ok := values[name]
		if !ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %q: %w", name, err)
		}
		out[name] = raw
	}

	return out, nil
}

func (c *Codec) decodeFields(ctx context.Context, et model.EntityType, doc model.DocumentFields) (map[string]any, error) {
	out := map[string]any{}

	for name, spec := range c.engine.Schema().Fields(et) {
		raw, ok := doc[name]
		if !ok {
			// Legacy document predating a schema change: decode to the
			// declared default rather than failing the reconstruction.
			out[name] = spec.DefaultValue()
			continue
		}
		var blob crypto.EncryptedValue
		if err := json.Unmarshal(raw, &blob); err != nil {
			return nil, fmt.Errorf("failed to decode field %q: %w", name, err)
		}
		value, err := c.engine.Decrypt(ctx, et, name, &blob)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}

	for _, name := range plainFields[et] {
		raw, ok := doc[name]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("failed to decode field %q: %w", name, err)
		}
		out[name] = value
	}

	return out, nil
}
