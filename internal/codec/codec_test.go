package codec

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phi-api/internal/crypto"
	"github.com/jwalitptl/phi-api/internal/keyvault"
	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository/memory"
	"github.com/jwalitptl/phi-api/pkg/logger"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 7)
	}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	vault, err := keyvault.NewClient(memory.NewVaultStore(), keyvault.Config{MasterKey: key}, log, nil)
	require.NoError(t, err)
	return New(crypto.NewEngine(vault, crypto.DefaultSchema(), "primary-phi-key", nil))
}

func testPatient() *model.Patient {
	return &model.Patient{
		ID:          uuid.New(),
		FirstName:   "Jane",
		LastName:    "Smith",
		Email:       "jane.smith@example.com",
		Phone:       "555-0142",
		DateOfBirth: time.Date(1984, 6, 15, 0, 0, 0, 0, time.UTC),
		NationalID:  "123-45-6789",
		Diagnoses:   []string{"Hypertension"},
		Medications: []string{"Lisinopril"},
		Notes:       "follow up in 3 months",
		Status:      "active",
		CreatedAt:   time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestPatientRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()
	p := testPatient()

	doc, err := c.EncodePatient(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, doc.ID)
	assert.Equal(t, model.EntityPatient, doc.EntityType)

	got, err := c.DecodePatient(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestStoredDocumentHoldsNoPlaintext(t *testing.T) {
	c := newTestCodec(t)
	p := testPatient()

	doc, err := c.EncodePatient(context.Background(), p)
	require.NoError(t, err)

	for _, field := range []string{
		model.FieldFirstName, model.FieldLastName, model.FieldEmail,
		model.FieldNationalID, model.FieldDiagnoses, model.FieldNotes,
	} {
		raw, ok := doc.Fields[field]
		require.True(t, ok, "field %q missing from document", field)
		assert.NotContains(t, string(raw), "Smith")
		assert.NotContains(t, string(raw), "Hypertension")
		assert.NotContains(t, string(raw), "123-45-6789")
	}

	// Status is operational metadata, stored in the clear.
	var status string
	require.NoError(t, json.Unmarshal(doc.Fields[model.FieldStatus], &status))
	assert.Equal(t, "active", status)
}

func TestLegacyDocumentDecodesToDefaults(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	doc, err := c.EncodePatient(ctx, testPatient())
	require.NoError(t, err)

	// A document written before notes and medications were classified.
	delete(doc.Fields, model.FieldNotes)
	delete(doc.Fields, model.FieldMedications)

	got, err := c.DecodePatient(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "", got.Notes)
	assert.Equal(t, []string{}, got.Medications)
	assert.Equal(t, "Smith", got.LastName, "present fields still decode")
}

func TestKnowledgeRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	ctx := context.Background()

	k := &model.MedicalKnowledge{
		ID:        uuid.New(),
		Condition: "Hypertension",
		Summary:   "elevated arterial pressure",
		Treatment: "ACE inhibitors, lifestyle changes",
		Source:    "internal-guidelines",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	doc, err := c.EncodeKnowledge(ctx, k)
	require.NoError(t, err)

	got, err := c.DecodeKnowledge(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, k, got)
}
