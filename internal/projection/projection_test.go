package projection

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phi-api/internal/model"
)

func samplePatientFields() map[string]any {
	return map[string]any{
		model.FieldFirstName:   "Jane",
		model.FieldLastName:    "Smith",
		model.FieldEmail:       "jane.smith@example.com",
		model.FieldPhone:       "555-0142",
		model.FieldDateOfBirth: time.Date(1984, 6, 15, 0, 0, 0, 0, time.UTC),
		model.FieldNationalID:  "123-45-6789",
		model.FieldDiagnoses:   []string{"Hypertension"},
		model.FieldMedications: []string{"Lisinopril"},
		model.FieldNotes:       "follow up in 3 months",
		model.FieldStatus:      "active",
	}
}

func keysOf(vm ViewModel) []string {
	keys := make([]string, 0, len(vm))
	for k := range vm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestClinicianSeesClinicalContent(t *testing.T) {
	p := New(DefaultTable())

	vm := p.Project(model.EntityPatient, samplePatientFields(), []model.Role{model.RoleClinician})
	assert.Equal(t, "Smith", vm[model.FieldLastName])
	assert.Equal(t, []string{"Hypertension"}, vm[model.FieldDiagnoses])
	assert.Equal(t, "123-45-6789", vm[model.FieldNationalID])
	assert.Equal(t, "follow up in 3 months", vm[model.FieldNotes])
}

func TestFrontDeskOmitsClinicalContent(t *testing.T) {
	p := New(DefaultTable())

	vm := p.Project(model.EntityPatient, samplePatientFields(), []model.Role{model.RoleFrontDesk})
	assert.Equal(t, "Smith", vm[model.FieldLastName])

	// Omitted means the key is absent, not present-but-null.
	_, ok := vm[model.FieldDiagnoses]
	assert.False(t, ok)
	_, ok = vm[model.FieldMedications]
	assert.False(t, ok)
	_, ok = vm[model.FieldNotes]
	assert.False(t, ok)
}

func TestMaskedValuesNeverEchoPlaintext(t *testing.T) {
	p := New(DefaultTable())
	fields := samplePatientFields()

	vm := p.Project(model.EntityPatient, fields, []model.Role{model.RoleFrontDesk})
	masked, ok := vm[model.FieldNationalID]
	require.True(t, ok, "masked fields keep their key")
	assert.NotEqual(t, fields[model.FieldNationalID], masked)
	assert.Equal(t, "***-**-6789", masked)

	vm = p.Project(model.EntityPatient, fields, []model.Role{model.RoleCareSupport})
	assert.Equal(t, "j***@example.com", vm[model.FieldEmail])
	assert.Equal(t, "***42", vm[model.FieldPhone])
}

func TestMostPermissiveRoleWins(t *testing.T) {
	p := New(DefaultTable())
	fields := samplePatientFields()

	// Front desk alone gets a mask; adding clinician lifts it.
	vm := p.Project(model.EntityPatient, fields,
		[]model.Role{model.RoleFrontDesk, model.RoleClinician})
	assert.Equal(t, "123-45-6789", vm[model.FieldNationalID])
	assert.Equal(t, []string{"Hypertension"}, vm[model.FieldDiagnoses])
}

func TestUnknownRoleSeesNothing(t *testing.T) {
	p := New(DefaultTable())

	vm := p.Project(model.EntityPatient, samplePatientFields(), []model.Role{model.Role("intern")})
	assert.Empty(t, vm, "roles without listed visibility fall to default-deny")

	vm = p.Project(model.EntityType("unknown"), samplePatientFields(), []model.Role{model.RoleClinician})
	assert.Empty(t, vm)
}

func TestViewShapeStable(t *testing.T) {
	p := New(DefaultTable())
	fields := samplePatientFields()
	roles := []model.Role{model.RoleCareSupport}

	first := p.Project(model.EntityPatient, fields, roles)
	second := p.Project(model.EntityPatient, fields, roles)
	assert.Equal(t, keysOf(first), keysOf(second),
		"key set must be a function of entity and role set alone")
}

func TestUnclassifiedAttributeOmitted(t *testing.T) {
	p := New(DefaultTable())
	fields := samplePatientFields()
	fields["internal_flag"] = true

	vm := p.Project(model.EntityPatient, fields, []model.Role{model.RoleClinician})
	_, ok := vm["internal_flag"]
	assert.False(t, ok, "attributes outside the table never leak")
}

func TestMaskedListRedactsEachElement(t *testing.T) {
	table := Table{
		model.EntityPatient: {
			model.FieldDiagnoses: {model.RoleFrontDesk: Masked},
		},
	}
	vm := New(table).Project(model.EntityPatient, samplePatientFields(), []model.Role{model.RoleFrontDesk})
	assert.Equal(t, []string{"***"}, vm[model.FieldDiagnoses])
}
