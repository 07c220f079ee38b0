package record

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phi-api/internal/audit"
	"github.com/jwalitptl/phi-api/internal/codec"
	"github.com/jwalitptl/phi-api/internal/crypto"
	"github.com/jwalitptl/phi-api/internal/keyvault"
	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/policy"
	"github.com/jwalitptl/phi-api/internal/projection"
	"github.com/jwalitptl/phi-api/internal/repository/memory"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/logger"
)

type fixture struct {
	svc        *Service
	evaluator  *policy.Evaluator
	docs       *memory.DocumentStore
	auditStore *memory.AuditStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(0x10 + i)
	}
	vault, err := keyvault.NewClient(memory.NewVaultStore(), keyvault.Config{MasterKey: masterKey}, log, nil)
	require.NoError(t, err)
	engine := crypto.NewEngine(vault, crypto.DefaultSchema(), "primary-phi-key", nil)

	auditStore := memory.NewAuditStore()
	auditor := audit.NewWriter(auditStore, audit.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
	}, log, nil)
	evaluator := policy.NewEvaluator(policy.DefaultRules(), auditor, log, nil)
	docs := memory.NewDocumentStore()

	svc := NewService(codec.New(engine), engine, evaluator, projection.New(projection.DefaultTable()),
		docs, auditor, log)
	return &fixture{svc: svc, evaluator: evaluator, docs: docs, auditStore: auditStore}
}

func clinician() model.Actor {
	return model.Actor{ID: uuid.New(), Roles: []model.Role{model.RoleClinician}}
}

func frontDesk() model.Actor {
	return model.Actor{ID: uuid.New(), Roles: []model.Role{model.RoleFrontDesk}}
}

func admin() model.Actor {
	return model.Actor{ID: uuid.New(), Roles: []model.Role{model.RoleAdministrator}}
}

func smithRequest() *model.CreatePatientRequest {
	return &model.CreatePatientRequest{
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
	}
}

func (f *fixture) auditEntries(t *testing.T) []*model.AuditEntry {
	t.Helper()
	entries, err := f.auditStore.List(context.Background(), model.AuditFilter{})
	require.NoError(t, err)
	return entries
}

// The canonical cross-role scenario: one record, three observers, three
// different shapes of the truth.
func TestRoleScopedViewsOfOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	// Clinician: full clinical picture.
	view, err := f.svc.GetPatient(ctx, clinician(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith", view[model.FieldLastName])
	assert.Equal(t, []string{"Hypertension"}, view[model.FieldDiagnoses])

	// Front desk: demographics only, clinical keys absent.
	view, err = f.svc.GetPatient(ctx, frontDesk(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith", view[model.FieldLastName])
	_, ok := view[model.FieldDiagnoses]
	assert.False(t, ok)

	// Front desk asking for the sensitive subset is denied, and the denial
	// itself lands in the audit trail.
	before := len(f.auditEntries(t))
	fd := frontDesk()
	decision, err := f.evaluator.Evaluate(ctx, fd, model.ActionViewSensitive, model.EntityPatient, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed())

	entries := f.auditEntries(t)
	require.Len(t, entries, before+1)
	denial := entries[0]
	assert.Equal(t, fd.ID, denial.ActorID)
	assert.Equal(t, string(model.ActionViewSensitive), denial.Action)
	assert.Equal(t, model.DecisionDeny, denial.Decision)
}

func TestUnauthenticatedGetDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	_, err = f.svc.GetPatient(ctx, model.Actor{ID: uuid.New()}, p.ID)
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)
}

func TestStoredRecordIsOpaque(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	doc, err := f.docs.Get(ctx, model.EntityPatient, p.ID)
	require.NoError(t, err)
	for name, raw := range doc.Fields {
		if name == model.FieldStatus {
			continue
		}
		assert.NotContains(t, string(raw), "Smith", "field %q", name)
		assert.NotContains(t, string(raw), "Hypertension", "field %q", name)
	}
}

func TestUpdateDemographics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := clinician()

	p, err := f.svc.CreatePatient(ctx, actor, smithRequest())
	require.NoError(t, err)

	newLast := "Smith-Jones"
	require.NoError(t, f.svc.UpdatePatient(ctx, actor, p.ID, &model.UpdatePatientRequest{LastName: &newLast}))

	view, err := f.svc.GetPatient(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Smith-Jones", view[model.FieldLastName])
	assert.Equal(t, []string{"Hypertension"}, view[model.FieldDiagnoses], "untouched fields survive")
}

func TestSensitiveEditGatedSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	diagnoses := []string{"Hypertension", "Type 2 Diabetes"}
	req := &model.UpdatePatientSensitiveRequest{Diagnoses: &diagnoses}

	// Front desk holds plain edit but not edit_sensitive.
	err = f.svc.UpdatePatientSensitive(ctx, frontDesk(), p.ID, req)
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)

	// The administrator's explicit deny also blocks it.
	err = f.svc.UpdatePatientSensitive(ctx, admin(), p.ID, req)
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)

	require.NoError(t, f.svc.UpdatePatientSensitive(ctx, clinician(), p.ID, req))
	view, err := f.svc.GetPatient(ctx, clinician(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, diagnoses, view[model.FieldDiagnoses])
}

func TestDeleteRequiresGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	err = f.svc.DeletePatient(ctx, frontDesk(), p.ID)
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)
	_, err = f.docs.Get(ctx, model.EntityPatient, p.ID)
	assert.NoError(t, err, "denied delete must not touch the record")

	require.NoError(t, f.svc.DeletePatient(ctx, admin(), p.ID))
	_, err = f.docs.Get(ctx, model.EntityPatient, p.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestOwnRecordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	self := model.Actor{
		ID:              uuid.New(),
		Roles:           []model.Role{model.RolePatientSelf},
		PatientRecordID: p.ID,
	}
	view, err := f.svc.GetOwnRecord(ctx, self)
	require.NoError(t, err)
	assert.Equal(t, "Smith", view[model.FieldLastName])
	assert.Equal(t, []string{"Hypertension"}, view[model.FieldDiagnoses])

	// The same role cannot read arbitrary records.
	_, err = f.svc.GetPatient(ctx, self, p.ID)
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)

	// An unlinked account has no record to own.
	_, err = f.svc.GetOwnRecord(ctx, model.Actor{ID: uuid.New(), Roles: []model.Role{model.RolePatientSelf}})
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)
}

func TestSearchByLastName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := clinician()

	_, err := f.svc.CreatePatient(ctx, actor, smithRequest())
	require.NoError(t, err)

	second := smithRequest()
	second.FirstName = "John"
	second.Email = "john.smith@example.com"
	_, err = f.svc.CreatePatient(ctx, actor, second)
	require.NoError(t, err)

	other := smithRequest()
	other.LastName = "Jones"
	other.Email = "jane.jones@example.com"
	_, err = f.svc.CreatePatient(ctx, actor, other)
	require.NoError(t, err)

	views, err := f.svc.SearchPatientsByLastName(ctx, actor, "Smith")
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, "Smith", v[model.FieldLastName])
	}

	views, err = f.svc.SearchPatientsByLastName(ctx, actor, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestFindPatientsByBirthRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := clinician()

	dobs := []time.Time{
		time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1984, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 9, 9, 0, 0, 0, 0, time.UTC),
	}
	for i, dob := range dobs {
		req := smithRequest()
		req.DateOfBirth = dob
		req.Email = "p" + string(rune('a'+i)) + "@example.com"
		_, err := f.svc.CreatePatient(ctx, actor, req)
		require.NoError(t, err)
	}

	views, err := f.svc.FindPatientsByBirthRange(ctx, actor,
		time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, views, 1)
}

func TestImportPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := smithRequest()
	second.LastName = "Jones"
	second.Email = "jane.jones@example.com"

	// Import is an administrator capability; a clinician lacks the grant.
	_, err := f.svc.ImportPatients(ctx, clinician(), []*model.CreatePatientRequest{smithRequest()})
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)

	ids, err := f.svc.ImportPatients(ctx, admin(), []*model.CreatePatientRequest{smithRequest(), second})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	views, err := f.svc.SearchPatientsByLastName(ctx, clinician(), "Jones")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestKnowledgeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := clinician()

	k, err := f.svc.CreateKnowledge(ctx, actor, &model.CreateKnowledgeRequest{
		Condition: "Hypertension",
		Summary:   "elevated arterial pressure",
		Treatment: "ACE inhibitors",
		Source:    "internal-guidelines",
	})
	require.NoError(t, err)

	view, err := f.svc.GetKnowledge(ctx, actor, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hypertension", view[model.FieldCondition])
	assert.Equal(t, "ACE inhibitors", view[model.FieldTreatment])

	// Care support sees the condition and summary but not treatment.
	support := model.Actor{ID: uuid.New(), Roles: []model.Role{model.RoleCareSupport}}
	view, err = f.svc.GetKnowledge(ctx, support, k.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hypertension", view[model.FieldCondition])
	_, ok := view[model.FieldTreatment]
	assert.False(t, ok)

	views, err := f.svc.SearchKnowledgeByCondition(ctx, actor, "Hypertension")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestAuditSurfaceRestricted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	require.NoError(t, err)

	_, err = f.svc.AuditTrail(ctx, clinician(), model.AuditFilter{})
	assert.ErrorIs(t, err, errors.ErrPolicyDeny)

	entries, err := f.svc.AuditTrail(ctx, admin(), model.AuditFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	stats, err := f.svc.AuditStats(ctx, admin())
	require.NoError(t, err)
	assert.Greater(t, stats.Total, int64(0))
}

func TestEveryOperationLeavesATrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := clinician()

	p, err := f.svc.CreatePatient(ctx, actor, smithRequest())
	require.NoError(t, err)
	// create evaluates policy once and records the mutation once.
	assert.Len(t, f.auditEntries(t), 2)

	_, err = f.svc.GetPatient(ctx, actor, p.ID)
	require.NoError(t, err)
	assert.Len(t, f.auditEntries(t), 3)
}

func TestAuditOutageFailsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.auditStore.FailNext = 10
	_, err := f.svc.CreatePatient(ctx, clinician(), smithRequest())
	assert.ErrorIs(t, err, errors.ErrAuditWriteFailure)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	req := smithRequest()
	req.Email = "not-an-email"
	_, err := f.svc.CreatePatient(context.Background(), clinician(), req)
	assert.Error(t, err)

	req = smithRequest()
	req.Status = "archived"
	_, err = f.svc.CreatePatient(context.Background(), clinician(), req)
	assert.Error(t, err)
}
