// Package record orchestrates the core chain for every operation: policy
// evaluation first, then codec, then role projection, with the audit
// writer recording decision and mutation. Nothing leaves this package
// undecided or unprojected.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/audit"
	"github.com/jwalitptl/phi-api/internal/codec"
	"github.com/jwalitptl/phi-api/internal/crypto"
	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/policy"
	"github.com/jwalitptl/phi-api/internal/projection"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/logger"
)

type Service struct {
	codec     *codec.Codec
	engine    *crypto.Engine
	evaluator *policy.Evaluator
	projector *projection.Projector
	docs      repository.DocumentStore
	auditor   *audit.Writer
	validate  *validator.Validate
	log       *logger.Logger
}

func NewService(
	c *codec.Codec,
	engine *crypto.Engine,
	evaluator *policy.Evaluator,
	projector *projection.Projector,
	docs repository.DocumentStore,
	auditor *audit.Writer,
	log *logger.Logger,
) *Service {
	return &Service{
		codec:     c,
		engine:    engine,
		evaluator: evaluator,
		projector: projector,
		docs:      docs,
		auditor:   auditor,
		validate:  validator.New(),
		log:       log.WithComponent("record"),
	}
}

// authorize runs the policy evaluator and converts its decision into the
// error surface callers dispatch on. The evaluator has already audited
// the decision by the time this returns.
func (s *Service) authorize(ctx context.Context, actor model.Actor, action model.Action, et model.EntityType, target *model.Subject) error {
	decision, err := s.evaluator.Evaluate(ctx, actor, action, et, target)
	if err != nil {
		return err
	}
	if decision.Allowed() {
		return nil
	}
	if decision.Detail == policy.DetailMissingSubject {
		return errors.MissingSubject(string(action))
	}
	return errors.PolicyDeny(string(action), string(et))
}

// auditMutation records a completed data mutation. Fail-closed like every
// other audit write: the mutation's caller sees the failure.
func (s *Service) auditMutation(ctx context.Context, actor model.Actor, action string, et model.EntityType, id uuid.UUID, details string) error {
	return s.auditor.Append(ctx, &model.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: string(et),
		EntityID:   id,
		Decision:   model.DecisionGrant,
		Details:    details,
	})
}

func (s *Service) CreatePatient(ctx context.Context, actor model.Actor, req *model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid patient: %w", err)
	}
	if err := s.authorize(ctx, actor, model.ActionCreate, model.EntityPatient, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Patient{
		ID:          uuid.New(),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		NationalID:  req.NationalID,
		Diagnoses:   req.Diagnoses,
		Medications: req.Medications,
		Notes:       req.Notes,
		Status:      req.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	doc, err := s.codec.EncodePatient(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store patient: %w", err)
	}
	if err := s.auditMutation(ctx, actor, "create", model.EntityPatient, p.ID, "patient created"); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, actor model.Actor, id uuid.UUID) (projection.ViewModel, error) {
	target := &model.Subject{EntityType: model.EntityPatient, ID: id, OwnerRecordID: id}
	if err := s.authorize(ctx, actor, model.ActionView, model.EntityPatient, target); err != nil {
		return nil, err
	}
	return s.loadAndProject(ctx, actor, id)
}

// GetOwnRecord serves the patient-self flow: the target is always the
// actor's own linked record, never a caller-supplied id.
func (s *Service) GetOwnRecord(ctx context.Context, actor model.Actor) (projection.ViewModel, error) {
	target := &model.Subject{
		EntityType:    model.EntityPatient,
		ID:            actor.PatientRecordID,
		OwnerRecordID: actor.PatientRecordID,
	}
	if err := s.authorize(ctx, actor, model.ActionViewOwnRecord, model.EntityPatient, target); err != nil {
		return nil, err
	}
	return s.loadAndProject(ctx, actor, actor.PatientRecordID)
}

func (s *Service) loadAndProject(ctx context.Context, actor model.Actor, id uuid.UUID) (projection.ViewModel, error) {
	doc, err := s.docs.Get(ctx, model.EntityPatient, id)
	if err != nil {
		return nil, err
	}
	p, err := s.codec.DecodePatient(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.projector.Project(model.EntityPatient, p.Fields(), actor.Roles), nil
}

func (s *Service) UpdatePatient(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePatientRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid update: %w", err)
	}
	target := &model.Subject{EntityType: model.EntityPatient, ID: id, OwnerRecordID: id}
	if err := s.authorize(ctx, actor, model.ActionEdit, model.EntityPatient, target); err != nil {
		return err
	}

	return s.mutatePatient(ctx, actor, id, "update", "demographics updated", func(p *model.Patient) {
		if req.FirstName != nil {
			p.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			p.LastName = *req.LastName
		}
		if req.Email != nil {
			p.Email = *req.Email
		}
		if req.Phone != nil {
			p.Phone = *req.Phone
		}
		if req.DateOfBirth != nil {
			p.DateOfBirth = *req.DateOfBirth
		}
		if req.Status != nil {
			p.Status = *req.Status
		}
	})
}

// UpdatePatientSensitive edits the clinical subset, gated by the
// edit_sensitive action so it stays deniable independently of plain edit.
func (s *Service) UpdatePatientSensitive(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePatientSensitiveRequest) error {
	target := &model.Subject{EntityType: model.EntityPatient, ID: id, OwnerRecordID: id}
	if err := s.authorize(ctx, actor, model.ActionEditSensitive, model.EntityPatient, target); err != nil {
		return err
	}

	return s.mutatePatient(ctx, actor, id, "update", "clinical subset updated", func(p *model.Patient) {
		if req.NationalID != nil {
			p.NationalID = *req.NationalID
		}
		if req.Diagnoses != nil {
			p.Diagnoses = *req.Diagnoses
		}
		if req.Medications != nil {
			p.Medications = *req.Medications
		}
		if req.Notes != nil {
			p.Notes = *req.Notes
		}
	})
}

func (s *Service) mutatePatient(ctx context.Context, actor model.Actor, id uuid.UUID, action, details string, apply func(*model.Patient)) error {
	doc, err := s.docs.Get(ctx, model.EntityPatient, id)
	if err != nil {
		return err
	}
	p, err := s.codec.DecodePatient(ctx, doc)
	if err != nil {
		return err
	}

	apply(p)
	p.UpdatedAt = time.Now().UTC()

	updated, err := s.codec.EncodePatient(ctx, p)
	if err != nil {
		return err
	}
	if err := s.docs.Update(ctx, updated); err != nil {
		return fmt.Errorf("failed to store patient: %w", err)
	}
	return s.auditMutation(ctx, actor, action, model.EntityPatient, id, details)
}

func (s *Service) DeletePatient(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	target := &model.Subject{EntityType: model.EntityPatient, ID: id, OwnerRecordID: id}
	if err := s.authorize(ctx, actor, model.ActionDelete, model.EntityPatient, target); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, model.EntityPatient, id); err != nil {
		return err
	}
	return s.auditMutation(ctx, actor, "delete", model.EntityPatient, id, "patient deleted")
}

// SearchPatientsByLastName runs equality search over deterministic
// ciphertext: the probe is encrypted and compared blob-for-blob, so the
// store never sees the plaintext surname.
func (s *Service) SearchPatientsByLastName(ctx context.Context, actor model.Actor, lastName string) ([]projection.ViewModel, error) {
	if err := s.authorize(ctx, actor, model.ActionSearch, model.EntityPatient, nil); err != nil {
		return nil, err
	}

	blob, err := s.engine.Encrypt(ctx, model.EntityPatient, model.FieldLastName, lastName)
	if err != nil {
		return nil, err
	}
	probe, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search probe: %w", err)
	}

	docs, err := s.docs.FindByField(ctx, model.EntityPatient, model.FieldLastName, probe)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, actor, docs)
}

// FindPatientsByBirthRange runs an interval query on the range-class
// date-of-birth prefix.
func (s *Service) FindPatientsByBirthRange(ctx context.Context, actor model.Actor, from, to time.Time) ([]projection.ViewModel, error) {
	if err := s.authorize(ctx, actor, model.ActionSearch, model.EntityPatient, nil); err != nil {
		return nil, err
	}

	lo, err := s.engine.RangeBound(model.EntityPatient, model.FieldDateOfBirth, from)
	if err != nil {
		return nil, err
	}
	hi, err := s.engine.RangeBound(model.EntityPatient, model.FieldDateOfBirth, to)
	if err != nil {
		return nil, err
	}

	docs, err := s.docs.FindByRange(ctx, model.EntityPatient, model.FieldDateOfBirth, lo, hi)
	if err != nil {
		return nil, err
	}
	return s.projectAll(ctx, actor, docs)
}

func (s *Service) projectAll(ctx context.Context, actor model.Actor, docs []*model.Document) ([]projection.ViewModel, error) {
	views := make([]projection.ViewModel, 0, len(docs))
	for _, doc := range docs {
		p, err := s.codec.DecodePatient(ctx, doc)
		if err != nil {
			// Per-record integrity failure surfaces as an error, not as
			// silently missing data.
			return nil, err
		}
		views = append(views, s.projector.Project(model.EntityPatient, p.Fields(), actor.Roles))
	}
	return views, nil
}

// ImportPatients bulk-creates records under a single import authorization.
func (s *Service) ImportPatients(ctx context.Context, actor model.Actor, reqs []*model.CreatePatientRequest) ([]uuid.UUID, error) {
	if err := s.authorize(ctx, actor, model.ActionImport, model.EntityPatient, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ids := make([]uuid.UUID, 0, len(reqs))
	for i, req := range reqs {
		if err := s.validate.Struct(req); err != nil {
			return nil, fmt.Errorf("invalid patient at index %d: %w", i, err)
		}
		p := &model.Patient{
			ID:          uuid.New(),
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			Phone:       req.Phone,
			DateOfBirth: req.DateOfBirth,
			NationalID:  req.NationalID,
			Diagnoses:   req.Diagnoses,
			Medications: req.Medications,
			Notes:       req.Notes,
			Status:      req.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		doc, err := s.codec.EncodePatient(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := s.docs.Insert(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to store patient at index %d: %w", i, err)
		}
		ids = append(ids, p.ID)
	}

	if err := s.auditMutation(ctx, actor, "import", model.EntityPatient, uuid.Nil,
		fmt.Sprintf("imported %d patients", len(ids))); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) CreateKnowledge(ctx context.Context, actor model.Actor, req *model.CreateKnowledgeRequest) (*model.MedicalKnowledge, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid knowledge entry: %w", err)
	}
	if err := s.authorize(ctx, actor, model.ActionCreate, model.EntityMedicalKnowledge, nil); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	k := &model.MedicalKnowledge{
		ID:        uuid.New(),
		Condition: req.Condition,
		Summary:   req.Summary,
		Treatment: req.Treatment,
		Source:    req.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc, err := s.codec.EncodeKnowledge(ctx, k)
	if err != nil {
		return nil, err
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store knowledge entry: %w", err)
	}
	if err := s.auditMutation(ctx, actor, "create", model.EntityMedicalKnowledge, k.ID, "knowledge entry created"); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *Service) GetKnowledge(ctx context.Context, actor model.Actor, id uuid.UUID) (projection.ViewModel, error) {
	target := &model.Subject{EntityType: model.EntityMedicalKnowledge, ID: id}
	if err := s.authorize(ctx, actor, model.ActionView, model.EntityMedicalKnowledge, target); err != nil {
		return nil, err
	}

	doc, err := s.docs.Get(ctx, model.EntityMedicalKnowledge, id)
	if err != nil {
		return nil, err
	}
	k, err := s.codec.DecodeKnowledge(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.projector.Project(model.EntityMedicalKnowledge, k.Fields(), actor.Roles), nil
}

func (s *Service) SearchKnowledgeByCondition(ctx context.Context, actor model.Actor, condition string) ([]projection.ViewModel, error) {
	if err := s.authorize(ctx, actor, model.ActionSearch, model.EntityMedicalKnowledge, nil); err != nil {
		return nil, err
	}

	blob, err := s.engine.Encrypt(ctx, model.EntityMedicalKnowledge, model.FieldCondition, condition)
	if err != nil {
		return nil, err
	}
	probe, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search probe: %w", err)
	}

	docs, err := s.docs.FindByField(ctx, model.EntityMedicalKnowledge, model.FieldCondition, probe)
	if err != nil {
		return nil, err
	}

	views := make([]projection.ViewModel, 0, len(docs))
	for _, doc := range docs {
		k, err := s.codec.DecodeKnowledge(ctx, doc)
		if err != nil {
			return nil, err
		}
		views = append(views, s.projector.Project(model.EntityMedicalKnowledge, k.Fields(), actor.Roles))
	}
	return views, nil
}

// AuditTrail exposes the compliance query surface, itself authorized and
// audited like any other read.
func (s *Service) AuditTrail(ctx context.Context, actor model.Actor, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	if err := s.authorize(ctx, actor, model.ActionSearch, model.EntityAuditLog, nil); err != nil {
		return nil, err
	}
	return s.auditor.Query(ctx, filter)
}

func (s *Service) AuditStats(ctx context.Context, actor model.Actor) (*model.AuditStats, error) {
	if err := s.authorize(ctx, actor, model.ActionViewAggregateStats, model.EntityAuditLog, nil); err != nil {
		return nil, err
	}
	return s.auditor.Stats(ctx)
}
