// Package policy decides, per (role set, action, target) triple, whether
// an operation is allowed. Every evaluation, grant or deny, produces
// exactly one audit entry before the decision is returned.
package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/audit"
	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/pkg/logger"
	"github.com/jwalitptl/phi-api/pkg/metrics"
)

// Effect is the outcome of an evaluation. Abstain means no applicable
// rule; callers must treat it as deny unless a chained evaluator grants.
// It stays distinct internally because an abstain usually points at a
// missing rule-table entry.
type Effect string

const (
	EffectGrant   Effect = "grant"
	EffectDeny    Effect = "deny"
	EffectAbstain Effect = "abstain"
)

// Decision details, recorded in the audit trail and used by callers to
// distinguish deny variants.
const (
	DetailUnauthenticated = "unauthenticated"
	DetailMissingSubject  = "missing_subject"
	DetailExplicitDeny    = "explicit_deny"
	DetailNoRule          = "no_applicable_rule"
	DetailNotOwner        = "not_record_owner"
	DetailGranted         = "granted"
)

type Decision struct {
	Effect Effect
	Detail string
}

// Allowed folds Abstain into deny, which is how every caller must treat it.
func (d Decision) Allowed() bool {
	return d.Effect == EffectGrant
}

// actions that are scoped to a specific record and require a target.
var targetScoped = map[model.Action]bool{
	model.ActionView:          true,
	model.ActionEdit:          true,
	model.ActionEditSensitive: true,
	model.ActionDelete:        true,
	model.ActionViewOwnRecord: true,
}

// Evaluator is the rule-table state machine. Stateless per call; safe for
// concurrent use.
type Evaluator struct {
	rules   RuleTable
	auditor *audit.Writer
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewEvaluator(rules RuleTable, auditor *audit.Writer, log *logger.Logger, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		rules:   rules,
		auditor: auditor,
		log:     log.WithComponent("policy"),
		metrics: m,
	}
}

// Evaluate decides whether actor may perform action against the entity
// type, optionally scoped to a target instance. Grants are the union of
// the actor's role grants; an explicit deny held by any role overrides
// every grant. If the audit append fails, the evaluation fails with it.
func (e *Evaluator) Evaluate(ctx context.Context, actor model.Actor, action model.Action, et model.EntityType, target *model.Subject) (Decision, error) {
	start := time.Now()
	decision := e.decide(actor, action, et, target)

	entry := &model.AuditEntry{
		ActorID:    actor.ID,
		Action:     string(action),
		EntityType: string(et),
		Decision:   model.DecisionDeny,
		Details:    decision.Detail,
	}
	if target != nil {
		entry.EntityID = target.ID
	}
	if decision.Effect == EffectGrant {
		entry.Decision = model.DecisionGrant
	}

	// Audit-then-respond: the entry must exist before the caller observes
	// the result.
	if err := e.auditor.Append(ctx, entry); err != nil {
		return Decision{}, err
	}

	if e.metrics != nil {
		e.metrics.PolicyDecisions.WithLabelValues(string(decision.Effect)).Inc()
		e.metrics.PolicyLatency.Observe(time.Since(start).Seconds())
	}
	if decision.Effect != EffectGrant {
		e.log.Debug("access denied",
			"actor", actor.ID.String(), "action", string(action),
			"entity_type", string(et), "detail", decision.Detail)
	}
	return decision, nil
}

func (e *Evaluator) decide(actor model.Actor, action model.Action, et model.EntityType, target *model.Subject) Decision {
	// Unauthenticated callers are denied outright, no rule lookup.
	if len(actor.Roles) == 0 {
		return Decision{Effect: EffectDeny, Detail: DetailUnauthenticated}
	}

	if targetScoped[action] && target == nil {
		return Decision{Effect: EffectDeny, Detail: DetailMissingSubject}
	}

	roleRules := e.rules[et]
	var anyGrant, anyDeny bool
	for _, role := range actor.Roles {
		effect, ok := roleRules[role][action]
		if !ok {
			continue
		}
		switch effect {
		case RuleAllow:
			anyGrant = true
		case RuleDeny:
			anyDeny = true
		}
	}

	switch {
	case anyDeny:
		// Explicit deny wins over any other held role's grant.
		return Decision{Effect: EffectDeny, Detail: DetailExplicitDeny}
	case !anyGrant:
		return Decision{Effect: EffectAbstain, Detail: DetailNoRule}
	}

	if action == model.ActionViewOwnRecord {
		if actor.PatientRecordID == uuid.Nil || target.OwnerRecordID != actor.PatientRecordID {
			return Decision{Effect: EffectDeny, Detail: DetailNotOwner}
		}
	}

	return Decision{Effect: EffectGrant, Detail: DetailGranted}
}
