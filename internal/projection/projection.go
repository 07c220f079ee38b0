// Package projection shapes a decrypted entity into the subset a role set
// is permitted to see. Decryption and authorization are deliberately
// decoupled: a caller holding a fully decrypted entity still goes through
// here before anything leaves the core.
package projection

import (
	"github.com/jwalitptl/phi-api/internal/model"
)

// Visibility of one attribute for one role. The zero value is Omitted, so
// any attribute not explicitly listed is absent from output (default-deny).
type Visibility int

const (
	// Omitted removes the key from the output entirely. Distinguished
	// from a null value, which would leak that the field exists.
	Omitted Visibility = iota
	// Masked includes the key with a redacted value.
	Masked
	// Visible includes the decrypted value.
	Visible
)

// ViewModel is the role-filtered output map. For a fixed (entity, role set)
// pair its key set is stable across calls.
type ViewModel map[string]any

// Table is the single source of truth for what each role can see, keyed by
// entity type, then attribute, then role.
type Table map[model.EntityType]map[string]map[model.Role]Visibility

type Projector struct {
	table Table
}

func New(table Table) *Projector {
	return &Projector{table: table}
}

// Project filters an entity's attribute map for a role set. Visibility is
// additive across held roles: the most permissive listed visibility wins,
// and anything unlisted stays omitted.
func (p *Projector) Project(et model.EntityType, fields map[string]any, roles []model.Role) ViewModel {
	out := ViewModel{}
	rules, ok := p.table[et]
	if !ok {
		return out
	}

	for name, value := range fields {
		perRole, ok := rules[name]
		if !ok {
			continue
		}
		best := Omitted
		for _, role := range roles {
			if v := perRole[role]; v > best {
				best = v
			}
		}
		switch best {
		case Visible:
			out[name] = value
		case Masked:
			out[name] = maskValue(name, value)
		}
	}
	return out
}
