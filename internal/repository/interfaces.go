// Package repository declares the storage interfaces the core depends on.
// Implementations live in postgres (production) and memory (tests). All
// dependencies are injected by constructor; nothing here is instantiated
// inline by the components that use it.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/model"
)

// ErrDuplicateKey is returned by VaultStore.CreateKey when the alt-name is
// already taken. The key vault client resolves the create race with it.
var ErrDuplicateKey = errors.New("key alt-name already exists")

// VaultStore persists wrapped data-encryption keys.
type VaultStore interface {
	// GetKey returns the key stored under altName, or pkg/errors.ErrNotFound.
	GetKey(ctx context.Context, altName string) (*model.DataKey, error)
	// CreateKey inserts a new wrapped key; ErrDuplicateKey if the alt-name
	// is taken (unique constraint).
	CreateKey(ctx context.Context, key *model.DataKey) error
}

// DocumentStore persists encrypted documents.
type DocumentStore interface {
	Insert(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, et model.EntityType, id uuid.UUID) (*model.Document, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, et model.EntityType, id uuid.UUID) error
	// FindByField matches a field's stored JSON exactly. With deterministic
	// ciphertext as the probe this is equality search over encrypted data.
	FindByField(ctx context.Context, et model.EntityType, field string, probe json.RawMessage) ([]*model.Document, error)
	// FindByRange matches documents whose range prefix for the field lies
	// in [lo, hi].
	FindByRange(ctx context.Context, et model.EntityType, field, lo, hi string) ([]*model.Document, error)
}

// AuditStore persists audit entries. Insert is the only write; entries are
// immutable. DeleteBefore exists solely for the retention worker.
type AuditStore interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error)
	Count(ctx context.Context, filter model.AuditFilter) (int64, error)
	Stats(ctx context.Context) (*model.AuditStats, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
