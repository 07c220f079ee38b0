// Package memory provides in-memory implementations of the storage
// interfaces for tests and local development. The stores mirror the
// postgres semantics that matter to the core: unique alt-names, exact
// JSON equality for field probes, prefix ordering for range probes, and
// newest-first audit listing.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
)

type VaultStore struct {
	mu   sync.RWMutex
	keys map[string]*model.DataKey

	// FailNext makes the next calls fail with a transient error, for
	// exercising unavailable-vault paths.
	FailNext int
}

func NewVaultStore() *VaultStore {
	return &VaultStore{keys: make(map[string]*model.DataKey)}
}

func (s *VaultStore) GetKey(ctx context.Context, altName string) (*model.DataKey, error) {
	s.mu.Lock()
	if s.FailNext > 0 {
		s.FailNext--
		s.mu.Unlock()
		return nil, errors.Unavailable(context.DeadlineExceeded)
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[altName]
	if !ok {
		return nil, errors.NotFound("data key")
	}
	cp := *key
	return &cp, nil
}

func (s *VaultStore) CreateKey(ctx context.Context, key *model.DataKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext > 0 {
		s.FailNext--
		return errors.Unavailable(context.DeadlineExceeded)
	}
	if _, ok := s.keys[key.AltName]; ok {
		return repository.ErrDuplicateKey
	}
	cp := *key
	s.keys[key.AltName] = &cp
	return nil
}

// Corrupt overwrites the wrapped key bytes under altName, for exercising
// key-corruption paths.
func (s *VaultStore) Corrupt(altName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[altName]; ok {
		key.WrappedKey = []byte("garbage")
	}
}

type docKey struct {
	et model.EntityType
	id uuid.UUID
}

type DocumentStore struct {
	mu   sync.RWMutex
	docs map[docKey]*model.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[docKey]*model.Document)}
}

func (s *DocumentStore) Insert(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneDoc(doc)
	s.docs[docKey{doc.EntityType, doc.ID}] = cp
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, et model.EntityType, id uuid.UUID) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{et, id}]
	if !ok {
		return nil, errors.NotFound(string(et))
	}
	return cloneDoc(doc), nil
}

func (s *DocumentStore) Update(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{doc.EntityType, doc.ID}
	if _, ok := s.docs[k]; !ok {
		return errors.NotFound(string(doc.EntityType))
	}
	s.docs[k] = cloneDoc(doc)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, et model.EntityType, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{et, id}
	if _, ok := s.docs[k]; !ok {
		return errors.NotFound(string(et))
	}
	delete(s.docs, k)
	return nil
}

func (s *DocumentStore) FindByField(ctx context.Context, et model.EntityType, field string, probe json.RawMessage) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Document
	for k, doc := range s.docs {
		if k.et != et {
			continue
		}
		raw, ok := doc.Fields[field]
		if ok && bytes.Equal(raw, probe) {
			out = append(out, cloneDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *DocumentStore) FindByRange(ctx context.Context, et model.EntityType, field, lo, hi string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Document
	for k, doc := range s.docs {
		if k.et != et {
			continue
		}
		raw, ok := doc.Fields[field]
		if !ok {
			continue
		}
		var blob struct {
			RangePrefix string `json:"r"`
		}
		if err := json.Unmarshal(raw, &blob); err != nil || blob.RangePrefix == "" {
			continue
		}
		if blob.RangePrefix >= lo && blob.RangePrefix <= hi {
			out = append(out, cloneDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneDoc(doc *model.Document) *model.Document {
	cp := *doc
	cp.Fields = make(model.DocumentFields, len(doc.Fields))
	for k, v := range doc.Fields {
		cp.Fields[k] = append(json.RawMessage(nil), v...)
	}
	return &cp
}

type AuditStore struct {
	mu      sync.RWMutex
	entries []*model.AuditEntry

	// FailNext makes the next inserts fail with a transient error, for
	// exercising the writer's bounded retry.
	FailNext int
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Insert(ctx context.Context, entry *model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext > 0 {
		s.FailNext--
		return errors.Unavailable(context.DeadlineExceeded)
	}
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *AuditStore) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.AuditEntry
	for _, e := range s.entries {
		if matches(e, filter) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *AuditStore) Count(ctx context.Context, filter model.AuditFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.entries {
		if matches(e, filter) {
			n++
		}
	}
	return n, nil
}

func (s *AuditStore) Stats(ctx context.Context) (*model.AuditStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &model.AuditStats{
		ActionCounts: make(map[string]int),
		EntityCounts: make(map[string]int),
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	for _, e := range s.entries {
		stats.Total++
		if e.CreatedAt.After(cutoff) {
			stats.Last24h++
		}
		if e.Decision == model.DecisionDeny {
			stats.DenyCount++
		}
		stats.ActionCounts[e.Action]++
		stats.EntityCounts[e.EntityType]++
	}
	return stats, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*model.AuditEntry
	var removed int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func matches(e *model.AuditEntry, f model.AuditFilter) bool {
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.ActorID != uuid.Nil && e.ActorID != f.ActorID {
		return false
	}
	return true
}
