package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
)

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentStore {
	return &documentRepository{base}
}

func (r *documentRepository) Insert(ctx context.Context, doc *model.Document) error {
	query := `
        INSERT INTO documents (id, entity_type, fields, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		doc.ID, doc.EntityType, doc.Fields, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return errors.Unavailable(fmt.Errorf("failed to insert document: %w", err))
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, et model.EntityType, id uuid.UUID) (*model.Document, error) {
	query := `
        SELECT id, entity_type, fields, created_at, updated_at
        FROM documents
        WHERE entity_type = $1 AND id = $2
    `

	var doc model.Document
	if err := r.GetDB().GetContext(ctx, &doc, query, et, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound(string(et))
		}
		return nil, errors.Unavailable(fmt.Errorf("failed to get document: %w", err))
	}
	return &doc, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document) error {
	query := `
        UPDATE documents
        SET fields = $3, updated_at = $4
        WHERE entity_type = $1 AND id = $2
    `

	res, err := r.GetDB().ExecContext(ctx, query,
		doc.EntityType, doc.ID, doc.Fields, doc.UpdatedAt)
	if err != nil {
		return errors.Unavailable(fmt.Errorf("failed to update document: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(string(doc.EntityType))
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, et model.EntityType, id uuid.UUID) error {
	res, err := r.GetDB().ExecContext(ctx,
		`DELETE FROM documents WHERE entity_type = $1 AND id = $2`, et, id)
	if err != nil {
		return errors.Unavailable(fmt.Errorf("failed to delete document: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(string(et))
	}
	return nil
}

func (r *documentRepository) FindByField(ctx context.Context, et model.EntityType, field string, probe json.RawMessage) ([]*model.Document, error) {
	query := `
        SELECT id, entity_type, fields, created_at, updated_at
        FROM documents
        WHERE entity_type = $1 AND fields->$2 = $3::jsonb
        ORDER BY created_at DESC
    `

	var docs []*model.Document
	if err := r.GetDB().SelectContext(ctx, &docs, query, et, field, []byte(probe)); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to find documents: %w", err))
	}
	return docs, nil
}

func (r *documentRepository) FindByRange(ctx context.Context, et model.EntityType, field, lo, hi string) ([]*model.Document, error) {
	query := `
        SELECT id, entity_type, fields, created_at, updated_at
        FROM documents
        WHERE entity_type = $1
          AND fields->$2->>'r' >= $3
          AND fields->$2->>'r' <= $4
        ORDER BY fields->$2->>'r'
    `

	var docs []*model.Document
	if err := r.GetDB().SelectContext(ctx, &docs, query, et, field, lo, hi); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to find documents by range: %w", err))
	}
	return docs, nil
}
