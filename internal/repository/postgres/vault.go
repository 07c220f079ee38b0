package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
)

type vaultRepository struct {
	BaseRepository
}

func NewVaultRepository(base BaseRepository) repository.VaultStore {
	return &vaultRepository{base}
}

func (r *vaultRepository) GetKey(ctx context.Context, altName string) (*model.DataKey, error) {
	query := `
        SELECT id, alt_name, wrapped_key, created_at
        FROM data_keys
        WHERE alt_name = $1
    `

	var key model.DataKey
	if err := r.GetDB().GetContext(ctx, &key, query, altName); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("data key")
		}
		return nil, errors.Unavailable(fmt.Errorf("failed to get data key: %w", err))
	}

	return &key, nil
}

func (r *vaultRepository) CreateKey(ctx context.Context, key *model.DataKey) error {
	query := `
        INSERT INTO data_keys (id, alt_name, wrapped_key, created_at)
        VALUES ($1, $2, $3, $4)
    `

	_, err := r.GetDB().ExecContext(ctx, query, key.ID, key.AltName, key.WrappedKey, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return errors.Unavailable(fmt.Errorf("failed to create data key: %w", err))
	}

	return nil
}
