package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditStore {
	return &auditRepository{base}
}

// Insert appends one entry. There is deliberately no update or delete by
// id: the table is append-only apart from retention cleanup.
func (r *auditRepository) Insert(ctx context.Context, entry *model.AuditEntry) error {
	query := `
        INSERT INTO audit_entries (
            id, actor_id, action, entity_type, entity_id,
            decision, details, metadata, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Decision,
		entry.Details,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return errors.Unavailable(fmt.Errorf("failed to insert audit entry: %w", err))
	}
	return nil
}

func buildFilter(filter model.AuditFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	var args []interface{}

	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		where += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.ActorID != uuid.Nil {
		args = append(args, filter.ActorID)
		where += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}

	return where, args
}

func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	where, args := buildFilter(filter)

	args = append(args, filter.Limit)
	query := `SELECT * FROM audit_entries` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var entries []*model.AuditEntry
	if err := r.GetDB().SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to list audit entries: %w", err))
	}
	return entries, nil
}

func (r *auditRepository) Count(ctx context.Context, filter model.AuditFilter) (int64, error) {
	where, args := buildFilter(filter)

	var count int64
	query := `SELECT COUNT(*) FROM audit_entries` + where
	if err := r.GetDB().GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Unavailable(fmt.Errorf("failed to count audit entries: %w", err))
	}
	return count, nil
}

func (r *auditRepository) Stats(ctx context.Context) (*model.AuditStats, error) {
	stats := &model.AuditStats{
		ActionCounts: make(map[string]int),
		EntityCounts: make(map[string]int),
	}

	if err := r.GetDB().GetContext(ctx, &stats.Total,
		`SELECT COUNT(*) FROM audit_entries`); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to get total count: %w", err))
	}

	if err := r.GetDB().GetContext(ctx, &stats.Last24h,
		`SELECT COUNT(*) FROM audit_entries WHERE created_at >= $1`,
		time.Now().UTC().Add(-24*time.Hour)); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to get rolling count: %w", err))
	}

	if err := r.GetDB().GetContext(ctx, &stats.DenyCount,
		`SELECT COUNT(*) FROM audit_entries WHERE decision = $1`,
		model.DecisionDeny); err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to get deny count: %w", err))
	}

	rows, err := r.GetDB().QueryContext(ctx,
		`SELECT action, COUNT(*) FROM audit_entries GROUP BY action`)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to get action counts: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		stats.ActionCounts[action] = count
	}

	rows, err = r.GetDB().QueryContext(ctx,
		`SELECT entity_type, COUNT(*) FROM audit_entries GROUP BY entity_type`)
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("failed to get entity counts: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var entity string
		var count int
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, err
		}
		stats.EntityCounts[entity] = count
	}

	return stats, nil
}

// DeleteBefore exists solely for the retention worker.
func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.GetDB().ExecContext(ctx,
		`DELETE FROM audit_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.Unavailable(fmt.Errorf("failed to clean up audit entries: %w", err))
	}
	return res.RowsAffected()
}
