// Package audit appends immutable records of policy decisions and data
// mutations. Appends are fail-closed: when the store stays unreachable
// past bounded retry, the operation being audited must fail too.
package audit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/logger"
	"github.com/jwalitptl/phi-api/pkg/metrics"
)

// MaxPageSize caps audit query results for the compliance surface.
const MaxPageSize = 500

type Config struct {
	// MaxRetries bounds append retry on transient store failure.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Writer struct {
	store   repository.AuditStore
	cfg     Config
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewWriter(store repository.AuditStore, cfg Config, log *logger.Logger, m *metrics.Metrics) *Writer {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	return &Writer{
		store:   store,
		cfg:     cfg,
		log:     log.WithComponent("audit"),
		metrics: m,
	}
}

// Append writes one entry, retrying transient store failures with bounded
// exponential backoff. On exhaustion it returns AuditWriteFailure so the
// triggering operation fails rather than proceeding unaudited.
func (w *Writer) Append(ctx context.Context, entry *model.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	attempt := 0
	op := func() error {
		attempt++
		err := w.store.Insert(ctx, entry)
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if w.metrics != nil {
			w.metrics.AuditWriteRetries.Inc()
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.InitialInterval
	bo.MaxInterval = w.cfg.MaxInterval

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, w.cfg.MaxRetries), ctx))
	if err != nil {
		if w.metrics != nil {
			w.metrics.AuditWriteFailed.Inc()
		}
		w.log.Error(err, "audit append failed, failing closed",
			"action", entry.Action, "entity_type", entry.EntityType, "attempts", attempt)
		return errors.AuditWriteFailure(err)
	}

	if w.metrics != nil {
		w.metrics.AuditWrites.Inc()
		w.metrics.AuditWriteLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Query returns entries matching the filter, newest first, capped at
// MaxPageSize.
func (w *Writer) Query(ctx context.Context, filter model.AuditFilter) ([]*model.AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	return w.store.List(ctx, filter)
}

// Count returns the number of entries matching the filter.
func (w *Writer) Count(ctx context.Context, filter model.AuditFilter) (int64, error) {
	return w.store.Count(ctx, filter)
}

// Stats assembles the compliance dashboard aggregates, including the
// rolling last-24h count.
func (w *Writer) Stats(ctx context.Context) (*model.AuditStats, error) {
	return w.store.Stats(ctx)
}
