package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/logger"
)

// AuditRetentionWorker deletes audit entries past the compliance retention
// window. This is the only sanctioned deletion path for the audit trail;
// the writer itself stays append-only.
type AuditRetentionWorker struct {
	store           repository.AuditStore
	retention       time.Duration
	cleanupInterval time.Duration
	log             *logger.Logger
}

func NewAuditRetentionWorker(store repository.AuditStore, retention, cleanupInterval time.Duration, log *logger.Logger) *AuditRetentionWorker {
	return &AuditRetentionWorker{
		store:           store,
		retention:       retention,
		cleanupInterval: cleanupInterval,
		log:             log.WithComponent("audit_retention"),
	}
}

func (w *AuditRetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.log.Error(err, "audit retention cleanup failed")
			}
		}
	}
}

func (w *AuditRetentionWorker) cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.retention)

	rows, err := w.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to clean up audit entries: %w", err)
	}

	w.log.Info("audit retention cleanup complete", "removed", rows, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}
