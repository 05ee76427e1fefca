package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"teahaven/internal/model"
	"teahaven/internal/repository"

	"github.com/rs/zerolog/log"
)

// AuditWorker persists audit events dequeued by the pool. It is the only
// writer of the audit_events table.
type AuditWorker struct {
	repo repository.AuditRepository
}

func NewAuditWorker(repo repository.AuditRepository) *AuditWorker {
	return &AuditWorker{repo: repo}
}

func (w *AuditWorker) Handle(ctx context.Context, payload json.RawMessage) error {
	var job AuditJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("audit: unmarshal payload: %w", err)
	}

	var detail []byte
	if job.Detail != nil {
		detail, _ = json.Marshal(job.Detail)
	}

	event := &model.AuditEvent{
		EventType:  job.EventType,
		EntityType: job.EntityType,
		EntityID:   job.EntityID,
		ActorID:    job.ActorID,
		Payload:    detail,
		CreatedAt:  job.OccurredAt,
	}
	if err := w.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("audit: persist event: %w", err)
	}

	log.Debug().
		Str("event_type", job.EventType).
		Str("entity_id", job.EntityID.String()).
		Msg("audit event persisted")
	return nil
}
