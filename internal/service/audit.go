package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AuditService writes immutable audit trail entries. Writes happen inside
// the caller's transaction so the audit row commits with the change it
// documents.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, tx pgx.Tx, entityType, entityID string, actorID *int64, action, prevState, nextState string, metadata []byte) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entityType, entityID, actorID, action, textParam(prevState), textParam(nextState), metadata); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
