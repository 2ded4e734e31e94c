package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/fleetdesk/payroll-backend-go/internal/pkg/database"
)

type auditRepository struct {
	db *database.DB
}

// NewAuditLogger stores audit entries in audit_history. Log joins the
// caller's transaction.
func NewAuditLogger(db *database.DB) audit.Logger {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry audit.Entry) error {
	q := GetQuerier(ctx, r.db)

	changes := entry.Changes
	if changes == nil {
		changes = []audit.FieldChange{}
	}
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("encode audit changes: %w", err)
	}

	query := `
		INSERT INTO audit_history (entity_type, entity_id, action, changes, actor_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = q.Exec(ctx, query,
		entry.EntityType, entry.EntityID, entry.Action, changesJSON, entry.ActorID, entry.Message, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType string, entityID string) ([]audit.Entry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, entity_type, entity_id, action, changes, actor_id, message, created_at
		FROM audit_history
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e          audit.Entry
			changesRaw []byte
		)
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &changesRaw, &e.ActorID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal(changesRaw, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode audit changes: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
