package memory

import (
	"context"

	"github.com/fleetdesk/payroll-backend-go/internal/domain/audit"
	"github.com/google/uuid"
)

type auditLoggerImpl struct {
	store *Store
}

func NewAuditLogger(store *Store) audit.Logger {
	return &auditLoggerImpl{store: store}
}

func (l *auditLoggerImpl) Log(ctx context.Context, entry audit.Entry) error {
	return l.store.write(ctx, func() error {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.Changes = append([]audit.FieldChange(nil), entry.Changes...)
		l.store.audit = append(l.store.audit, entry)
		return nil
	})
}

func (l *auditLoggerImpl) ListByEntity(ctx context.Context, entityType string, entityID string) ([]audit.Entry, error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()

	out := make([]audit.Entry, 0)
	for _, e := range l.store.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
