package audit

import "context"

// Logger is the audit log collaborator. Log joins the caller's transaction
// when one is present in ctx.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
	ListByEntity(ctx context.Context, entityType string, entityID string) ([]Entry, error)
}
