package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row in audit_logs. Privileged mutations (account
// admin, record deletion, note signing) are recorded with the acting
// user so the trail answers who did what to which record.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends to the audit trail. A nil logger is accepted by
// the services and disables auditing.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns an AuditLogger writing through the pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists one entry. Action, entity and entity id are
// mandatory; an empty At defaults to now.
func (a *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if a == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	var meta []byte
	if entry.Meta != nil {
		encoded, err := json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
		meta = encoded
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, entry.At)
	return err
}
