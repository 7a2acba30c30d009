package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// AuditEntry records an operator action (manual end, warn, ban, ...).
type AuditEntry struct {
	At       time.Time `json:"at"`
	ActorID  int64     `json:"actor_id"`
	ChatID   int64     `json:"chat_id,omitempty"`
	Action   string    `json:"action"`
	Target   string    `json:"target,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Error    string    `json:"error,omitempty"`
	Duration int64     `json:"took_ms,omitempty"`
}

// AppendAudit stores e in the audit collection under a time-ordered key.
func AppendAudit(ctx context.Context, st Store, e AuditEntry) error {
	if st == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := strconv.FormatInt(e.At.UnixNano(), 10) + "-" + strconv.FormatInt(e.ActorID, 10)
	return st.Put(ctx, Audit, key, b)
}
