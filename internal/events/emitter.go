package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Emitter writes notification feed rows in the caller's transaction, one per
// affected user. The core only records what changed and who should hear about
// it; delivery (webhooks, toasts, sound) belongs to subscribers.
type Emitter struct {
	Now func() time.Time
}

type Payload map[string]any

// Emit appends one feed row per user id in `users`.
func (e Emitter) Emit(ctx context.Context, tx *sql.Tx, kind, collabID, actorID string, users []string, payload Payload) error {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	for _, userID := range users {
		if userID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO events(ts,kind,collab_id,user_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
			ts, kind, collabID, userID, actorID, string(data)); err != nil {
			return err
		}
	}
	return nil
}
