package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Writer appends ledger rows inside the caller's transaction. Exactly one
// entry per accepted mutation; entries are never edited or deleted.
type Writer struct {
	Now func() time.Time
}

type Details map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, collabID, actorID, actionType string, details Details) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if details == nil {
		details = Details{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal history details: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO collab_history(id,collab_id,actor_id,action_type,details_json,created_at) VALUES (?,?,?,?,?,?)`,
		uuid.New().String(), collabID, actorID, actionType, string(data), ts)
	return err
}
