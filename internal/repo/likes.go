package repo

import (
	"context"
	"database/sql"
	"time"
)

// ToggleLikeTx inserts or removes a like and keeps likes_count in step,
// all inside the caller's transaction. Returns the resulting liked flag
// and counter.
func (r Repo) ToggleLikeTx(ctx context.Context, tx *sql.Tx, collabID, userID string) (bool, int, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM collab_likes WHERE collab_id=? AND user_id=?`, collabID, userID).Scan(&one)
	liked := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, 0, err
	}
	if liked {
		if _, err := tx.ExecContext(ctx, `DELETE FROM collab_likes WHERE collab_id=? AND user_id=?`, collabID, userID); err != nil {
			return false, 0, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE collabs SET likes_count=MAX(likes_count-1,0) WHERE id=?`, collabID); err != nil {
			return false, 0, err
		}
	} else {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `INSERT INTO collab_likes(collab_id,user_id,created_at) VALUES (?,?,?)`, collabID, userID, now); err != nil {
			return false, 0, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE collabs SET likes_count=likes_count+1 WHERE id=?`, collabID); err != nil {
			return false, 0, err
		}
	}
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT likes_count FROM collabs WHERE id=?`, collabID).Scan(&count); err != nil {
		return false, 0, err
	}
	return !liked, count, nil
}

func (r Repo) IsLiked(ctx context.Context, collabID, userID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM collab_likes WHERE collab_id=? AND user_id=?`, collabID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
