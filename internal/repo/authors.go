package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"collabforge/internal/domain"
)

func scanAuthor(scan func(dest ...any) error) (domain.Author, error) {
	var a domain.Author
	var avatar sql.NullString
	var enabled int
	err := scan(&a.ID, &a.DisplayName, &avatar, &enabled, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if avatar.Valid {
		a.AvatarURL = avatar.String
	}
	a.CollabEnabled = enabled != 0
	return a, nil
}

func (r Repo) GetAuthor(ctx context.Context, id string) (domain.Author, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,display_name,avatar_url,collab_enabled,created_at FROM authors WHERE id=?`, id)
	return scanAuthor(row.Scan)
}

func (r Repo) UpsertAuthor(ctx context.Context, a domain.Author) error {
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	enabled := 0
	if a.CollabEnabled {
		enabled = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO authors(id,display_name,avatar_url,collab_enabled,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name, avatar_url=excluded.avatar_url, collab_enabled=excluded.collab_enabled`,
		a.ID, a.DisplayName, nullable(a.AvatarURL), enabled, a.CreatedAt)
	return err
}

// EnsureAuthorTx inserts a placeholder author row if one does not exist.
func (r Repo) EnsureAuthorTx(ctx context.Context, tx *sql.Tx, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO authors(id,display_name,collab_enabled,created_at) VALUES (?,?,1,?)`, id, id, now)
	return err
}

// AuthorsByID loads display data for a set of ids, keyed by id.
func (r Repo) AuthorsByID(ctx context.Context, ids []string) (map[string]domain.Author, error) {
	res := map[string]domain.Author{}
	if len(ids) == 0 {
		return res, nil
	}
	seen := map[string]bool{}
	var unique []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(unique)), ",")
	args := make([]any, len(unique))
	for i, id := range unique {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,display_name,avatar_url,collab_enabled,created_at FROM authors WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAuthor(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[a.ID] = a
	}
	return res, rows.Err()
}
