package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"collabforge/internal/config"
	"collabforge/internal/db"
	"collabforge/internal/domain"
	"collabforge/internal/engine"
	"collabforge/internal/migrate"
	"collabforge/internal/repo"
)

// Runtime bundles everything a command or server needs after bootstrap.
type Runtime struct {
	DB     *sql.DB
	Repo   repo.Repo
	Engine engine.Engine
	Config *config.Config
}

func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}

// Bootstrap opens the workspace database, runs migrations, and resolves
// config. A missing collabforge.yml is seeded with defaults on first run.
func Bootstrap(ctx context.Context, workspace string) (*Runtime, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	cfg, err := resolveConfig(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Runtime{
		DB:     conn,
		Repo:   repo.Repo{DB: conn},
		Engine: engine.New(conn, cfg),
		Config: cfg,
	}, nil
}

func resolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	id := workspaceID(workspace)
	if err := os.WriteFile(config.Path(workspace), []byte(config.GenerateDefault(id)), 0o644); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return config.Default(id), nil
}

func workspaceID(workspace string) string {
	abs, err := filepath.Abs(workspace)
	if err != nil || filepath.Base(abs) == string(filepath.Separator) {
		return "collabforge"
	}
	return filepath.Base(abs)
}

// EnsureActor guarantees an author row exists for the acting user so that
// foreign-key and directory lookups succeed on first contact.
func (rt *Runtime) EnsureActor(ctx context.Context, actorID string) error {
	if actorID == "" {
		return fmt.Errorf("actor id is required")
	}
	if _, err := rt.Repo.GetAuthor(ctx, actorID); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return rt.Repo.UpsertAuthor(ctx, domain.Author{
		ID:            actorID,
		DisplayName:   actorID,
		CollabEnabled: true,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}
