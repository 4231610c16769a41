package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
	"collabforge/internal/repo"
)

// ProfileUpdate carries the optional fields of a profile edit; nil means
// leave the current value alone.
type ProfileUpdate struct {
	DisplayName   *string
	AvatarURL     *string
	CollabEnabled *bool
}

// UpdateProfile edits the actor's author record, creating it on first use.
func (e Engine) UpdateProfile(ctx context.Context, actorID string, upd ProfileUpdate) (domain.Author, error) {
	if actorID == "" {
		return domain.Author{}, fault.Invalid("actor_id", "is required")
	}
	a, err := e.Repo.GetAuthor(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		a = domain.Author{
			ID:            actorID,
			DisplayName:   actorID,
			CollabEnabled: true,
			CreatedAt:     e.nowString(),
		}
	} else if err != nil {
		return domain.Author{}, err
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return domain.Author{}, fault.Invalid("display_name", "cannot be empty")
		}
		a.DisplayName = name
	}
	if upd.AvatarURL != nil {
		a.AvatarURL = *upd.AvatarURL
	}
	if upd.CollabEnabled != nil {
		a.CollabEnabled = *upd.CollabEnabled
	}
	if err := e.Repo.UpsertAuthor(ctx, a); err != nil {
		return domain.Author{}, err
	}
	return a, nil
}

// MintAPIKey creates an opaque key for the actor. The plain key is returned
// exactly once; only its hash is stored.
func (e Engine) MintAPIKey(ctx context.Context, actorID, name string) (string, domain.APIKey, error) {
	if actorID == "" {
		return "", domain.APIKey{}, fault.Invalid("actor_id", "is required")
	}
	key := "cf_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	rec := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(key),
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertAPIKey(ctx, rec); err != nil {
		return "", domain.APIKey{}, err
	}
	return key, rec, nil
}
