package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"collabforge/internal/config"
	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
	"collabforge/internal/events"
	"collabforge/internal/history"
	"collabforge/internal/repo"
)

// Engine is the consensus core. Every mutation runs as one transaction:
// read current state, resolve authorization and preconditions against it,
// write conditionally, append the ledger entry, emit feed events, commit.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Events  events.Emitter
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
	}.WithClock(time.Now)
}

// WithClock sets one clock for the engine, the ledger writer and the feed
// emitter, so every row written in a transaction carries the same notion of
// now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.History = history.Writer{Now: now}
	e.Events = events.Emitter{Now: now}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// parties lists both signatories; feed events go to both parties' sessions.
func parties(c domain.Collab) []string {
	return []string{c.Author1ID, c.Author2ID}
}

// mapStale converts the repo's lost-race sentinel into the caller-facing
// taxonomy: the precondition no longer holds, re-read and retry.
func mapStale(err error) error {
	if errors.Is(err, repo.ErrStale) {
		return fault.InvalidState("collab was modified concurrently; refresh and retry")
	}
	return err
}

// CreateCollabOptions are parameters for proposing a new contract.
type CreateCollabOptions struct {
	PartnerID     string
	Title         string
	Description   string
	ProposerShare int
	CoverURL      string
}

// CreateCollab proposes a two-author contract. The proposer becomes author1
// and implicitly confirms; the invited partner must confirm before the
// contract activates.
func (e Engine) CreateCollab(ctx context.Context, proposerID string, opts CreateCollabOptions) (domain.Collab, error) {
	if proposerID == "" {
		return domain.Collab{}, fault.Invalid("proposer", "required")
	}
	if opts.PartnerID == "" {
		return domain.Collab{}, fault.Invalid("partner_id", "required")
	}
	if opts.PartnerID == proposerID {
		return domain.Collab{}, fault.Invalid("partner_id", "cannot collaborate with yourself")
	}
	if opts.Title == "" {
		return domain.Collab{}, fault.Invalid("title", "required")
	}
	share := opts.ProposerShare
	if share == 0 {
		share = e.Config.Defaults.ProposerShare
	}
	if share < 1 || share > 99 {
		return domain.Collab{}, fault.Invalid("proposer_share", "must be between 1 and 99")
	}
	partner, err := e.Repo.GetAuthor(ctx, opts.PartnerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Collab{}, fault.Invalid("partner_id", "unknown author %s", opts.PartnerID)
		}
		return domain.Collab{}, err
	}
	if !partner.CollabEnabled {
		return domain.Collab{}, fault.Forbidden("author %s does not accept collaboration invitations", opts.PartnerID)
	}

	now := e.nowString()
	c := domain.Collab{
		ID:           uuid.New().String(),
		Author1ID:    proposerID,
		Author2ID:    opts.PartnerID,
		CreatedBy:    proposerID,
		Title:        opts.Title,
		Description:  opts.Description,
		CoverURL:     opts.CoverURL,
		Status:       domain.StatusPending,
		Author1Share: share,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collab{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureAuthorTx(ctx, tx, proposerID); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Repo.InsertCollabTx(ctx, tx, c); err != nil {
		return domain.Collab{}, err
	}
	if err := e.History.Append(ctx, tx, c.ID, proposerID, domain.ActionCreated, history.Details{
		"title":      c.Title,
		"partner_id": c.Author2ID,
		"shares":     map[string]int{"author1": c.Author1Share, "author2": c.Author2Share()},
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, "collab.invited", c.ID, proposerID, parties(c), events.Payload{"title": c.Title}); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}

// ConfirmCollab accepts a pending invitation; only the invited partner may.
func (e Engine) ConfirmCollab(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionConfirm, domain.ActionConfirmed, "collab.confirmed",
		func(c *domain.Collab, now string) {
			c.ConfirmedAt = &now
		})
}

// RejectCollab declines a pending invitation. The contract row is removed
// outright; only the ledger entry and the proposer's notification remain.
func (e Engine) RejectCollab(ctx context.Context, collabID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return err
	}
	if _, err := resolveEdge(c, actionReject, actorID); err != nil {
		return err
	}
	if err := e.History.Append(ctx, tx, c.ID, actorID, domain.ActionRejected, history.Details{"title": c.Title}); err != nil {
		return err
	}
	if err := e.Events.Emit(ctx, tx, "collab.rejected", c.ID, actorID, parties(c), nil); err != nil {
		return err
	}
	if err := e.Repo.DeleteCollabTx(ctx, tx, c.ID, domain.StatusPending); err != nil {
		return mapStale(err)
	}
	return tx.Commit()
}

// PauseCollab puts an active contract on hold; either party may.
func (e Engine) PauseCollab(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionPause, domain.ActionPaused, "collab.paused",
		func(c *domain.Collab, now string) {
			actor := actorID
			c.PausedBy = &actor
		})
}

// ResumeCollab lifts a pause; only the party who paused may.
func (e Engine) ResumeCollab(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionResume, domain.ActionResumed, "collab.resumed",
		func(c *domain.Collab, now string) {
			c.PausedBy = nil
		})
}

// RequestDeleteCollab starts two-party deletion from active or paused.
func (e Engine) RequestDeleteCollab(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionRequestDelete, domain.ActionDeleteRequested, "collab.delete_requested",
		func(c *domain.Collab, now string) {
			actor := actorID
			c.DeleteReqBy = &actor
		})
}

// ConfirmDeleteCollab archives the contract; only the counterparty of the
// requester may. Materials stay readable; the contract never leaves archived.
func (e Engine) ConfirmDeleteCollab(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionConfirmDelete, domain.ActionDeleteConfirmed, "collab.delete_confirmed",
		func(c *domain.Collab, now string) {
			c.DeleteReqBy = nil
			c.PausedBy = nil
			c.ArchivedAt = &now
		})
}

// CancelDeleteRequest withdraws one's own delete request, restoring the
// pre-request status (paused if a pause was in effect, active otherwise).
func (e Engine) CancelDeleteRequest(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.transition(ctx, collabID, actorID, actionCancelDelete, domain.ActionDeleteCancelled, "collab.delete_cancelled",
		func(c *domain.Collab, now string) {
			c.DeleteReqBy = nil
			if c.PausedBy != nil {
				c.Status = domain.StatusPaused
			} else {
				c.Status = domain.StatusActive
			}
		})
}

// transition applies one edge of the status table: resolve, mutate, write
// conditionally on the status that was read, ledger, emit, commit.
func (e Engine) transition(ctx context.Context, collabID, actorID, action, historyAction, eventKind string, apply func(c *domain.Collab, now string)) (domain.Collab, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collab{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return domain.Collab{}, err
	}
	ed, err := resolveEdge(c, action, actorID)
	if err != nil {
		return domain.Collab{}, err
	}
	prevStatus := c.Status
	if ed.To != "" {
		c.Status = ed.To
	}
	now := e.nowString()
	apply(&c, now)
	c.UpdatedAt = now
	if err := e.Repo.UpdateCollabTx(ctx, tx, c, prevStatus); err != nil {
		return domain.Collab{}, mapStale(err)
	}
	if err := e.History.Append(ctx, tx, c.ID, actorID, historyAction, history.Details{
		"from_status": prevStatus,
		"to_status":   c.Status,
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, eventKind, c.ID, actorID, parties(c), events.Payload{"status": c.Status}); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}

// UpdateCollabTitle edits descriptive metadata; either party, any status,
// no consensus required. Recorded in the ledger like every other change.
func (e Engine) UpdateCollabTitle(ctx context.Context, collabID, actorID, title string) (domain.Collab, error) {
	if title == "" {
		return domain.Collab{}, fault.Invalid("title", "required")
	}
	return e.updateDescriptive(ctx, collabID, actorID, domain.ActionTitleChanged, "collab.title_changed",
		func(c *domain.Collab) { c.Title = title }, history.Details{"title": title})
}

// UpdateCollabDescription edits descriptive metadata; either party, any status.
func (e Engine) UpdateCollabDescription(ctx context.Context, collabID, actorID, description string) (domain.Collab, error) {
	return e.updateDescriptive(ctx, collabID, actorID, domain.ActionDescriptionChanged, "collab.description_changed",
		func(c *domain.Collab) { c.Description = description }, history.Details{"description": description})
}

func (e Engine) updateDescriptive(ctx context.Context, collabID, actorID, historyAction, eventKind string, apply func(c *domain.Collab), details history.Details) (domain.Collab, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collab{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return domain.Collab{}, err
	}
	if !domain.IsParty(c, actorID) {
		return domain.Collab{}, fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	apply(&c)
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateCollabTx(ctx, tx, c, c.Status); err != nil {
		return domain.Collab{}, mapStale(err)
	}
	if err := e.History.Append(ctx, tx, c.ID, actorID, historyAction, details); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, eventKind, c.ID, actorID, parties(c), nil); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}

// LikeCollab toggles the viewer's like. Engagement lives outside the
// consensus core: any known author may like any visible collab.
func (e Engine) LikeCollab(ctx context.Context, collabID, userID string) (bool, int, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetCollabTx(ctx, tx, collabID); err != nil {
		return false, 0, err
	}
	liked, count, err := e.Repo.ToggleLikeTx(ctx, tx, collabID, userID)
	if err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// CheckCollabLiked reports whether the viewer has liked the collab.
func (e Engine) CheckCollabLiked(ctx context.Context, collabID, userID string) (bool, error) {
	return e.Repo.IsLiked(ctx, collabID, userID)
}
