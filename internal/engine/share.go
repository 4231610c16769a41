package engine

import (
	"context"

	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
	"collabforge/internal/events"
	"collabforge/internal/history"
)

// Share negotiation: a two-phase commit over the revenue split. One party
// proposes a new split for themselves; the counterparty confirms or rejects.
// At most one proposal is outstanding per contract, and the proposer can
// never resolve their own proposal.

// RequestShareChange proposes a new share for the actor on an active collab.
func (e Engine) RequestShareChange(ctx context.Context, collabID, actorID string, newShareForActor int) (domain.Collab, error) {
	if newShareForActor < 1 || newShareForActor > 99 {
		return domain.Collab{}, fault.Invalid("share", "must be between 1 and 99")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collab{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return domain.Collab{}, err
	}
	role := domain.Role(c, actorID)
	if role == domain.RoleNone {
		return domain.Collab{}, fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	if c.Status != domain.StatusActive {
		return domain.Collab{}, fault.InvalidState("shares can only be renegotiated on an active collab")
	}
	if c.Proposal != nil {
		return domain.Collab{}, fault.InvalidState("a share change proposal is already outstanding")
	}

	newAuthor1 := newShareForActor
	if role == domain.RoleAuthor2 {
		newAuthor1 = 100 - newShareForActor
	}
	if newAuthor1 == c.Author1Share {
		return domain.Collab{}, fault.Invalid("share", "proposed split equals the current split")
	}
	c.Proposal = &domain.ShareProposal{
		Author1Share: newAuthor1,
		Author2Share: 100 - newAuthor1,
		RequestedBy:  actorID,
	}
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateCollabTx(ctx, tx, c, domain.StatusActive); err != nil {
		return domain.Collab{}, mapStale(err)
	}
	if err := e.History.Append(ctx, tx, c.ID, actorID, domain.ActionShareChangeRequested, history.Details{
		"old_shares": map[string]int{"author1": c.Author1Share, "author2": 100 - c.Author1Share},
		"new_shares": map[string]int{"author1": c.Proposal.Author1Share, "author2": c.Proposal.Author2Share},
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, "share.requested", c.ID, actorID, parties(c), events.Payload{
		"author1_share": c.Proposal.Author1Share,
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}

// ConfirmShareChange commits the outstanding proposal; counterparty only.
func (e Engine) ConfirmShareChange(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.resolveShareChange(ctx, collabID, actorID, true)
}

// RejectShareChange discards the outstanding proposal; counterparty only.
func (e Engine) RejectShareChange(ctx context.Context, collabID, actorID string) (domain.Collab, error) {
	return e.resolveShareChange(ctx, collabID, actorID, false)
}

func (e Engine) resolveShareChange(ctx context.Context, collabID, actorID string, accept bool) (domain.Collab, error) {
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
	if c.Proposal == nil {
		return domain.Collab{}, fault.InvalidState("no share change proposal is outstanding")
	}
	if c.Proposal.RequestedBy == actorID {
		return domain.Collab{}, fault.Forbidden("the proposer cannot resolve their own share change")
	}

	oldShare := c.Author1Share
	proposal := *c.Proposal
	action := domain.ActionShareChangeRejected
	kind := "share.rejected"
	if accept {
		c.Author1Share = proposal.Author1Share
		action = domain.ActionShareChangeConfirmed
		kind = "share.confirmed"
	}
	c.Proposal = nil
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateCollabTx(ctx, tx, c, c.Status); err != nil {
		return domain.Collab{}, mapStale(err)
	}
	if err := e.History.Append(ctx, tx, c.ID, actorID, action, history.Details{
		"old_shares": map[string]int{"author1": oldShare, "author2": 100 - oldShare},
		"new_shares": map[string]int{"author1": c.Author1Share, "author2": 100 - c.Author1Share},
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, kind, c.ID, actorID, parties(c), events.Payload{
		"author1_share": c.Author1Share,
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}
