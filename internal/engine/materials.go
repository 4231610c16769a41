package engine

import (
	"context"

	"github.com/google/uuid"

	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
	"collabforge/internal/events"
	"collabforge/internal/history"
)

// Material workflow: a contribution added by one party is pending until the
// counterparty approves or rejects it. Approved materials form the public
// gallery; either party may delete regardless of status.

// AddMaterialOptions are parameters for submitting a contribution.
type AddMaterialOptions struct {
	Title       string
	Description string
	PreviewURL  string
}

func (e Engine) AddMaterial(ctx context.Context, collabID, actorID string, opts AddMaterialOptions) (domain.Material, error) {
	if opts.Title == "" {
		return domain.Material{}, fault.Invalid("title", "required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Material{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return domain.Material{}, err
	}
	if !domain.IsParty(c, actorID) {
		return domain.Material{}, fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	if c.Status != domain.StatusActive {
		return domain.Material{}, fault.InvalidState("materials can only be added to an active collab")
	}
	partner := domain.Partner(c, actorID)
	m := domain.Material{
		ID:                  uuid.New().String(),
		CollabID:            collabID,
		OwnerID:             actorID,
		Title:               opts.Title,
		Description:         opts.Description,
		PreviewURL:          opts.PreviewURL,
		Status:              domain.MaterialPending,
		PendingApprovalFrom: &partner,
		CreatedAt:           e.nowString(),
	}
	if err := e.Repo.InsertMaterialTx(ctx, tx, m); err != nil {
		return domain.Material{}, err
	}
	if err := e.History.Append(ctx, tx, collabID, actorID, domain.ActionMaterialAdded, history.Details{
		"material_id": m.ID,
		"title":       m.Title,
	}); err != nil {
		return domain.Material{}, err
	}
	if err := e.Events.Emit(ctx, tx, "material.added", collabID, actorID, parties(c), events.Payload{
		"material_id": m.ID,
		"title":       m.Title,
	}); err != nil {
		return domain.Material{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Material{}, err
	}
	return m, nil
}

// ApproveMaterial confirms a pending material; only the party it awaits.
func (e Engine) ApproveMaterial(ctx context.Context, materialID, actorID string) (domain.Material, error) {
	return e.resolveMaterial(ctx, materialID, actorID, "", true)
}

// RejectMaterial declines a pending material with an optional reason.
func (e Engine) RejectMaterial(ctx context.Context, materialID, actorID, reason string) (domain.Material, error) {
	return e.resolveMaterial(ctx, materialID, actorID, reason, false)
}

func (e Engine) resolveMaterial(ctx context.Context, materialID, actorID, reason string, approve bool) (domain.Material, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Material{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetMaterialTx(ctx, tx, materialID)
	if err != nil {
		return domain.Material{}, err
	}
	c, err := e.Repo.GetCollabTx(ctx, tx, m.CollabID)
	if err != nil {
		return domain.Material{}, err
	}
	if !domain.IsParty(c, actorID) {
		return domain.Material{}, fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	if m.Status != domain.MaterialPending {
		return domain.Material{}, fault.InvalidState("material is already %s", m.Status)
	}
	if m.PendingApprovalFrom == nil || *m.PendingApprovalFrom != actorID {
		return domain.Material{}, fault.Forbidden("material approval is not awaiting actor %s", actorID)
	}

	now := e.nowString()
	action := domain.ActionMaterialRejected
	kind := "material.rejected"
	if approve {
		m.Status = domain.MaterialApproved
		m.ApprovedAt = &now
		action = domain.ActionMaterialApproved
		kind = "material.approved"
	} else {
		m.Status = domain.MaterialRejected
		m.RejectionReason = reason
		m.RejectedAt = &now
	}
	m.PendingApprovalFrom = nil
	if err := e.Repo.UpdateMaterialTx(ctx, tx, m, domain.MaterialPending); err != nil {
		return domain.Material{}, mapStale(err)
	}
	details := history.Details{"material_id": m.ID, "title": m.Title}
	if !approve && reason != "" {
		details["reason"] = reason
	}
	if err := e.History.Append(ctx, tx, m.CollabID, actorID, action, details); err != nil {
		return domain.Material{}, err
	}
	if err := e.Events.Emit(ctx, tx, kind, m.CollabID, actorID, parties(c), events.Payload{
		"material_id": m.ID,
	}); err != nil {
		return domain.Material{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Material{}, err
	}
	return m, nil
}

// DeleteMaterial hard-removes a material; either party may, regardless of
// the material's status. A cover left without any approved material backing
// it is cleared in the same transaction.
func (e Engine) DeleteMaterial(ctx context.Context, materialID, actorID, collabID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCollabTx(ctx, tx, collabID)
	if err != nil {
		return err
	}
	if !domain.IsParty(c, actorID) {
		return fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	m, err := e.Repo.GetMaterialTx(ctx, tx, materialID)
	if err != nil {
		return err
	}
	if m.CollabID != collabID {
		return fault.Invalid("material_id", "material does not belong to this collab")
	}
	if err := e.Repo.DeleteMaterialTx(ctx, tx, materialID, collabID); err != nil {
		return err
	}
	if c.CoverURL != "" && c.CoverURL == m.PreviewURL {
		// Another approved material may carry the same preview URL and
		// still back the cover.
		remaining, err := e.Repo.CountApprovedWithPreviewTx(ctx, tx, collabID, c.CoverURL)
		if err != nil {
			return err
		}
		if remaining == 0 {
			c.CoverURL = ""
			c.UpdatedAt = e.nowString()
			if err := e.Repo.UpdateCollabTx(ctx, tx, c, c.Status); err != nil {
				return mapStale(err)
			}
		}
	}
	if err := e.History.Append(ctx, tx, collabID, actorID, domain.ActionMaterialDeleted, history.Details{
		"material_id": materialID,
		"title":       m.Title,
	}); err != nil {
		return err
	}
	if err := e.Events.Emit(ctx, tx, "material.deleted", collabID, actorID, parties(c), events.Payload{
		"material_id": materialID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetMaterialAsCover promotes an approved material's preview to the
// contract's cover. Non-approved materials are refused.
func (e Engine) SetMaterialAsCover(ctx context.Context, materialID, actorID, collabID string) (domain.Collab, error) {
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
	m, err := e.Repo.GetMaterialTx(ctx, tx, materialID)
	if err != nil {
		return domain.Collab{}, err
	}
	if m.CollabID != collabID {
		return domain.Collab{}, fault.Invalid("material_id", "material does not belong to this collab")
	}
	if m.Status != domain.MaterialApproved {
		return domain.Collab{}, fault.InvalidState("only approved materials can become the cover")
	}
	if m.PreviewURL == "" {
		return domain.Collab{}, fault.Invalid("material_id", "material has no preview image")
	}
	c.CoverURL = m.PreviewURL
	c.UpdatedAt = e.nowString()
	if err := e.Repo.UpdateCollabTx(ctx, tx, c, c.Status); err != nil {
		return domain.Collab{}, mapStale(err)
	}
	if err := e.History.Append(ctx, tx, collabID, actorID, domain.ActionCoverChanged, history.Details{
		"material_id": materialID,
	}); err != nil {
		return domain.Collab{}, err
	}
	if err := e.Events.Emit(ctx, tx, "collab.cover_changed", collabID, actorID, parties(c), nil); err != nil {
		return domain.Collab{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collab{}, err
	}
	return c, nil
}
