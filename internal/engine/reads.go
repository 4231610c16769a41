package engine

import (
	"context"

	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
	"collabforge/internal/repo"
)

// CollabView is a contract as seen by one viewer: the record itself plus
// the viewer-relative fields the UI needs to render whose turn it is.
type CollabView struct {
	domain.Collab
	ViewerRole     string   `json:"viewer_role,omitempty"`
	ViewerShare    int      `json:"viewer_share,omitempty"`
	PendingActions []string `json:"pending_actions,omitempty"`
	Liked          bool     `json:"liked,omitempty"`
}

// MaterialBoard partitions a contract's materials by what the viewer should
// do with them.
type MaterialBoard struct {
	Gallery         []domain.Material `json:"gallery"`
	AwaitingYou     []domain.Material `json:"awaiting_you"`
	AwaitingPartner []domain.Material `json:"awaiting_partner"`
	Rejected        []domain.Material `json:"rejected"`
}

// GetCollabView loads one contract for a party. Non-parties get Forbidden
// regardless of whether the id exists, same as any other party-only read.
func (e Engine) GetCollabView(ctx context.Context, collabID, viewerID string) (CollabView, error) {
	c, err := e.Repo.GetCollab(ctx, collabID)
	if err != nil {
		return CollabView{}, err
	}
	if !domain.IsParty(c, viewerID) {
		return CollabView{}, fault.Forbidden("only a contract party can view it")
	}
	if err := e.attachAuthors(ctx, []*domain.Collab{&c}); err != nil {
		return CollabView{}, err
	}
	liked, err := e.Repo.IsLiked(ctx, c.ID, viewerID)
	if err != nil {
		return CollabView{}, err
	}
	return CollabView{
		Collab:         c,
		ViewerRole:     domain.Role(c, viewerID),
		ViewerShare:    domain.Share(c, viewerID),
		PendingActions: domain.PendingActions(c, viewerID),
		Liked:          liked,
	}, nil
}

// ListUserCollabs returns every contract the user is party to, newest
// activity first, each annotated with the user's outstanding actions.
func (e Engine) ListUserCollabs(ctx context.Context, userID string) ([]CollabView, error) {
	collabs, err := e.Repo.ListUserCollabs(ctx, userID)
	if err != nil {
		return nil, err
	}
	refs := make([]*domain.Collab, len(collabs))
	for i := range collabs {
		refs[i] = &collabs[i]
	}
	if err := e.attachAuthors(ctx, refs); err != nil {
		return nil, err
	}
	views := make([]CollabView, 0, len(collabs))
	for _, c := range collabs {
		liked, err := e.Repo.IsLiked(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, CollabView{
			Collab:         c,
			ViewerRole:     domain.Role(c, userID),
			ViewerShare:    domain.Share(c, userID),
			PendingActions: domain.PendingActions(c, userID),
			Liked:          liked,
		})
	}
	return views, nil
}

// ListPublicCollabs returns the public gallery: active contracts only,
// authors attached, capped by the configured page size.
func (e Engine) ListPublicCollabs(ctx context.Context) ([]domain.Collab, error) {
	limit := 20
	if e.Config != nil && e.Config.Defaults.PublicLimit > 0 {
		limit = e.Config.Defaults.PublicLimit
	}
	collabs, err := e.Repo.ListPublicCollabs(ctx, limit)
	if err != nil {
		return nil, err
	}
	refs := make([]*domain.Collab, len(collabs))
	for i := range collabs {
		refs[i] = &collabs[i]
	}
	if err := e.attachAuthors(ctx, refs); err != nil {
		return nil, err
	}
	return collabs, nil
}

// CollabMaterials returns the material board for one contract, viewer side.
func (e Engine) CollabMaterials(ctx context.Context, collabID, viewerID string) (MaterialBoard, error) {
	c, err := e.Repo.GetCollab(ctx, collabID)
	if err != nil {
		return MaterialBoard{}, err
	}
	if !domain.IsParty(c, viewerID) {
		return MaterialBoard{}, fault.Forbidden("only a contract party can view its materials")
	}
	materials, err := e.Repo.ListMaterials(ctx, repo.MaterialFilters{CollabID: collabID})
	if err != nil {
		return MaterialBoard{}, err
	}
	board := MaterialBoard{
		Gallery:         []domain.Material{},
		AwaitingYou:     []domain.Material{},
		AwaitingPartner: []domain.Material{},
		Rejected:        []domain.Material{},
	}
	for _, m := range materials {
		switch m.Status {
		case domain.MaterialApproved:
			board.Gallery = append(board.Gallery, m)
		case domain.MaterialRejected:
			board.Rejected = append(board.Rejected, m)
		case domain.MaterialPending:
			if m.PendingApprovalFrom != nil && *m.PendingApprovalFrom == viewerID {
				board.AwaitingYou = append(board.AwaitingYou, m)
			} else {
				board.AwaitingPartner = append(board.AwaitingPartner, m)
			}
		}
	}
	return board, nil
}

// CollabHistory returns the full ledger for one contract, oldest first,
// with actor profiles attached.
func (e Engine) CollabHistory(ctx context.Context, collabID, viewerID string) ([]domain.HistoryEntry, error) {
	c, err := e.Repo.GetCollab(ctx, collabID)
	if err != nil {
		return nil, err
	}
	if !domain.IsParty(c, viewerID) {
		return nil, fault.Forbidden("only a contract party can view its history")
	}
	entries, err := e.Repo.ListHistory(ctx, collabID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, h := range entries {
		ids = append(ids, h.ActorID)
	}
	authors, err := e.Repo.AuthorsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if a, ok := authors[entries[i].ActorID]; ok {
			actor := a
			entries[i].Actor = &actor
		}
	}
	return entries, nil
}

// NotificationsCount totals everything waiting on the user: contract-level
// pending actions plus materials awaiting their approval.
func (e Engine) NotificationsCount(ctx context.Context, userID string) (int, error) {
	collabs, err := e.Repo.ListUserCollabs(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, c := range collabs {
		count += len(domain.PendingActions(c, userID))
	}
	pendingMaterials, err := e.Repo.CountPendingMaterialsFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return count + pendingMaterials, nil
}

// Feed returns the user's notification events after the given cursor.
func (e Engine) Feed(ctx context.Context, userID string, cursor int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.Repo.EventsAfter(ctx, limit, cursor, userID)
}

// attachAuthors loads and pins both parties' profiles onto each contract.
func (e Engine) attachAuthors(ctx context.Context, collabs []*domain.Collab) error {
	ids := make([]string, 0, len(collabs)*2)
	for _, c := range collabs {
		ids = append(ids, c.Author1ID, c.Author2ID)
	}
	authors, err := e.Repo.AuthorsByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range collabs {
		if a, ok := authors[c.Author1ID]; ok {
			a1 := a
			c.Author1 = &a1
		}
		if a, ok := authors[c.Author2ID]; ok {
			a2 := a
			c.Author2 = &a2
		}
	}
	return nil
}
