package engine

import (
	"collabforge/internal/domain"
	"collabforge/internal/engine/fault"
)

// The full status transition table in one place: which action moves a
// contract from which status, and which party may trigger it. Every
// lifecycle mutation resolves its edge here before touching the store.
type edge struct {
	From      string
	Action    string
	To        string // "" means the target is computed by the operation
	Authorize func(c domain.Collab, actorID string) error
}

func anyParty(c domain.Collab, actorID string) error {
	if !domain.IsParty(c, actorID) {
		return fault.Forbidden("actor %s is not a party to this collab", actorID)
	}
	return nil
}

func invitedPartner(c domain.Collab, actorID string) error {
	if err := anyParty(c, actorID); err != nil {
		return err
	}
	if actorID == c.CreatedBy {
		return fault.Forbidden("only the invited partner may respond to the invitation")
	}
	return nil
}

func pauserOnly(c domain.Collab, actorID string) error {
	if err := anyParty(c, actorID); err != nil {
		return err
	}
	if c.PausedBy == nil || *c.PausedBy != actorID {
		return fault.Forbidden("only the party who paused may resume")
	}
	return nil
}

func deleteCounterparty(c domain.Collab, actorID string) error {
	if err := anyParty(c, actorID); err != nil {
		return err
	}
	if c.DeleteReqBy != nil && *c.DeleteReqBy == actorID {
		return fault.Forbidden("cannot confirm your own delete request")
	}
	return nil
}

func deleteRequester(c domain.Collab, actorID string) error {
	if err := anyParty(c, actorID); err != nil {
		return err
	}
	if c.DeleteReqBy == nil || *c.DeleteReqBy != actorID {
		return fault.Forbidden("only the requesting party may cancel the delete request")
	}
	return nil
}

const (
	actionConfirm       = "confirm"
	actionReject        = "reject"
	actionPause         = "pause"
	actionResume        = "resume"
	actionRequestDelete = "request_delete"
	actionConfirmDelete = "confirm_delete"
	actionCancelDelete  = "cancel_delete"
)

var transitions = []edge{
	{From: domain.StatusPending, Action: actionConfirm, To: domain.StatusActive, Authorize: invitedPartner},
	{From: domain.StatusPending, Action: actionReject, To: "", Authorize: invitedPartner},
	{From: domain.StatusActive, Action: actionPause, To: domain.StatusPaused, Authorize: anyParty},
	{From: domain.StatusPaused, Action: actionResume, To: domain.StatusActive, Authorize: pauserOnly},
	{From: domain.StatusActive, Action: actionRequestDelete, To: domain.StatusDeleteRequested, Authorize: anyParty},
	{From: domain.StatusPaused, Action: actionRequestDelete, To: domain.StatusDeleteRequested, Authorize: anyParty},
	{From: domain.StatusDeleteRequested, Action: actionConfirmDelete, To: domain.StatusArchived, Authorize: deleteCounterparty},
	{From: domain.StatusDeleteRequested, Action: actionCancelDelete, To: "", Authorize: deleteRequester},
}

// resolveEdge finds the edge for (current status, action) and authorizes the
// actor against it. A missing edge is an invalid transition; a retry of an
// already-applied transition lands here too, since the status has moved on.
func resolveEdge(c domain.Collab, action, actorID string) (edge, error) {
	for _, e := range transitions {
		if e.From == c.Status && e.Action == action {
			if err := e.Authorize(c, actorID); err != nil {
				return edge{}, err
			}
			return e, nil
		}
	}
	return edge{}, fault.InvalidState("cannot %s a collab in status %s", action, c.Status)
}
