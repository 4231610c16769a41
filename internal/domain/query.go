package domain

// Query layer: pure helpers over a loaded Collab and a viewer id. The engine's
// authorization checks and the API's pending-action reads both go through
// these, so "whose turn it is" has a single definition.

// Roles a viewer can occupy on a contract.
const (
	RoleAuthor1 = "author1"
	RoleAuthor2 = "author2"
	RoleNone    = ""
)

// Pending action kinds returned by PendingActions.
const (
	ActionConfirmParticipation = "confirm_participation"
	ActionConfirmDelete        = "confirm_delete"
	ActionConfirmShareChange   = "confirm_share_change"
)

// Role returns which author slot the viewer occupies, or RoleNone.
func Role(c Collab, userID string) string {
	switch userID {
	case c.Author1ID:
		return RoleAuthor1
	case c.Author2ID:
		return RoleAuthor2
	}
	return RoleNone
}

// IsParty reports whether the viewer is one of the two named parties.
func IsParty(c Collab, userID string) bool {
	return Role(c, userID) != RoleNone
}

// Partner returns the other party's id, or "" if the viewer is not a party.
func Partner(c Collab, userID string) string {
	switch userID {
	case c.Author1ID:
		return c.Author2ID
	case c.Author2ID:
		return c.Author1ID
	}
	return ""
}

// Share returns the viewer's committed percentage, 0 for non-parties.
func Share(c Collab, userID string) int {
	switch userID {
	case c.Author1ID:
		return c.Author1Share
	case c.Author2ID:
		return c.Author2Share()
	}
	return 0
}

// PendingActions returns the outstanding actions requiring this viewer's
// response. The invited partner (not the proposer) confirms participation;
// the counterparty of a delete request confirms deletion; the counterparty
// of a share proposal resolves it.
func PendingActions(c Collab, userID string) []string {
	if !IsParty(c, userID) {
		return nil
	}
	var actions []string
	if c.Status == StatusPending && userID != c.CreatedBy {
		actions = append(actions, ActionConfirmParticipation)
	}
	if c.Status == StatusDeleteRequested && c.DeleteReqBy != nil && *c.DeleteReqBy != userID {
		actions = append(actions, ActionConfirmDelete)
	}
	if c.Proposal != nil && c.Proposal.RequestedBy != userID {
		actions = append(actions, ActionConfirmShareChange)
	}
	return actions
}
