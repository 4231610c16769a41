package server

import (
	"collabforge/internal/domain"
	"collabforge/internal/engine"
)

// Request payloads

type CreateCollabRequest struct {
	PartnerID     string  `json:"partner_id"`
	Title         string  `json:"title"`
	Description   *string `json:"description,omitempty"`
	ProposerShare *int    `json:"proposer_share,omitempty" minimum:"1" maximum:"99"`
	CoverURL      *string `json:"cover_url,omitempty"`
}

type UpdateCollabRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type ShareChangeRequest struct {
	Share int `json:"share" minimum:"1" maximum:"99"`
}

type AddMaterialRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	PreviewURL  *string `json:"preview_url,omitempty"`
}

type RejectMaterialRequest struct {
	Reason string `json:"reason,omitempty"`
}

type UpdateProfileRequest struct {
	DisplayName   *string `json:"display_name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	CollabEnabled *bool   `json:"collab_enabled,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type AuthorResponse struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	CollabEnabled bool   `json:"collab_enabled"`
}

type ShareProposalResponse struct {
	Author1Share int    `json:"author1_share"`
	Author2Share int    `json:"author2_share"`
	RequestedBy  string `json:"requested_by"`
}

type CollabResponse struct {
	ID             string                 `json:"id"`
	Author1ID      string                 `json:"author1_id"`
	Author2ID      string                 `json:"author2_id"`
	CreatedBy      string                 `json:"created_by"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description,omitempty"`
	CoverURL       string                 `json:"cover_url,omitempty"`
	Status         string                 `json:"status" enum:"pending,active,paused,delete_requested,archived"`
	PausedBy       *string                `json:"paused_by,omitempty"`
	DeleteReqBy    *string                `json:"delete_requested_by,omitempty"`
	Author1Share   int                    `json:"author1_share"`
	Author2Share   int                    `json:"author2_share"`
	ShareProposal  *ShareProposalResponse `json:"share_proposal,omitempty"`
	LikesCount     int                    `json:"likes_count"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
	ConfirmedAt    *string                `json:"confirmed_at,omitempty"`
	ArchivedAt     *string                `json:"archived_at,omitempty"`
	Author1        *AuthorResponse        `json:"author1,omitempty"`
	Author2        *AuthorResponse        `json:"author2,omitempty"`
	ViewerRole     string                 `json:"viewer_role,omitempty"`
	ViewerShare    int                    `json:"viewer_share,omitempty"`
	PendingActions []string               `json:"pending_actions"`
	Liked          bool                   `json:"liked"`
}

type MaterialResponse struct {
	ID                  string  `json:"id"`
	CollabID            string  `json:"collab_id"`
	OwnerID             string  `json:"owner_id"`
	Title               string  `json:"title"`
	Description         string  `json:"description,omitempty"`
	PreviewURL          string  `json:"preview_url,omitempty"`
	Status              string  `json:"status" enum:"pending,approved,rejected"`
	PendingApprovalFrom *string `json:"pending_approval_from,omitempty"`
	RejectionReason     string  `json:"rejection_reason,omitempty"`
	CreatedAt           string  `json:"created_at"`
	ApprovedAt          *string `json:"approved_at,omitempty"`
	RejectedAt          *string `json:"rejected_at,omitempty"`
}

type MaterialBoardResponse struct {
	Gallery         []MaterialResponse `json:"gallery"`
	AwaitingYou     []MaterialResponse `json:"awaiting_you"`
	AwaitingPartner []MaterialResponse `json:"awaiting_partner"`
	Rejected        []MaterialResponse `json:"rejected"`
}

type HistoryEntryResponse struct {
	ID         string          `json:"id"`
	CollabID   string          `json:"collab_id"`
	ActorID    string          `json:"actor_id"`
	ActionType string          `json:"action_type"`
	Details    map[string]any  `json:"details,omitempty"`
	CreatedAt  string          `json:"created_at"`
	Actor      *AuthorResponse `json:"actor,omitempty"`
}

type EventResponse struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Kind     string `json:"kind"`
	CollabID string `json:"collab_id"`
	ActorID  string `json:"actor_id"`
	Payload  string `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type LikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

type MeResponse struct {
	Author        AuthorResponse `json:"author"`
	Notifications int            `json:"notifications"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	Key       string `json:"key,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Mapping helpers

func authorResponse(a *domain.Author) *AuthorResponse {
	if a == nil {
		return nil
	}
	return &AuthorResponse{
		ID:            a.ID,
		DisplayName:   a.DisplayName,
		AvatarURL:     a.AvatarURL,
		CollabEnabled: a.CollabEnabled,
	}
}

func collabResponse(c domain.Collab) CollabResponse {
	res := CollabResponse{
		ID:             c.ID,
		Author1ID:      c.Author1ID,
		Author2ID:      c.Author2ID,
		CreatedBy:      c.CreatedBy,
		Title:          c.Title,
		Description:    c.Description,
		CoverURL:       c.CoverURL,
		Status:         c.Status,
		PausedBy:       c.PausedBy,
		DeleteReqBy:    c.DeleteReqBy,
		Author1Share:   c.Author1Share,
		Author2Share:   c.Author2Share(),
		LikesCount:     c.LikesCount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		ConfirmedAt:    c.ConfirmedAt,
		ArchivedAt:     c.ArchivedAt,
		Author1:        authorResponse(c.Author1),
		Author2:        authorResponse(c.Author2),
		PendingActions: []string{},
	}
	if c.Proposal != nil {
		res.ShareProposal = &ShareProposalResponse{
			Author1Share: c.Proposal.Author1Share,
			Author2Share: c.Proposal.Author2Share,
			RequestedBy:  c.Proposal.RequestedBy,
		}
	}
	return res
}

func collabViewResponse(v engine.CollabView) CollabResponse {
	res := collabResponse(v.Collab)
	res.ViewerRole = v.ViewerRole
	res.ViewerShare = v.ViewerShare
	res.PendingActions = nonNilSlice(v.PendingActions)
	res.Liked = v.Liked
	return res
}

func mapCollabViews(items []engine.CollabView) []CollabResponse {
	res := make([]CollabResponse, 0, len(items))
	for _, v := range items {
		res = append(res, collabViewResponse(v))
	}
	return res
}

func mapCollabs(items []domain.Collab) []CollabResponse {
	res := make([]CollabResponse, 0, len(items))
	for _, c := range items {
		res = append(res, collabResponse(c))
	}
	return res
}

func materialResponse(m domain.Material) MaterialResponse {
	return MaterialResponse{
		ID:                  m.ID,
		CollabID:            m.CollabID,
		OwnerID:             m.OwnerID,
		Title:               m.Title,
		Description:         m.Description,
		PreviewURL:          m.PreviewURL,
		Status:              m.Status,
		PendingApprovalFrom: m.PendingApprovalFrom,
		RejectionReason:     m.RejectionReason,
		CreatedAt:           m.CreatedAt,
		ApprovedAt:          m.ApprovedAt,
		RejectedAt:          m.RejectedAt,
	}
}

func mapMaterials(items []domain.Material) []MaterialResponse {
	res := make([]MaterialResponse, 0, len(items))
	for _, m := range items {
		res = append(res, materialResponse(m))
	}
	return res
}

func materialBoardResponse(b engine.MaterialBoard) MaterialBoardResponse {
	return MaterialBoardResponse{
		Gallery:         mapMaterials(b.Gallery),
		AwaitingYou:     mapMaterials(b.AwaitingYou),
		AwaitingPartner: mapMaterials(b.AwaitingPartner),
		Rejected:        mapMaterials(b.Rejected),
	}
}

func historyResponse(h domain.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:         h.ID,
		CollabID:   h.CollabID,
		ActorID:    h.ActorID,
		ActionType: h.ActionType,
		Details:    h.Details,
		CreatedAt:  h.CreatedAt,
		Actor:      authorResponse(h.Actor),
	}
}

func mapHistory(items []domain.HistoryEntry) []HistoryEntryResponse {
	res := make([]HistoryEntryResponse, 0, len(items))
	for _, h := range items {
		res = append(res, historyResponse(h))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:       e.ID,
		TS:       e.TS,
		Kind:     e.Kind,
		CollabID: e.CollabID,
		ActorID:  e.ActorID,
		Payload:  e.Payload,
	}
}

func nonNilSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
