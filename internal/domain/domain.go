package domain

// Collab statuses.
const (
	StatusPending         = "pending"
	StatusActive          = "active"
	StatusPaused          = "paused"
	StatusDeleteRequested = "delete_requested"
	StatusArchived        = "archived"
)

// Material statuses.
const (
	MaterialPending  = "pending"
	MaterialApproved = "approved"
	MaterialRejected = "rejected"
)

// ShareProposal is an outstanding renegotiation of the revenue split.
// A nil proposal means no renegotiation is pending; a non-nil one blocks
// further proposals until the counterparty resolves it.
type ShareProposal struct {
	Author1Share int    `json:"author1_share" minimum:"1" maximum:"99"`
	Author2Share int    `json:"author2_share" minimum:"1" maximum:"99"`
	RequestedBy  string `json:"requested_by"`
}

type Collab struct {
	ID           string `json:"id"`
	Author1ID    string `json:"author1_id"`
	Author2ID    string `json:"author2_id"`
	CreatedBy    string `json:"created_by"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	CoverURL     string `json:"cover_url,omitempty"`
	Status       string `json:"status" enum:"pending,active,paused,delete_requested,archived"`
	PausedBy     *string `json:"paused_by,omitempty"`
	DeleteReqBy  *string `json:"delete_requested_by,omitempty"`
	Author1Share int     `json:"author1_share"`
	// Author2Share is always 100-Author1Share; derived, never stored.
	Proposal   *ShareProposal `json:"share_proposal,omitempty"`
	LikesCount int            `json:"likes_count"`
	CreatedAt  string         `json:"created_at" format:"date-time"`
	UpdatedAt  string         `json:"updated_at" format:"date-time"`
	ConfirmedAt *string       `json:"confirmed_at,omitempty" format:"date-time"`
	ArchivedAt  *string       `json:"archived_at,omitempty" format:"date-time"`

	Author1 *Author `json:"author1,omitempty"`
	Author2 *Author `json:"author2,omitempty"`
}

// Author2Share returns the counterparty's committed percentage.
func (c Collab) Author2Share() int { return 100 - c.Author1Share }

type Material struct {
	ID                  string  `json:"id"`
	CollabID            string  `json:"collab_id"`
	OwnerID             string  `json:"owner_id"`
	Title               string  `json:"title"`
	Description         string  `json:"description,omitempty"`
	PreviewURL          string  `json:"preview_url,omitempty"`
	Status              string  `json:"status" enum:"pending,approved,rejected"`
	PendingApprovalFrom *string `json:"pending_approval_from,omitempty"`
	RejectionReason     string  `json:"rejection_reason,omitempty"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	ApprovedAt          *string `json:"approved_at,omitempty" format:"date-time"`
	RejectedAt          *string `json:"rejected_at,omitempty" format:"date-time"`

	Owner *Author `json:"owner,omitempty"`
}

// HistoryEntry is an append-only ledger row; never edited once written.
type HistoryEntry struct {
	ID         string         `json:"id"`
	CollabID   string         `json:"collab_id"`
	ActorID    string         `json:"actor_id"`
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  string         `json:"created_at" format:"date-time"`

	Actor *Author `json:"actor,omitempty"`
}

// History action types, one per accepted mutation.
const (
	ActionCreated              = "created"
	ActionConfirmed            = "confirmed"
	ActionRejected             = "rejected"
	ActionPaused               = "paused"
	ActionResumed              = "resumed"
	ActionDeleteRequested      = "delete_requested"
	ActionDeleteConfirmed      = "delete_confirmed"
	ActionDeleteCancelled      = "delete_cancelled"
	ActionShareChangeRequested = "share_change_requested"
	ActionShareChangeConfirmed = "share_change_confirmed"
	ActionShareChangeRejected  = "share_change_rejected"
	ActionMaterialAdded        = "material_added"
	ActionMaterialApproved     = "material_approved"
	ActionMaterialRejected     = "material_rejected"
	ActionMaterialDeleted      = "material_deleted"
	ActionCoverChanged         = "cover_changed"
	ActionTitleChanged         = "title_changed"
	ActionDescriptionChanged   = "description_changed"
)

type Author struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	CollabEnabled bool   `json:"collab_enabled"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

// Event is one row of the notification feed: what changed and who should
// hear about it. Delivery is the subscriber's concern.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts" format:"date-time"`
	Kind     string `json:"kind"`
	CollabID string `json:"collab_id"`
	UserID   string `json:"user_id"`
	ActorID  string `json:"actor_id"`
	Payload  string `json:"payload_json,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
