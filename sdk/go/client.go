package collabsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Collabforge HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api",
		Timeout:  10 * time.Second,
	}
}

// Collab represents the API collab model (partial).
type Collab struct {
	ID             string   `json:"id"`
	Author1ID      string   `json:"author1_id"`
	Author2ID      string   `json:"author2_id"`
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	Author1Share   int      `json:"author1_share"`
	Author2Share   int      `json:"author2_share"`
	LikesCount     int      `json:"likes_count"`
	PendingActions []string `json:"pending_actions"`
}

// Material represents a submitted work item.
type Material struct {
	ID       string `json:"id"`
	CollabID string `json:"collab_id"`
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
}

// MaterialBoard groups materials by approval state.
type MaterialBoard struct {
	Gallery         []Material `json:"gallery"`
	AwaitingYou     []Material `json:"awaiting_you"`
	AwaitingPartner []Material `json:"awaiting_partner"`
	Rejected        []Material `json:"rejected"`
}

// HistoryEntry is one ledger row.
type HistoryEntry struct {
	ID         string         `json:"id"`
	CollabID   string         `json:"collab_id"`
	ActorID    string         `json:"actor_id"`
	ActionType string         `json:"action_type"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// Event is one notification feed row.
type Event struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Kind     string `json:"kind"`
	CollabID string `json:"collab_id"`
	ActorID  string `json:"actor_id"`
}

// PaginatedEvents wraps feed responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCollab proposes a contract with the given partner.
func (c *Client) CreateCollab(ctx context.Context, partnerID, title string, proposerShare int) (Collab, error) {
	body := map[string]any{
		"partner_id": partnerID,
		"title":      title,
	}
	if proposerShare > 0 {
		body["proposer_share"] = proposerShare
	}
	var resp Collab
	err := c.do(ctx, http.MethodPost, "collabs", body, &resp)
	return resp, err
}

// ListCollabs lists contracts the caller is party to.
func (c *Client) ListCollabs(ctx context.Context) ([]Collab, error) {
	var resp []Collab
	err := c.do(ctx, http.MethodGet, "collabs", nil, &resp)
	return resp, err
}

// GetCollab fetches one contract.
func (c *Client) GetCollab(ctx context.Context, id string) (Collab, error) {
	var resp Collab
	err := c.do(ctx, http.MethodGet, c.collabPath(id, ""), nil, &resp)
	return resp, err
}

// Confirm accepts a pending invitation.
func (c *Client) Confirm(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "confirm")
}

// Pause pauses an active contract.
func (c *Client) Pause(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "pause")
}

// Resume resumes a paused contract.
func (c *Client) Resume(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "resume")
}

// RequestDelete starts the two-phase deletion.
func (c *Client) RequestDelete(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "delete-request")
}

// ConfirmDelete archives the contract.
func (c *Client) ConfirmDelete(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "delete-confirm")
}

// CancelDelete withdraws the caller's delete request.
func (c *Client) CancelDelete(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "delete-cancel")
}

// Reject declines a pending invitation.
func (c *Client) Reject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.collabPath(id, "reject"), nil, nil)
}

// RequestShareChange proposes a new split (the caller's percentage).
func (c *Client) RequestShareChange(ctx context.Context, id string, share int) (Collab, error) {
	var resp Collab
	err := c.do(ctx, http.MethodPost, c.collabPath(id, "share-change"), map[string]any{"share": share}, &resp)
	return resp, err
}

// ConfirmShareChange accepts the outstanding proposal.
func (c *Client) ConfirmShareChange(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "share-change/confirm")
}

// RejectShareChange declines the outstanding proposal.
func (c *Client) RejectShareChange(ctx context.Context, id string) (Collab, error) {
	return c.lifecycle(ctx, id, "share-change/reject")
}

// AddMaterial submits a material for partner approval.
func (c *Client) AddMaterial(ctx context.Context, collabID, title, previewURL string) (Material, error) {
	body := map[string]any{"title": title}
	if previewURL != "" {
		body["preview_url"] = previewURL
	}
	var resp Material
	err := c.do(ctx, http.MethodPost, c.collabPath(collabID, "materials"), body, &resp)
	return resp, err
}

// Materials returns the material board for a contract.
func (c *Client) Materials(ctx context.Context, collabID string) (MaterialBoard, error) {
	var resp MaterialBoard
	err := c.do(ctx, http.MethodGet, c.collabPath(collabID, "materials"), nil, &resp)
	return resp, err
}

// ApproveMaterial approves a pending material.
func (c *Client) ApproveMaterial(ctx context.Context, collabID, materialID string) (Material, error) {
	var resp Material
	endpoint := c.collabPath(collabID, fmt.Sprintf("materials/%s/approve", url.PathEscape(materialID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// RejectMaterial rejects a pending material.
func (c *Client) RejectMaterial(ctx context.Context, collabID, materialID, reason string) (Material, error) {
	var resp Material
	endpoint := c.collabPath(collabID, fmt.Sprintf("materials/%s/reject", url.PathEscape(materialID)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"reason": reason}, &resp)
	return resp, err
}

// History returns the full ledger for a contract.
func (c *Client) History(ctx context.Context, collabID string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, c.collabPath(collabID, "history"), nil, &resp)
	return resp, err
}

// EventsPage returns a page of the caller's notification feed.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) lifecycle(ctx context.Context, id, action string) (Collab, error) {
	var resp Collab
	err := c.do(ctx, http.MethodPost, c.collabPath(id, action), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	full := c.base() + "/" + strings.TrimLeft(c.basePath()+"/"+strings.TrimLeft(endpoint, "/"), "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, full, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) collabPath(id, suffix string) string {
	p := fmt.Sprintf("collabs/%s", url.PathEscape(id))
	if suffix != "" {
		p += "/" + strings.TrimLeft(suffix, "/")
	}
	return p
}

func (c *Client) basePath() string {
	return strings.Trim(c.BasePath, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
