package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"collabforge/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrStale signals that a conditional update matched no row: the contract
// was mutated concurrently and the caller's precondition no longer holds.
var ErrStale = errors.New("contract state changed concurrently")

const collabColumns = `id,author1_id,author2_id,created_by,title,description,cover_url,status,paused_by,delete_requested_by,author1_share,pending_author1_share,pending_author2_share,share_change_requested_by,likes_count,created_at,updated_at,confirmed_at,archived_at`

func scanCollab(scan func(dest ...any) error) (domain.Collab, error) {
	var c domain.Collab
	var description, coverURL, pausedBy, deleteReqBy, shareReqBy, confirmedAt, archivedAt sql.NullString
	var pending1, pending2 sql.NullInt64
	err := scan(&c.ID, &c.Author1ID, &c.Author2ID, &c.CreatedBy, &c.Title, &description, &coverURL,
		&c.Status, &pausedBy, &deleteReqBy, &c.Author1Share, &pending1, &pending2, &shareReqBy,
		&c.LikesCount, &c.CreatedAt, &c.UpdatedAt, &confirmedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if description.Valid {
		c.Description = description.String
	}
	if coverURL.Valid {
		c.CoverURL = coverURL.String
	}
	if pausedBy.Valid {
		c.PausedBy = &pausedBy.String
	}
	if deleteReqBy.Valid {
		c.DeleteReqBy = &deleteReqBy.String
	}
	if confirmedAt.Valid {
		c.ConfirmedAt = &confirmedAt.String
	}
	if archivedAt.Valid {
		c.ArchivedAt = &archivedAt.String
	}
	if pending1.Valid && pending2.Valid && shareReqBy.Valid {
		c.Proposal = &domain.ShareProposal{
			Author1Share: int(pending1.Int64),
			Author2Share: int(pending2.Int64),
			RequestedBy:  shareReqBy.String,
		}
	}
	return c, nil
}

func (r Repo) InsertCollabTx(ctx context.Context, tx *sql.Tx, c domain.Collab) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO collabs(`+collabColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Author1ID, c.Author2ID, c.CreatedBy, c.Title, nullable(c.Description), nullable(c.CoverURL),
		c.Status, nullableStringPtr(c.PausedBy), nullableStringPtr(c.DeleteReqBy), c.Author1Share,
		proposalShare1(c.Proposal), proposalShare2(c.Proposal), proposalRequestedBy(c.Proposal),
		c.LikesCount, c.CreatedAt, c.UpdatedAt, nullableStringPtr(c.ConfirmedAt), nullableStringPtr(c.ArchivedAt))
	return err
}

// UpdateCollabTx writes all mutable fields conditionally on the status the
// caller read: zero rows matched means a concurrent mutation won.
func (r Repo) UpdateCollabTx(ctx context.Context, tx *sql.Tx, c domain.Collab, expectStatus string) error {
	res, err := tx.ExecContext(ctx, `UPDATE collabs SET title=?, description=?, cover_url=?, status=?, paused_by=?, delete_requested_by=?, author1_share=?, pending_author1_share=?, pending_author2_share=?, share_change_requested_by=?, updated_at=?, confirmed_at=?, archived_at=? WHERE id=? AND status=?`,
		c.Title, nullable(c.Description), nullable(c.CoverURL), c.Status,
		nullableStringPtr(c.PausedBy), nullableStringPtr(c.DeleteReqBy), c.Author1Share,
		proposalShare1(c.Proposal), proposalShare2(c.Proposal), proposalRequestedBy(c.Proposal),
		c.UpdatedAt, nullableStringPtr(c.ConfirmedAt), nullableStringPtr(c.ArchivedAt),
		c.ID, expectStatus)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r Repo) DeleteCollabTx(ctx context.Context, tx *sql.Tx, id, expectStatus string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM collabs WHERE id=? AND status=?`, id, expectStatus)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r Repo) GetCollab(ctx context.Context, id string) (domain.Collab, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collabColumns+` FROM collabs WHERE id=?`, id)
	return scanCollab(row.Scan)
}

func (r Repo) GetCollabTx(ctx context.Context, tx *sql.Tx, id string) (domain.Collab, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+collabColumns+` FROM collabs WHERE id=?`, id)
	return scanCollab(row.Scan)
}

func (r Repo) listCollabs(ctx context.Context, query string, args ...any) ([]domain.Collab, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Collab
	for rows.Next() {
		c, err := scanCollab(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListUserCollabs returns all contracts the user is a party of, most
// recently touched first.
func (r Repo) ListUserCollabs(ctx context.Context, userID string) ([]domain.Collab, error) {
	return r.listCollabs(ctx, `SELECT `+collabColumns+` FROM collabs WHERE author1_id=? OR author2_id=? ORDER BY updated_at DESC, id DESC`, userID, userID)
}

// ListPublicCollabs returns active contracts for the public feed.
func (r Repo) ListPublicCollabs(ctx context.Context, limit int) ([]domain.Collab, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.listCollabs(ctx, `SELECT `+collabColumns+` FROM collabs WHERE status=? ORDER BY created_at DESC, id DESC LIMIT ?`, domain.StatusActive, limit)
}

const materialColumns = `id,collab_id,owner_id,title,description,preview_url,status,pending_approval_from,rejection_reason,created_at,approved_at,rejected_at`

func scanMaterial(scan func(dest ...any) error) (domain.Material, error) {
	var m domain.Material
	var description, previewURL, pendingFrom, reason, approvedAt, rejectedAt sql.NullString
	err := scan(&m.ID, &m.CollabID, &m.OwnerID, &m.Title, &description, &previewURL,
		&m.Status, &pendingFrom, &reason, &m.CreatedAt, &approvedAt, &rejectedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if description.Valid {
		m.Description = description.String
	}
	if previewURL.Valid {
		m.PreviewURL = previewURL.String
	}
	if pendingFrom.Valid {
		m.PendingApprovalFrom = &pendingFrom.String
	}
	if reason.Valid {
		m.RejectionReason = reason.String
	}
	if approvedAt.Valid {
		m.ApprovedAt = &approvedAt.String
	}
	if rejectedAt.Valid {
		m.RejectedAt = &rejectedAt.String
	}
	return m, nil
}

func (r Repo) InsertMaterialTx(ctx context.Context, tx *sql.Tx, m domain.Material) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO collab_materials(`+materialColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.CollabID, m.OwnerID, m.Title, nullable(m.Description), nullable(m.PreviewURL),
		m.Status, nullableStringPtr(m.PendingApprovalFrom), nullable(m.RejectionReason),
		m.CreatedAt, nullableStringPtr(m.ApprovedAt), nullableStringPtr(m.RejectedAt))
	return err
}

// UpdateMaterialTx resolves a pending material conditionally on it still
// being pending.
func (r Repo) UpdateMaterialTx(ctx context.Context, tx *sql.Tx, m domain.Material, expectStatus string) error {
	res, err := tx.ExecContext(ctx, `UPDATE collab_materials SET status=?, pending_approval_from=?, rejection_reason=?, approved_at=?, rejected_at=? WHERE id=? AND status=?`,
		m.Status, nullableStringPtr(m.PendingApprovalFrom), nullable(m.RejectionReason),
		nullableStringPtr(m.ApprovedAt), nullableStringPtr(m.RejectedAt), m.ID, expectStatus)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

func (r Repo) DeleteMaterialTx(ctx context.Context, tx *sql.Tx, id, collabID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM collab_materials WHERE id=? AND collab_id=?`, id, collabID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountApprovedWithPreviewTx counts approved materials in the collab whose
// preview is the given URL.
func (r Repo) CountApprovedWithPreviewTx(ctx context.Context, tx *sql.Tx, collabID, previewURL string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM collab_materials WHERE collab_id=? AND status=? AND preview_url=?`,
		collabID, domain.MaterialApproved, previewURL).Scan(&n)
	return n, err
}

func (r Repo) GetMaterial(ctx context.Context, id string) (domain.Material, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM collab_materials WHERE id=?`, id)
	return scanMaterial(row.Scan)
}

func (r Repo) GetMaterialTx(ctx context.Context, tx *sql.Tx, id string) (domain.Material, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM collab_materials WHERE id=?`, id)
	return scanMaterial(row.Scan)
}

type MaterialFilters struct {
	CollabID            string
	Status              string
	PendingApprovalFrom string
}

func (r Repo) ListMaterials(ctx context.Context, f MaterialFilters) ([]domain.Material, error) {
	var clauses []string
	var args []any
	if f.CollabID != "" {
		clauses = append(clauses, "collab_id=?")
		args = append(args, f.CollabID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.PendingApprovalFrom != "" {
		clauses = append(clauses, "pending_approval_from=?")
		args = append(args, f.PendingApprovalFrom)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+materialColumns+` FROM collab_materials `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Material
	for rows.Next() {
		m, err := scanMaterial(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) CountPendingMaterialsFor(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM collab_materials WHERE pending_approval_from=? AND status=?`, userID, domain.MaterialPending).Scan(&n)
	return n, err
}

func (r Repo) ListHistory(ctx context.Context, collabID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,collab_id,actor_id,action_type,details_json,created_at FROM collab_history WHERE collab_id=? ORDER BY seq ASC`, collabID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var details sql.NullString
		if err := rows.Scan(&h.ID, &h.CollabID, &h.ActorID, &h.ActionType, &details, &h.CreatedAt); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &h.Details)
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r Repo) CountHistory(ctx context.Context, collabID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM collab_history WHERE collab_id=?`, collabID).Scan(&n)
	return n, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func proposalShare1(p *domain.ShareProposal) any {
	if p == nil {
		return nil
	}
	return p.Author1Share
}

func proposalShare2(p *domain.ShareProposal) any {
	if p == nil {
		return nil
	}
	return p.Author2Share
}

func proposalRequestedBy(p *domain.ShareProposal) any {
	if p == nil {
		return nil
	}
	return p.RequestedBy
}
