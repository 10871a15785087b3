package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/procurement-api/internal/models"
)

// ErrStaleTransition signals that a guarded update matched no row because
// the entity is no longer in the expected state.
var ErrStaleTransition = errors.New("stale disposal transition")

// DisposalApprovalRepository applies decision write sets and reads the
// append-only approval trail.
type DisposalApprovalRepository struct {
	db *sqlx.DB
}

// NewDisposalApprovalRepository constructs the repository.
func NewDisposalApprovalRepository(db *sqlx.DB) *DisposalApprovalRepository {
	return &DisposalApprovalRepository{db: db}
}

// Apply executes every mutation of ws on the caller's transaction. It never
// begins or commits on its own; any error must roll the caller back.
func (r *DisposalApprovalRepository) Apply(ctx context.Context, tx sqlx.ExtContext, ws models.WriteSet) error {
	if ws.Request != nil {
		const query = `UPDATE disposal_requests SET status = $1, updated_at = $2 WHERE id = $3 AND asset_id = $4 AND status = $5`
		res, err := tx.ExecContext(ctx, query, ws.Request.To, ws.At, ws.Request.RequestID, ws.Request.AssetID, ws.Request.From)
		if err != nil {
			return fmt.Errorf("update disposal request status: %w", err)
		}
		if err := expectOneRow(res.RowsAffected()); err != nil {
			return fmt.Errorf("disposal request %s: %w", ws.Request.RequestID, err)
		}
	}

	if ws.Asset != nil {
		from := make([]string, len(ws.Asset.From))
		for i, status := range ws.Asset.From {
			from[i] = string(status)
		}
		query := `UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`
		if ws.Asset.NoPendingRequest {
			query += ` AND NOT EXISTS (SELECT 1 FROM disposal_requests dr WHERE dr.asset_id = assets.id AND dr.status = 'Pending')`
		}
		res, err := tx.ExecContext(ctx, query, ws.Asset.To, ws.At, ws.Asset.AssetID, pq.Array(from))
		if err != nil {
			return fmt.Errorf("update asset status: %w", err)
		}
		if err := expectOneRow(res.RowsAffected()); err != nil {
			return fmt.Errorf("asset %s: %w", ws.Asset.AssetID, err)
		}
	}

	approval := ws.Approval
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.ApprovalDate.IsZero() {
		approval.ApprovalDate = ws.At
	}
	const insert = `INSERT INTO disposal_approvals (id, asset_id, disposal_type, disposal_request_id, approved_by, approval_action, notes, approval_date)
VALUES (:id, :asset_id, :disposal_type, :disposal_request_id, :approved_by, :approval_action, :notes, :approval_date)`
	if _, err := sqlx.NamedExecContext(ctx, tx, insert, approval); err != nil {
		return fmt.Errorf("insert disposal approval: %w", err)
	}
	return nil
}

// ListByAsset returns the decision trail of an asset, newest first.
func (r *DisposalApprovalRepository) ListByAsset(ctx context.Context, assetID string) ([]models.DisposalApproval, error) {
	const query = `SELECT id, asset_id, disposal_type, disposal_request_id, approved_by, approval_action, notes, approval_date
FROM disposal_approvals WHERE asset_id = $1 ORDER BY approval_date DESC, id ASC`
	var items []models.DisposalApproval
	if err := r.db.SelectContext(ctx, &items, query, assetID); err != nil {
		return nil, fmt.Errorf("list disposal approvals: %w", err)
	}
	return items, nil
}

func expectOneRow(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}
