package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/procurement-api/internal/models"
)

const disposalRequestColumns = `id, asset_id, reason, method, sale_amount, recipient_details, notes, requested_by, status, request_date, updated_at`

// DisposalRequestRepository persists manual disposal requests.
type DisposalRequestRepository struct {
	db *sqlx.DB
}

// NewDisposalRequestRepository constructs the repository.
func NewDisposalRequestRepository(db *sqlx.DB) *DisposalRequestRepository {
	return &DisposalRequestRepository{db: db}
}

// Create inserts a request. Requests are never deleted.
func (r *DisposalRequestRepository) Create(ctx context.Context, req *models.DisposalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.RequestDate.IsZero() {
		req.RequestDate = now
	}
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.DisposalRequestPending
	}

	const query = `INSERT INTO disposal_requests (` + disposalRequestColumns + `)
VALUES (:id, :asset_id, :reason, :method, :sale_amount, :recipient_details, :notes, :requested_by, :status, :request_date, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create disposal request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *DisposalRequestRepository) FindByID(ctx context.Context, id string) (*models.DisposalRequest, error) {
	const query = `SELECT ` + disposalRequestColumns + ` FROM disposal_requests WHERE id = $1 LIMIT 1`
	var req models.DisposalRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find disposal request: %w", err)
	}
	return &req, nil
}

// HasPending reports whether the asset already has an undecided request.
func (r *DisposalRequestRepository) HasPending(ctx context.Context, assetID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM disposal_requests WHERE asset_id = $1 AND status = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, assetID, models.DisposalRequestPending); err != nil {
		return false, fmt.Errorf("check pending disposal request: %w", err)
	}
	return exists, nil
}
