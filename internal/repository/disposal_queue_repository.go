package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/procurement-api/internal/models"
)

// ManualQueueFilter narrows the manual half of the disposal queue.
type ManualQueueFilter struct {
	Statuses   []models.DisposalRequestStatus
	Department string
}

// AutomaticQueueFilter narrows the automatic half of the disposal queue.
type AutomaticQueueFilter struct {
	Status     models.AssetStatus
	Department string
	// ExcludeRequestStatus drops assets that have a manual request in this
	// status, since that request already represents the asset in the queue.
	ExcludeRequestStatus models.DisposalRequestStatus
}

// DisposalQueueRepository reads both disposal sources for the unified queue.
type DisposalQueueRepository struct {
	db *sqlx.DB
}

// NewDisposalQueueRepository constructs the repository.
func NewDisposalQueueRepository(db *sqlx.DB) *DisposalQueueRepository {
	return &DisposalQueueRepository{db: db}
}

type manualQueueRow struct {
	ID               string                       `db:"id"`
	AssetID          string                       `db:"asset_id"`
	Reason           *string                      `db:"reason"`
	Method           *models.DisposalMethod       `db:"method"`
	SaleAmount       *float64                     `db:"sale_amount"`
	RecipientDetails *string                      `db:"recipient_details"`
	Notes            *string                      `db:"notes"`
	RequestedBy      string                       `db:"requested_by"`
	Status           models.DisposalRequestStatus `db:"status"`
	RequestDate      time.Time                    `db:"request_date"`
	UpdatedAt        time.Time                    `db:"updated_at"`
	AssetName        string                       `db:"asset_name"`
	AssetTag         string                       `db:"asset_tag"`
	Department       string                       `db:"department"`
	RequesterName    sql.NullString               `db:"requester_name"`
}

func (r *DisposalQueueRepository) queryer(q sqlx.QueryerContext) sqlx.QueryerContext {
	if q == nil {
		return r.db
	}
	return q
}

// ListManual returns disposal requests joined with their asset and requester.
// q is the transaction to read through; nil reads through the pool.
func (r *DisposalQueueRepository) ListManual(ctx context.Context, q sqlx.QueryerContext, filter ManualQueueFilter) ([]models.ManualSource, error) {
	var builder strings.Builder
	builder.WriteString(`
SELECT dr.id, dr.asset_id, dr.reason, dr.method, dr.sale_amount, dr.recipient_details, dr.notes,
	dr.requested_by, dr.status, dr.request_date, dr.updated_at,
	a.name AS asset_name, a.asset_tag, a.department,
	u.full_name AS requester_name
FROM disposal_requests dr
JOIN assets a ON a.id = dr.asset_id
LEFT JOIN users u ON u.id = dr.requested_by
WHERE 1=1`)

	var args []interface{}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		args = append(args, pq.Array(statuses))
		builder.WriteString(fmt.Sprintf(" AND dr.status = ANY($%d)", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND a.department = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY dr.request_date DESC, dr.id ASC")

	var rows []manualQueueRow
	if err := sqlx.SelectContext(ctx, r.queryer(q), &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list manual disposals: %w", err)
	}

	out := make([]models.ManualSource, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ManualSource{
			Request: models.DisposalRequest{
				ID:               row.ID,
				AssetID:          row.AssetID,
				Reason:           row.Reason,
				Method:           row.Method,
				SaleAmount:       row.SaleAmount,
				RecipientDetails: row.RecipientDetails,
				Notes:            row.Notes,
				RequestedBy:      row.RequestedBy,
				Status:           row.Status,
				RequestDate:      row.RequestDate,
				UpdatedAt:        row.UpdatedAt,
			},
			Asset: models.Asset{
				ID:         row.AssetID,
				Name:       row.AssetName,
				AssetTag:   row.AssetTag,
				Department: row.Department,
			},
			RequesterName: row.RequesterName.String,
		})
	}
	return out, nil
}

// ListAutomatic returns assets whose own status places them in the queue.
func (r *DisposalQueueRepository) ListAutomatic(ctx context.Context, q sqlx.QueryerContext, filter AutomaticQueueFilter) ([]models.AutomaticSource, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT a.id, a.asset_tag, a.name, a.department, a.condition, a.status, a.created_at, a.updated_at FROM assets a WHERE a.status = $1`)
	args := []interface{}{filter.Status}

	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND a.department = $%d", len(args)))
	}
	if filter.ExcludeRequestStatus != "" {
		args = append(args, filter.ExcludeRequestStatus)
		builder.WriteString(fmt.Sprintf(" AND NOT EXISTS (SELECT 1 FROM disposal_requests dr WHERE dr.asset_id = a.id AND dr.status = $%d)", len(args)))
	}
	builder.WriteString(" ORDER BY a.updated_at DESC, a.id ASC")

	var assets []models.Asset
	if err := sqlx.SelectContext(ctx, r.queryer(q), &assets, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list automatic disposals: %w", err)
	}

	decided := filter.Status == models.AssetStatusDisposed
	out := make([]models.AutomaticSource, 0, len(assets))
	for _, asset := range assets {
		out = append(out, models.AutomaticSource{Asset: asset, Decided: decided})
	}
	return out, nil
}
