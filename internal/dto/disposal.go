package dto

import "github.com/noah-isme/procurement-api/internal/models"

// DisposalQueueQuery mirrors the queue listing filters.
type DisposalQueueQuery struct {
	Type         models.QueueType    `form:"type" json:"type"`
	RecordStatus models.RecordStatus `form:"record_status" json:"record_status"`
	Department   string              `form:"department" json:"department"`
	UserID       string              `form:"user_id" json:"user_id"`
}

// DisposalExportQuery adds the output format to the queue filters.
type DisposalExportQuery struct {
	DisposalQueueQuery
	Format string `form:"format" json:"format"`
}

// CreateDisposalRequest payload for submitting a manual disposal.
type CreateDisposalRequest struct {
	AssetID          string   `json:"asset_id" validate:"required"`
	RequestedBy      string   `json:"requested_by"`
	Reason           *string  `json:"reason" validate:"omitempty,max=2000"`
	Method           *string  `json:"method" validate:"omitempty,oneof=Sale Donation Recycling Destruction Transfer"`
	SaleAmount       *float64 `json:"sale_amount" validate:"omitempty,gte=0"`
	RecipientDetails *string  `json:"recipient_details" validate:"omitempty,max=2000"`
	Notes            *string  `json:"notes" validate:"omitempty,max=2000"`
}

// DisposalDecisionRequest captures an approver decision on a queue item.
type DisposalDecisionRequest struct {
	AssetID           string                `json:"asset_id" validate:"required"`
	Action            models.DecisionAction `json:"action" validate:"required,oneof=approve reject"`
	SourceType        models.DisposalType   `json:"source_type" validate:"required,oneof=automatic manual"`
	DisposalRequestID *string               `json:"disposal_request_id"`
	Notes             *string               `json:"notes" validate:"omitempty,max=2000"`
}

// CreateDisposalResponse is returned after a request is stored.
type CreateDisposalResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
}

// DisposalDecisionResponse is returned after a decision commits.
type DisposalDecisionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DisposalQueueResponse lists unified queue rows.
type DisposalQueueResponse struct {
	Success   bool                    `json:"success"`
	Disposals []models.DisposalRecord `json:"disposals"`
}
