package service

import (
	"strings"
	"time"

	"github.com/noah-isme/procurement-api/internal/models"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// PlanDecision validates a decision and derives every mutation it causes.
// It performs no I/O; the returned WriteSet is applied atomically by the
// approval repository.
//
//	automatic + approve  asset Disposal Pending -> Disposed
//	automatic + reject   asset Disposal Pending -> Active
//	manual + approve     request Pending -> Approved, asset -> Disposed
//	manual + reject      request Pending -> Rejected, asset untouched
//
// Exactly one approval row is planned in every branch.
func PlanDecision(in models.DecisionInput, now time.Time) (models.WriteSet, error) {
	if strings.TrimSpace(in.AssetID) == "" {
		return models.WriteSet{}, appErrors.Validation("asset_id is required")
	}
	if strings.TrimSpace(in.ApprovedBy) == "" {
		return models.WriteSet{}, appErrors.Validation("approved_by is required")
	}
	outcome, err := in.Action.Outcome()
	if err != nil {
		return models.WriteSet{}, appErrors.Validation("action must be approve or reject")
	}

	requestID := ""
	if in.DisposalRequestID != nil {
		requestID = strings.TrimSpace(*in.DisposalRequestID)
	}

	ws := models.WriteSet{
		At: now.UTC(),
		Approval: models.DisposalApproval{
			AssetID:        in.AssetID,
			DisposalType:   in.SourceType,
			ApprovedBy:     in.ApprovedBy,
			ApprovalAction: outcome,
			Notes:          trimmedOrNil(in.Notes),
			ApprovalDate:   now.UTC(),
		},
	}

	switch in.SourceType {
	case models.DisposalTypeAutomatic:
		if requestID != "" {
			return models.WriteSet{}, appErrors.Validation("disposal_request_id must be empty for automatic disposals")
		}
		target := models.AssetStatusDisposed
		if in.Action == models.DecisionReject {
			target = models.AssetStatusActive
		}
		ws.Asset = &models.AssetStatusWrite{
			AssetID:          in.AssetID,
			From:             []models.AssetStatus{models.AssetStatusDisposalPending},
			To:               target,
			NoPendingRequest: true,
		}
	case models.DisposalTypeManual:
		if requestID == "" {
			return models.WriteSet{}, appErrors.Validation("disposal_request_id is required for manual disposals")
		}
		ws.Approval.DisposalRequestID = &requestID
		target := models.DisposalRequestApproved
		if in.Action == models.DecisionReject {
			target = models.DisposalRequestRejected
		}
		ws.Request = &models.RequestStatusWrite{
			RequestID: requestID,
			AssetID:   in.AssetID,
			From:      models.DisposalRequestPending,
			To:        target,
		}
		if in.Action == models.DecisionApprove {
			ws.Asset = &models.AssetStatusWrite{
				AssetID: in.AssetID,
				From:    models.Undisposed,
				To:      models.AssetStatusDisposed,
			}
		}
	default:
		return models.WriteSet{}, appErrors.Validation("source_type must be automatic or manual")
	}

	return ws, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
