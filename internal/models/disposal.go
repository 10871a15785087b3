package models

import (
	"fmt"
	"time"
)

// DisposalRequestStatus is the lifecycle status of a manual request.
type DisposalRequestStatus string

const (
	DisposalRequestPending  DisposalRequestStatus = "Pending"
	DisposalRequestApproved DisposalRequestStatus = "Approved"
	DisposalRequestRejected DisposalRequestStatus = "Rejected"
)

// DisposalMethod enumerates how an asset leaves the register.
type DisposalMethod string

const (
	DisposalMethodSale        DisposalMethod = "Sale"
	DisposalMethodDonation    DisposalMethod = "Donation"
	DisposalMethodRecycling   DisposalMethod = "Recycling"
	DisposalMethodDestruction DisposalMethod = "Destruction"
	DisposalMethodTransfer    DisposalMethod = "Transfer"
)

// DisposalRequest is a user-submitted disposal candidate.
type DisposalRequest struct {
	ID               string                `db:"id" json:"id"`
	AssetID          string                `db:"asset_id" json:"asset_id"`
	Reason           *string               `db:"reason" json:"reason,omitempty"`
	Method           *DisposalMethod       `db:"method" json:"method,omitempty"`
	SaleAmount       *float64              `db:"sale_amount" json:"sale_amount,omitempty"`
	RecipientDetails *string               `db:"recipient_details" json:"recipient_details,omitempty"`
	Notes            *string               `db:"notes" json:"notes,omitempty"`
	RequestedBy      string                `db:"requested_by" json:"requested_by"`
	Status           DisposalRequestStatus `db:"status" json:"status"`
	RequestDate      time.Time             `db:"request_date" json:"request_date"`
	UpdatedAt        time.Time             `db:"updated_at" json:"updated_at"`
}

// DisposalType tells which source a decision was made on.
type DisposalType string

const (
	DisposalTypeAutomatic DisposalType = "automatic"
	DisposalTypeManual    DisposalType = "manual"
)

// ApprovalAction is the outcome stored in the approval trail.
type ApprovalAction string

const (
	ApprovalActionApproved ApprovalAction = "approved"
	ApprovalActionRejected ApprovalAction = "rejected"
)

// DecisionAction is the verb an approver submits.
type DecisionAction string

const (
	DecisionApprove DecisionAction = "approve"
	DecisionReject  DecisionAction = "reject"
)

// Outcome maps the submitted verb to the recorded action.
func (a DecisionAction) Outcome() (ApprovalAction, error) {
	switch a {
	case DecisionApprove:
		return ApprovalActionApproved, nil
	case DecisionReject:
		return ApprovalActionRejected, nil
	}
	return "", fmt.Errorf("unknown decision action %q", a)
}

// DisposalApproval is one immutable row of the decision trail.
type DisposalApproval struct {
	ID                string         `db:"id" json:"id"`
	AssetID           string         `db:"asset_id" json:"asset_id"`
	DisposalType      DisposalType   `db:"disposal_type" json:"disposal_type"`
	DisposalRequestID *string        `db:"disposal_request_id" json:"disposal_request_id,omitempty"`
	ApprovedBy        string         `db:"approved_by" json:"approved_by"`
	ApprovalAction    ApprovalAction `db:"approval_action" json:"approval_action"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
	ApprovalDate      time.Time      `db:"approval_date" json:"approval_date"`
}
