package models

import "time"

// DecisionInput is what an approver submits for one queue item.
type DecisionInput struct {
	AssetID           string
	Action            DecisionAction
	SourceType        DisposalType
	DisposalRequestID *string
	ApprovedBy        string
	Notes             *string
}

// AssetStatusWrite moves an asset from one of the From statuses to To.
type AssetStatusWrite struct {
	AssetID string
	From    []AssetStatus
	To      AssetStatus
	// NoPendingRequest additionally requires that no manual request for the
	// asset is still Pending.
	NoPendingRequest bool
}

// RequestStatusWrite moves a manual request from From to To.
type RequestStatusWrite struct {
	RequestID string
	AssetID   string
	From      DisposalRequestStatus
	To        DisposalRequestStatus
}

// WriteSet is the full list of mutations for one disposal decision. All of
// them are applied in a single transaction or none is.
type WriteSet struct {
	Asset    *AssetStatusWrite
	Request  *RequestStatusWrite
	Approval DisposalApproval
	At       time.Time
}

// Undisposed lists the statuses an asset can be disposed from by a manual
// approval.
var Undisposed = []AssetStatus{
	AssetStatusActive,
	AssetStatusDisposalPending,
	AssetStatusTransferred,
	AssetStatusUnderMaintenance,
}
