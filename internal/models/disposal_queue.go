package models

import (
	"fmt"
	"time"
)

// QueueType selects between undecided and decided disposal items.
type QueueType string

const (
	QueueTypeRequests QueueType = "requests"
	QueueTypeRecords  QueueType = "records"
)

// RecordStatus optionally narrows the records view.
type RecordStatus string

const (
	RecordStatusAny      RecordStatus = ""
	RecordStatusApproved RecordStatus = "approved"
	RecordStatusRejected RecordStatus = "rejected"
)

// QueueStatus is the status reported on a unified queue row.
const (
	QueueStatusPending  = "Pending"
	QueueStatusApproved = "Approved"
	QueueStatusRejected = "Rejected"
)

// automaticDisposalReason is reported for condition-driven disposals.
var automaticDisposalReason = fmt.Sprintf("Automatic disposal (asset condition: %s)", ConditionObsolete)

// DisposalRecord is the shape shared by every row of the disposal queue,
// whichever source it came from. Fields without meaning for the automatic
// source are nil.
type DisposalRecord struct {
	ID              string       `json:"id"`
	AssetID         string       `json:"asset_id"`
	AssetName       string       `json:"asset_name"`
	AssetTag        string       `json:"asset_tag"`
	Department      string       `json:"department"`
	Reason          *string      `json:"reason"`
	Method          *string      `json:"method"`
	RequestedBy     *string      `json:"requested_by"`
	RequestedByName *string      `json:"requested_by_name"`
	Status          string       `json:"status"`
	RequestDate     time.Time    `json:"request_date"`
	SourceType      DisposalType `json:"source_type"`
}

// DisposalSource is one disposal candidate, automatic or manual.
type DisposalSource interface {
	Type() DisposalType
	Project() DisposalRecord
}

// AutomaticSource is an asset flagged by its own status. Decided is set for
// assets that already left the queue as Disposed.
type AutomaticSource struct {
	Asset   Asset
	Decided bool
}

// Type implements DisposalSource.
func (AutomaticSource) Type() DisposalType { return DisposalTypeAutomatic }

// Project implements DisposalSource. The asset id doubles as the row id.
func (s AutomaticSource) Project() DisposalRecord {
	rec := DisposalRecord{
		ID:          s.Asset.ID,
		AssetID:     s.Asset.ID,
		AssetName:   s.Asset.Name,
		AssetTag:    s.Asset.AssetTag,
		Department:  s.Asset.Department,
		Status:      QueueStatusPending,
		RequestDate: s.Asset.UpdatedAt,
		SourceType:  DisposalTypeAutomatic,
	}
	if s.Decided {
		reason := automaticDisposalReason
		rec.Reason = &reason
		rec.Status = QueueStatusApproved
	}
	return rec
}

// ManualSource is a disposal request joined with its asset and requester.
type ManualSource struct {
	Request       DisposalRequest
	Asset         Asset
	RequesterName string
}

// Type implements DisposalSource.
func (ManualSource) Type() DisposalType { return DisposalTypeManual }

// Project implements DisposalSource.
func (s ManualSource) Project() DisposalRecord {
	requestedBy := s.Request.RequestedBy
	rec := DisposalRecord{
		ID:          s.Request.ID,
		AssetID:     s.Request.AssetID,
		AssetName:   s.Asset.Name,
		AssetTag:    s.Asset.AssetTag,
		Department:  s.Asset.Department,
		Reason:      s.Request.Reason,
		RequestedBy: &requestedBy,
		Status:      string(s.Request.Status),
		RequestDate: s.Request.RequestDate,
		SourceType:  DisposalTypeManual,
	}
	if s.Request.Method != nil {
		method := string(*s.Request.Method)
		rec.Method = &method
	}
	if s.RequesterName != "" {
		name := s.RequesterName
		rec.RequestedByName = &name
	}
	return rec
}
