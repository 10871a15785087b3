package dto

import "github.com/noah-isme/procurement-api/internal/models"

// UpdateConditionRequest sets the recorded condition of an asset.
type UpdateConditionRequest struct {
	Condition models.AssetCondition `json:"condition" validate:"required,oneof=Excellent Good Fair Poor Obsolete"`
}

// ConditionUpdateResult reports the stored asset and whether the update
// queued it for disposal.
type ConditionUpdateResult struct {
	Asset             models.Asset `json:"asset"`
	DisposalTriggered bool         `json:"disposal_triggered"`
}
