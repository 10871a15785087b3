package models

import "time"

// AssetCondition captures the physical condition recorded for an asset.
type AssetCondition string

const (
	ConditionExcellent AssetCondition = "Excellent"
	ConditionGood      AssetCondition = "Good"
	ConditionFair      AssetCondition = "Fair"
	ConditionPoor      AssetCondition = "Poor"
	ConditionObsolete  AssetCondition = "Obsolete"
)

// Valid reports whether the condition is one of the known values.
func (c AssetCondition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionObsolete:
		return true
	}
	return false
}

// AssetStatus is the lifecycle status of an asset.
type AssetStatus string

const (
	AssetStatusActive           AssetStatus = "Active"
	AssetStatusDisposalPending  AssetStatus = "Disposal Pending"
	AssetStatusDisposed         AssetStatus = "Disposed"
	AssetStatusTransferred      AssetStatus = "Transferred"
	AssetStatusUnderMaintenance AssetStatus = "Under Maintenance"
)

// Asset is the subset of the asset register used by the disposal engine.
type Asset struct {
	ID         string         `db:"id" json:"id"`
	AssetTag   string         `db:"asset_tag" json:"asset_tag"`
	Name       string         `db:"name" json:"name"`
	Department string         `db:"department" json:"department"`
	Condition  AssetCondition `db:"condition" json:"condition"`
	Status     AssetStatus    `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ConditionChange describes the outcome of a condition update.
type ConditionChange struct {
	Before    Asset
	After     Asset
	Triggered bool
}
