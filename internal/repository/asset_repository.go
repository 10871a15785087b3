package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/procurement-api/internal/models"
)

// StatusRule decides the status an asset takes when its condition changes.
// The boolean reports whether the rule changed the status.
type StatusRule func(current models.AssetStatus, condition models.AssetCondition) (models.AssetStatus, bool)

const assetColumns = `id, asset_tag, name, department, condition, status, created_at, updated_at`

// AssetRepository reads assets and writes the two fields the disposal engine owns.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindByID returns an asset by identifier.
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*models.Asset, error) {
	const query = `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 LIMIT 1`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find asset by id: %w", err)
	}
	return &asset, nil
}

// UpdateCondition locks the asset row, applies rule to derive the new status
// and stores condition and status in the same statement.
func (r *AssetRepository) UpdateCondition(ctx context.Context, id string, condition models.AssetCondition, rule StatusRule) (change *models.ConditionChange, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin asset condition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Asset
	const selectQuery = `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, selectQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock asset: %w", err)
	}

	next, triggered := rule(current.Status, condition)
	updated := current
	updated.Condition = condition
	updated.Status = next
	updated.UpdatedAt = time.Now().UTC()

	const updateQuery = `UPDATE assets SET condition = $1, status = $2, updated_at = $3 WHERE id = $4`
	if _, err = tx.ExecContext(ctx, updateQuery, updated.Condition, updated.Status, updated.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("update asset condition: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit asset condition: %w", err)
	}
	return &models.ConditionChange{Before: current, After: updated, Triggered: triggered}, nil
}
