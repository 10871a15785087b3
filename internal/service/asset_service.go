package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/repository"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// DisposalCacheNamespace prefixes every cached disposal queue payload.
const DisposalCacheNamespace = "disposals"

// NextStatusForCondition is the condition-triggered transition rule. Saving
// Obsolete moves the asset to Disposal Pending unless it is already pending
// or disposed. Every other condition leaves the status alone.
func NextStatusForCondition(current models.AssetStatus, condition models.AssetCondition) (models.AssetStatus, bool) {
	if condition != models.ConditionObsolete {
		return current, false
	}
	switch current {
	case models.AssetStatusDisposalPending, models.AssetStatusDisposed:
		return current, false
	}
	return models.AssetStatusDisposalPending, true
}

type assetStore interface {
	FindByID(ctx context.Context, id string) (*models.Asset, error)
	UpdateCondition(ctx context.Context, id string, condition models.AssetCondition, rule repository.StatusRule) (*models.ConditionChange, error)
}

// AssetService applies condition edits and the disposal rule they trigger.
type AssetService struct {
	assets    assetStore
	users     userDirectory
	audit     auditLogger
	policy    *DisposalPolicy
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssetService constructs an AssetService.
func NewAssetService(assets assetStore, users userDirectory, audit auditLogger, policy *DisposalPolicy, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssetService {
	if policy == nil {
		policy = NewDisposalPolicy()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{assets: assets, users: users, audit: audit, policy: policy, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// UpdateCondition stores a new condition for the asset and, in the same
// write, applies NextStatusForCondition.
func (s *AssetService) UpdateCondition(ctx context.Context, assetID string, req dto.UpdateConditionRequest, actor models.Actor) (*dto.ConditionUpdateResult, error) {
	if assetID == "" {
		return nil, appErrors.Validation("asset id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "condition must be one of Excellent, Good, Fair, Poor, Obsolete")
	}
	actor, err := resolveActor(ctx, s.users, actor)
	if err != nil {
		return nil, err
	}

	asset, err := s.assets.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("asset")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	if err := s.policy.CanEditAsset(actor.Viewer, *asset); err != nil {
		return nil, err
	}

	change, err := s.assets.UpdateCondition(ctx, assetID, req.Condition, NextStatusForCondition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("asset")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update asset condition")
	}

	if change.Triggered {
		s.metrics.RecordAutoFlagged()
		s.logger.Info("asset queued for disposal",
			zap.String("asset_id", assetID),
			zap.String("department", change.After.Department),
			zap.String("previous_status", string(change.Before.Status)),
		)
	}
	if change.Before.Status != change.After.Status {
		s.cache.Invalidate(ctx, DisposalCacheNamespace)
	}

	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionAssetConditionUpdate, models.AuditResourceAsset, assetID,
		map[string]interface{}{"condition": change.Before.Condition, "status": change.Before.Status},
		map[string]interface{}{"condition": change.After.Condition, "status": change.After.Status, "disposal_triggered": change.Triggered},
	)

	return &dto.ConditionUpdateResult{Asset: change.After, DisposalTriggered: change.Triggered}, nil
}
