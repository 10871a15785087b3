package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/repository"
	"github.com/noah-isme/procurement-api/pkg/database"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

type disposalAssetReader interface {
	FindByID(ctx context.Context, id string) (*models.Asset, error)
}

type disposalRequestStore interface {
	Create(ctx context.Context, req *models.DisposalRequest) error
	FindByID(ctx context.Context, id string) (*models.DisposalRequest, error)
	HasPending(ctx context.Context, assetID string) (bool, error)
}

type approvalStore interface {
	Apply(ctx context.Context, tx sqlx.ExtContext, ws models.WriteSet) error
	ListByAsset(ctx context.Context, assetID string) ([]models.DisposalApproval, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn database.TxFunc) error
}

// DisposalService handles manual request intake and approval decisions.
type DisposalService struct {
	assets    disposalAssetReader
	requests  disposalRequestStore
	approvals approvalStore
	users     userDirectory
	tx        txRunner
	audit     auditLogger
	policy    *DisposalPolicy
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// DisposalServiceDeps groups the collaborators of DisposalService.
type DisposalServiceDeps struct {
	Assets    disposalAssetReader
	Requests  disposalRequestStore
	Approvals approvalStore
	Users     userDirectory
	Tx        txRunner
	Audit     auditLogger
	Policy    *DisposalPolicy
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewDisposalService constructs the service.
func NewDisposalService(deps DisposalServiceDeps) *DisposalService {
	if deps.Policy == nil {
		deps.Policy = NewDisposalPolicy()
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &DisposalService{
		assets:    deps.Assets,
		requests:  deps.Requests,
		approvals: deps.Approvals,
		users:     deps.Users,
		tx:        deps.Tx,
		audit:     deps.Audit,
		policy:    deps.Policy,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// CreateRequest files a manual disposal request and returns its id.
func (s *DisposalService) CreateRequest(ctx context.Context, req dto.CreateDisposalRequest, actor models.Actor) (string, error) {
	req.AssetID = strings.TrimSpace(req.AssetID)
	req.RequestedBy = strings.TrimSpace(req.RequestedBy)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	actor, err := resolveActor(ctx, s.users, actor)
	if err != nil {
		return "", err
	}

	requesterID := req.RequestedBy
	if requesterID == "" {
		requesterID = actor.UserID
	}
	if requesterID == "" {
		return "", appErrors.Validation("requested_by is required")
	}
	if requesterID != actor.UserID && !s.policy.IsPrivileged(actor.Role) {
		return "", appErrors.Clone(appErrors.ErrForbidden, "cannot file disposal requests on behalf of another user")
	}

	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.NotFound("requester")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requester")
	}
	asset, err := s.loadAsset(ctx, req.AssetID)
	if err != nil {
		return "", err
	}
	if err := s.policy.CanCreateRequest(requester.Viewer(), *asset); err != nil {
		return "", err
	}

	if asset.Status == models.AssetStatusDisposed {
		return "", appErrors.Clone(appErrors.ErrConflict, "asset is already disposed")
	}
	pending, err := s.requests.HasPending(ctx, asset.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return "", appErrors.Clone(appErrors.ErrConflict, "asset already has a pending disposal request")
	}

	record := &models.DisposalRequest{
		AssetID:          asset.ID,
		Reason:           trimmedOrNil(req.Reason),
		SaleAmount:       req.SaleAmount,
		RecipientDetails: trimmedOrNil(req.RecipientDetails),
		Notes:            trimmedOrNil(req.Notes),
		RequestedBy:      requester.ID,
		Status:           models.DisposalRequestPending,
	}
	if method := trimmedOrNil(req.Method); method != nil {
		m := models.DisposalMethod(*method)
		record.Method = &m
	}
	if err := s.requests.Create(ctx, record); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create disposal request")
	}

	s.metrics.RecordRequestCreated()
	s.cache.Invalidate(ctx, DisposalCacheNamespace)
	emitAudit(ctx, s.audit, s.logger, actor, models.AuditActionDisposalRequestCreate, models.AuditResourceDisposalRequest, record.ID, nil, record)
	s.logger.Info("disposal request created",
		zap.String("request_id", record.ID),
		zap.String("asset_id", asset.ID),
		zap.String("requested_by", requester.ID),
	)
	return record.ID, nil
}

// Decide approves or rejects a queue item. Authorization and validation
// happen before any write; the write set is then applied in one
// transaction that is never retried.
func (s *DisposalService) Decide(ctx context.Context, req dto.DisposalDecisionRequest, actor models.Actor) (string, error) {
	actor, err := resolveActor(ctx, s.users, actor)
	if err != nil {
		s.metrics.RecordDecisionFailure("actor")
		return "", err
	}
	if err := s.policy.CanDecide(actor.Viewer); err != nil {
		s.metrics.RecordDecisionFailure("forbidden")
		return "", err
	}
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordDecisionFailure("validation")
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}

	ws, err := PlanDecision(models.DecisionInput{
		AssetID:           strings.TrimSpace(req.AssetID),
		Action:            req.Action,
		SourceType:        req.SourceType,
		DisposalRequestID: req.DisposalRequestID,
		ApprovedBy:        actor.UserID,
		Notes:             req.Notes,
	}, s.now())
	if err != nil {
		s.metrics.RecordDecisionFailure("validation")
		return "", err
	}

	if err := s.checkDecisionTargets(ctx, ws); err != nil {
		s.metrics.RecordDecisionFailure("precondition")
		return "", err
	}

	start := time.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.approvals.Apply(ctx, tx, ws)
	})
	s.metrics.ObserveDBQuery("disposal_decision_tx", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.metrics.RecordDecisionFailure("stale")
			return "", appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "disposal item changed since it was listed, refresh the queue")
		}
		s.metrics.RecordDecisionFailure("transaction")
		s.logger.Error("disposal decision rolled back",
			zap.String("asset_id", ws.Approval.AssetID),
			zap.String("source_type", string(ws.Approval.DisposalType)),
			zap.Error(err),
		)
		return "", appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, appErrors.ErrTransaction.Message)
	}

	s.metrics.RecordDecision(req.SourceType, req.Action)
	s.cache.Invalidate(ctx, DisposalCacheNamespace)
	s.logger.Info("disposal decision recorded",
		zap.String("asset_id", ws.Approval.AssetID),
		zap.String("source_type", string(ws.Approval.DisposalType)),
		zap.String("action", string(ws.Approval.ApprovalAction)),
		zap.String("approved_by", actor.UserID),
	)

	return fmt.Sprintf("Disposal %s successfully", ws.Approval.ApprovalAction), nil
}

// History returns the decision trail of an asset, subject to the read policy.
func (s *DisposalService) History(ctx context.Context, assetID string, viewer models.Viewer) ([]models.DisposalApproval, error) {
	asset, err := s.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.policy.ResolveReadDepartment(viewer, asset.Department); err != nil {
		return nil, err
	}
	items, err := s.approvals.ListByAsset(ctx, asset.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal history")
	}
	if items == nil {
		items = []models.DisposalApproval{}
	}
	return items, nil
}

// checkDecisionTargets turns missing or already-decided targets into typed
// errors. The guarded updates in Apply still catch concurrent changes.
func (s *DisposalService) checkDecisionTargets(ctx context.Context, ws models.WriteSet) error {
	asset, err := s.loadAsset(ctx, ws.Approval.AssetID)
	if err != nil {
		return err
	}

	if ws.Request == nil {
		if asset.Status != models.AssetStatusDisposalPending {
			return appErrors.Clone(appErrors.ErrConflict, "asset is not pending disposal")
		}
		pending, err := s.requests.HasPending(ctx, asset.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
		}
		if pending {
			return appErrors.Clone(appErrors.ErrConflict, "asset has a pending manual disposal request, decide that request instead")
		}
		return nil
	}

	request, err := s.requests.FindByID(ctx, ws.Request.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFound("disposal request")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal request")
	}
	if request.AssetID != asset.ID {
		return appErrors.Validation("disposal request does not belong to the asset")
	}
	if request.Status != models.DisposalRequestPending {
		return appErrors.Clone(appErrors.ErrConflict, "disposal request has already been decided")
	}
	if ws.Asset != nil && asset.Status == models.AssetStatusDisposed {
		return appErrors.Clone(appErrors.ErrConflict, "asset is already disposed")
	}
	return nil
}

func (s *DisposalService) loadAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.assets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("asset")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	return asset, nil
}
