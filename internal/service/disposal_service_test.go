package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/repository"
	"github.com/noah-isme/procurement-api/pkg/database"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

// disposalState is an in-memory stand-in for the assets, disposal_requests
// and disposal_approvals tables.
type disposalState struct {
	assets    map[string]*models.Asset
	requests  map[string]*models.DisposalRequest
	approvals []models.DisposalApproval
	insertErr error
	commits   int
	rollbacks int
}

func newDisposalState() *disposalState {
	return &disposalState{assets: map[string]*models.Asset{}, requests: map[string]*models.DisposalRequest{}}
}

type stateAssets struct{ s *disposalState }

func (a stateAssets) FindByID(_ context.Context, id string) (*models.Asset, error) {
	asset, ok := a.s.assets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *asset
	return &cp, nil
}

type stateRequests struct{ s *disposalState }

func (r stateRequests) Create(_ context.Context, req *models.DisposalRequest) error {
	req.ID = "req-" + req.AssetID
	req.RequestDate = time.Now()
	cp := *req
	r.s.requests[req.ID] = &cp
	return nil
}

func (r stateRequests) FindByID(_ context.Context, id string) (*models.DisposalRequest, error) {
	req, ok := r.s.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *req
	return &cp, nil
}

func (r stateRequests) HasPending(_ context.Context, assetID string) (bool, error) {
	for _, req := range r.s.requests {
		if req.AssetID == assetID && req.Status == models.DisposalRequestPending {
			return true, nil
		}
	}
	return false, nil
}

type stateApprovals struct{ s *disposalState }

// Apply validates every guard before mutating anything so a failure leaves
// the state untouched, mirroring a rolled back transaction.
func (a stateApprovals) Apply(ctx context.Context, _ sqlx.ExtContext, ws models.WriteSet) error {
	if ws.Request != nil {
		req, ok := a.s.requests[ws.Request.RequestID]
		if !ok || req.AssetID != ws.Request.AssetID || req.Status != ws.Request.From {
			return repository.ErrStaleTransition
		}
	}
	if ws.Asset != nil {
		asset, ok := a.s.assets[ws.Asset.AssetID]
		if !ok || !containsStatus(ws.Asset.From, asset.Status) {
			return repository.ErrStaleTransition
		}
		if ws.Asset.NoPendingRequest {
			if pending, _ := (stateRequests{a.s}).HasPending(ctx, asset.ID); pending {
				return repository.ErrStaleTransition
			}
		}
	}
	if a.s.insertErr != nil {
		return a.s.insertErr
	}
	if ws.Request != nil {
		a.s.requests[ws.Request.RequestID].Status = ws.Request.To
	}
	if ws.Asset != nil {
		a.s.assets[ws.Asset.AssetID].Status = ws.Asset.To
	}
	a.s.approvals = append(a.s.approvals, ws.Approval)
	return nil
}

func (a stateApprovals) ListByAsset(_ context.Context, assetID string) ([]models.DisposalApproval, error) {
	var out []models.DisposalApproval
	for _, ap := range a.s.approvals {
		if ap.AssetID == assetID {
			out = append(out, ap)
		}
	}
	return out, nil
}

type stateTx struct{ s *disposalState }

func (t stateTx) WithinTx(ctx context.Context, fn database.TxFunc) error {
	if err := fn(ctx, nil); err != nil {
		t.s.rollbacks++
		return err
	}
	t.s.commits++
	return nil
}

func containsStatus(list []models.AssetStatus, status models.AssetStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func newDisposalServiceFixture() (*DisposalService, *disposalState, *MetricsService) {
	state := newDisposalState()
	state.assets["A1"] = &models.Asset{ID: "A1", Department: "Engineering", Condition: models.ConditionObsolete, Status: models.AssetStatusDisposalPending}
	state.assets["A2"] = &models.Asset{ID: "A2", Department: "Engineering", Condition: models.ConditionPoor, Status: models.AssetStatusActive}
	state.assets["A3"] = &models.Asset{ID: "A3", Department: "Finance", Condition: models.ConditionFair, Status: models.AssetStatusActive}
	state.requests["R2"] = &models.DisposalRequest{ID: "R2", AssetID: "A2", RequestedBy: "u-eng", Status: models.DisposalRequestPending}

	users := userDirectoryStub{
		"u-eng":     {ID: "u-eng", Role: models.RoleStaff, Department: "Engineering", Active: true},
		"u-it":      {ID: "u-it", Role: models.RoleStaff, Department: "IT", Active: true},
		"u-admin":   {ID: "u-admin", Role: models.RoleAdmin, Active: true},
		"u-demoted": {ID: "u-demoted", Role: models.RoleStaff, Department: "IT", Active: true},
		"u-off":     {ID: "u-off", Role: models.RoleAdmin},
	}
	metrics := NewMetricsService()
	svc := NewDisposalService(DisposalServiceDeps{
		Assets:    stateAssets{state},
		Requests:  stateRequests{state},
		Approvals: stateApprovals{state},
		Users:     users,
		Tx:        stateTx{state},
		Audit:     &auditStub{},
		Metrics:   metrics,
	})
	return svc, state, metrics
}

var adminActor = models.Actor{Viewer: models.Viewer{UserID: "u-admin", Role: models.RoleAdmin}}

func TestDecideAutomaticApprove(t *testing.T) {
	svc, state, metrics := newDisposalServiceFixture()

	msg, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Disposal approved successfully", msg)
	assert.Equal(t, models.AssetStatusDisposed, state.assets["A1"].Status)
	require.Len(t, state.approvals, 1)
	assert.Equal(t, models.ApprovalActionApproved, state.approvals[0].ApprovalAction)
	assert.Equal(t, models.DisposalTypeAutomatic, state.approvals[0].DisposalType)
	assert.Equal(t, "u-admin", state.approvals[0].ApprovedBy)
	assert.Equal(t, 1, state.commits)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.disposalDecisions.WithLabelValues("automatic", "approve")))
}

func TestDecideAutomaticReject(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionReject, SourceType: models.DisposalTypeAutomatic}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusActive, state.assets["A1"].Status)
	require.Len(t, state.approvals, 1)
	assert.Equal(t, models.ApprovalActionRejected, state.approvals[0].ApprovalAction)
}

func TestDecideManualApproveUpdatesBoth(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	requestID := "R2"

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual, DisposalRequestID: &requestID}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.DisposalRequestApproved, state.requests["R2"].Status)
	assert.Equal(t, models.AssetStatusDisposed, state.assets["A2"].Status)
	require.Len(t, state.approvals, 1)
	require.NotNil(t, state.approvals[0].DisposalRequestID)
	assert.Equal(t, "R2", *state.approvals[0].DisposalRequestID)
}

func TestDecideManualRejectLeavesAsset(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	requestID := "R2"

	msg, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionReject, SourceType: models.DisposalTypeManual, DisposalRequestID: &requestID}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Disposal rejected successfully", msg)
	assert.Equal(t, models.DisposalRequestRejected, state.requests["R2"].Status)
	assert.Equal(t, models.AssetStatusActive, state.assets["A2"].Status)
	assert.Len(t, state.approvals, 1)

	_, err = svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual, DisposalRequestID: &requestID}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Len(t, state.approvals, 1)
}

func TestDecideRejectsNonPrivilegedBeforeAnyWork(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	head := models.Actor{Viewer: models.Viewer{UserID: "u-eng", Role: models.RoleDepartmentHead, Department: "Engineering"}}

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}, head)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Zero(t, state.commits+state.rollbacks)
	assert.Equal(t, models.AssetStatusDisposalPending, state.assets["A1"].Status)
}

func TestDecideUsesRoleFromUserStore(t *testing.T) {
	svc, state, metrics := newDisposalServiceFixture()
	req := dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}

	// token issued before the demotion still carries the admin role
	stale := models.Actor{Viewer: models.Viewer{UserID: "u-demoted", Role: models.RoleAdmin}}
	_, err := svc.Decide(context.Background(), req, stale)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	inactive := models.Actor{Viewer: models.Viewer{UserID: "u-off", Role: models.RoleAdmin}}
	_, err = svc.Decide(context.Background(), req, inactive)
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)

	assert.Zero(t, state.commits+state.rollbacks)
	assert.Equal(t, models.AssetStatusDisposalPending, state.assets["A1"].Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.decisionFailures.WithLabelValues("forbidden")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.decisionFailures.WithLabelValues("actor")))

	// a promotion takes effect without a new token
	promoted := models.Actor{Viewer: models.Viewer{UserID: "u-admin", Role: models.RoleStaff, Department: "IT"}}
	_, err = svc.Decide(context.Background(), req, promoted)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusDisposed, state.assets["A1"].Status)
}

func TestCreateRequestUsesDepartmentFromUserStore(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	state.assets["A9"] = &models.Asset{ID: "A9", Department: "IT", Status: models.AssetStatusActive}

	// the token still claims Engineering, the user store moved u-it to IT
	stale := models.Actor{Viewer: models.Viewer{UserID: "u-it", Role: models.RoleStaff, Department: "Engineering"}}
	_, err := svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A2"}, stale)
	assert.ErrorIs(t, err, appErrors.ErrDepartmentScope)

	id, err := svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A9"}, stale)
	require.NoError(t, err)
	assert.Equal(t, "u-it", state.requests[id].RequestedBy)

	// an on-behalf request needs privilege in the user store, not the token
	forged := models.Actor{Viewer: models.Viewer{UserID: "u-demoted", Role: models.RoleAdmin}}
	_, err = svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A3", RequestedBy: "u-eng"}, forged)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDecideManualWithoutRequestIDIsValidationError(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, state.commits+state.rollbacks)
}

func TestDecideNotFound(t *testing.T) {
	svc, _, _ := newDisposalServiceFixture()
	missing := "R404"

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A404", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual, DisposalRequestID: &missing}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDecideRequestForOtherAsset(t *testing.T) {
	svc, _, _ := newDisposalServiceFixture()
	requestID := "R2"

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A3", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual, DisposalRequestID: &requestID}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDecideAutomaticOnActiveAssetConflicts(t *testing.T) {
	svc, _, _ := newDisposalServiceFixture()

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A3", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDecideTransactionFailureRollsBackEverything(t *testing.T) {
	svc, state, metrics := newDisposalServiceFixture()
	state.insertErr = errors.New("connection reset")
	requestID := "R2"

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A2", Action: models.DecisionApprove, SourceType: models.DisposalTypeManual, DisposalRequestID: &requestID}, adminActor)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TRANSACTION_FAILED", appErr.Code)
	assert.Equal(t, appErrors.ErrTransaction.Message, appErr.Message)

	assert.Equal(t, 1, state.rollbacks)
	assert.Equal(t, models.DisposalRequestPending, state.requests["R2"].Status)
	assert.Equal(t, models.AssetStatusActive, state.assets["A2"].Status)
	assert.Empty(t, state.approvals)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.decisionFailures.WithLabelValues("transaction")))
}

func TestDecideStaleTransitionIsConflict(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	svc.tx = txFunc(func(ctx context.Context, fn database.TxFunc) error {
		// another approver wins between the pre-check and the write
		state.assets["A1"].Status = models.AssetStatusActive
		return stateTx{state}.WithinTx(ctx, fn)
	})

	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionApprove, SourceType: models.DisposalTypeAutomatic}, adminActor)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.ErrorIs(t, err, repository.ErrStaleTransition)
	assert.Empty(t, state.approvals)
}

type txFunc func(ctx context.Context, fn database.TxFunc) error

func (f txFunc) WithinTx(ctx context.Context, fn database.TxFunc) error { return f(ctx, fn) }

func TestCreateRequest(t *testing.T) {
	svc, state, metrics := newDisposalServiceFixture()
	actor := models.Actor{Viewer: models.Viewer{UserID: "u-it", Role: models.RoleStaff, Department: "IT"}}
	state.assets["A9"] = &models.Asset{ID: "A9", Department: "IT", Status: models.AssetStatusActive}
	reason := "  Screen failure "
	method := "Recycling"

	id, err := svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A9", Reason: &reason, Method: &method}, actor)
	require.NoError(t, err)
	stored := state.requests[id]
	require.NotNil(t, stored)
	assert.Equal(t, "u-it", stored.RequestedBy)
	assert.Equal(t, models.DisposalRequestPending, stored.Status)
	require.NotNil(t, stored.Reason)
	assert.Equal(t, "Screen failure", *stored.Reason)
	require.NotNil(t, stored.Method)
	assert.Equal(t, models.DisposalMethodRecycling, *stored.Method)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsCreated))

	_, err = svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A9"}, actor)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCreateRequestFailures(t *testing.T) {
	svc, state, _ := newDisposalServiceFixture()
	itActor := models.Actor{Viewer: models.Viewer{UserID: "u-it", Role: models.RoleStaff, Department: "IT"}}
	state.assets["A8"] = &models.Asset{ID: "A8", Department: "IT", Status: models.AssetStatusDisposed}
	badMethod := "Auction"
	negative := -5.0

	cases := []struct {
		name  string
		req   dto.CreateDisposalRequest
		actor models.Actor
		want  *appErrors.Error
	}{
		{"missing asset id", dto.CreateDisposalRequest{}, itActor, appErrors.ErrValidation},
		{"unknown method", dto.CreateDisposalRequest{AssetID: "A3", Method: &badMethod}, itActor, appErrors.ErrValidation},
		{"negative sale amount", dto.CreateDisposalRequest{AssetID: "A3", SaleAmount: &negative}, itActor, appErrors.ErrValidation},
		{"unknown requester", dto.CreateDisposalRequest{AssetID: "A3", RequestedBy: "ghost"}, adminActor, appErrors.ErrNotFound},
		{"unknown asset", dto.CreateDisposalRequest{AssetID: "A404"}, itActor, appErrors.ErrNotFound},
		{"other department", dto.CreateDisposalRequest{AssetID: "A3"}, itActor, appErrors.ErrDepartmentScope},
		{"on behalf without privilege", dto.CreateDisposalRequest{AssetID: "A3", RequestedBy: "u-eng"}, itActor, appErrors.ErrForbidden},
		{"already disposed", dto.CreateDisposalRequest{AssetID: "A8"}, itActor, appErrors.ErrConflict},
		{"pending request exists", dto.CreateDisposalRequest{AssetID: "A2", RequestedBy: "u-eng"}, adminActor, appErrors.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRequest(context.Background(), tc.req, tc.actor)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateRequestDepartmentMessage(t *testing.T) {
	svc, _, _ := newDisposalServiceFixture()
	itActor := models.Actor{Viewer: models.Viewer{UserID: "u-it", Role: models.RoleStaff, Department: "IT"}}

	_, err := svc.CreateRequest(context.Background(), dto.CreateDisposalRequest{AssetID: "A3"}, itActor)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "not authorized for this department", appErr.Message)
}

func TestHistory(t *testing.T) {
	svc, _, _ := newDisposalServiceFixture()
	_, err := svc.Decide(context.Background(), dto.DisposalDecisionRequest{AssetID: "A1", Action: models.DecisionReject, SourceType: models.DisposalTypeAutomatic}, adminActor)
	require.NoError(t, err)

	items, err := svc.History(context.Background(), "A1", models.Viewer{UserID: "u-eng", Role: models.RoleStaff, Department: "Engineering"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.History(context.Background(), "A1", itStaff)
	assert.ErrorIs(t, err, appErrors.ErrDepartmentScope)

	empty, err := svc.History(context.Background(), "A3", adminActor.Viewer)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
