package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/repository"
	"github.com/noah-isme/procurement-api/pkg/database"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

type queueStoreStub struct {
	manual         []models.ManualSource
	automatic      []models.AutomaticSource
	manualFilters  []repository.ManualQueueFilter
	automaticCalls []repository.AutomaticQueueFilter
	err            error
	// afterAutomatic runs once the automatic rows have been read, before
	// they are returned.
	afterAutomatic func()
}

func (s *queueStoreStub) ListManual(_ context.Context, _ sqlx.QueryerContext, filter repository.ManualQueueFilter) ([]models.ManualSource, error) {
	s.manualFilters = append(s.manualFilters, filter)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ManualSource
	for _, item := range s.manual {
		if filter.Department != "" && item.Asset.Department != filter.Department {
			continue
		}
		for _, st := range filter.Statuses {
			if item.Request.Status == st {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

func (s *queueStoreStub) ListAutomatic(_ context.Context, _ sqlx.QueryerContext, filter repository.AutomaticQueueFilter) ([]models.AutomaticSource, error) {
	s.automaticCalls = append(s.automaticCalls, filter)
	var out []models.AutomaticSource
	for _, item := range s.automatic {
		if item.Asset.Status != filter.Status {
			continue
		}
		if filter.Department != "" && item.Asset.Department != filter.Department {
			continue
		}
		item.Decided = filter.Status == models.AssetStatusDisposed
		out = append(out, item)
	}
	if hook := s.afterAutomatic; hook != nil {
		s.afterAutomatic = nil
		hook()
	}
	return out, nil
}

type snapshotStub struct {
	calls int
	err   error
}

func (s *snapshotStub) WithinReadOnlyTx(ctx context.Context, fn database.TxFunc) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return fn(ctx, nil)
}

type userDirectoryStub map[string]*models.User

func (u userDirectoryStub) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

var (
	day1 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
	day3 = day2.Add(24 * time.Hour)
)

func sampleQueueStore() *queueStoreStub {
	return &queueStoreStub{
		manual: []models.ManualSource{
			{Request: models.DisposalRequest{ID: "r-pending", AssetID: "a2", Status: models.DisposalRequestPending, RequestedBy: "u1", RequestDate: day1}, Asset: models.Asset{ID: "a2", Department: "Engineering"}},
			{Request: models.DisposalRequest{ID: "r-approved", AssetID: "a3", Status: models.DisposalRequestApproved, RequestedBy: "u1", RequestDate: day2}, Asset: models.Asset{ID: "a3", Department: "Engineering"}},
			{Request: models.DisposalRequest{ID: "r-rejected", AssetID: "a4", Status: models.DisposalRequestRejected, RequestedBy: "u2", RequestDate: day3}, Asset: models.Asset{ID: "a4", Department: "Finance"}},
		},
		automatic: []models.AutomaticSource{
			{Asset: models.Asset{ID: "a1", Department: "Engineering", Status: models.AssetStatusDisposalPending, UpdatedAt: day2}},
			{Asset: models.Asset{ID: "a5", Department: "Finance", Status: models.AssetStatusDisposed, UpdatedAt: day1}},
		},
	}
}

func TestDisposalQueueRequestsMode(t *testing.T) {
	store := sampleQueueStore()
	svc := NewDisposalQueueService(store, nil, nil, nil, nil, nil, 0, nil)

	records, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRequests}, systemAdmin)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].ID)
	assert.Equal(t, models.DisposalTypeAutomatic, records[0].SourceType)
	assert.Equal(t, "r-pending", records[1].ID)
	for _, rec := range records {
		assert.Equal(t, models.QueueStatusPending, rec.Status)
	}
	require.Len(t, store.automaticCalls, 1)
	assert.Equal(t, models.DisposalRequestPending, store.automaticCalls[0].ExcludeRequestStatus)
}

func TestDisposalQueueRecordsMode(t *testing.T) {
	svc := NewDisposalQueueService(sampleQueueStore(), nil, nil, nil, nil, nil, 0, nil)

	records, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRecords}, procurer)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"r-rejected", "r-approved", "a5"}, []string{records[0].ID, records[1].ID, records[2].ID})
	assert.Equal(t, models.QueueStatusApproved, records[2].Status)
	require.NotNil(t, records[2].Reason)
	assert.Contains(t, *records[2].Reason, "Automatic disposal")
}

func TestDisposalQueueRejectedRecordsSkipAutomaticHalf(t *testing.T) {
	store := sampleQueueStore()
	svc := NewDisposalQueueService(store, nil, nil, nil, nil, nil, 0, nil)

	records, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRecords, RecordStatus: models.RecordStatusRejected}, systemAdmin)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r-rejected", records[0].ID)
	assert.Empty(t, store.automaticCalls)

	halves := planQueue(models.QueueTypeRecords, models.RecordStatusRejected, "IT")
	require.Len(t, halves, 2)
	assert.IsType(t, emptyHalf{}, halves[1])
}

func TestDisposalQueueProjectionsAreDisjoint(t *testing.T) {
	svc := NewDisposalQueueService(sampleQueueStore(), nil, nil, nil, nil, nil, 0, nil)
	ctx := context.Background()

	requests, err := svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRequests}, systemAdmin)
	require.NoError(t, err)
	records, err := svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRecords}, systemAdmin)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, r := range requests {
		seen[string(r.SourceType)+r.ID] = true
	}
	for _, r := range records {
		assert.False(t, seen[string(r.SourceType)+r.ID], "%s appears in both views", r.ID)
	}
}

func TestDisposalQueueDepartmentScope(t *testing.T) {
	store := sampleQueueStore()
	svc := NewDisposalQueueService(store, nil, nil, nil, nil, nil, 0, nil)

	_, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRecords, Department: "Finance"}, itStaff)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "not authorized for this department", appErr.Message)
	assert.Empty(t, store.manualFilters)

	engineer := models.Viewer{UserID: "u1", Role: models.RoleStaff, Department: "Engineering"}
	records, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRecords}, engineer)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r-approved", records[0].ID)
	for _, f := range store.automaticCalls {
		assert.Equal(t, "Engineering", f.Department)
	}
}

func TestDisposalQueueValidation(t *testing.T) {
	svc := NewDisposalQueueService(sampleQueueStore(), nil, nil, nil, nil, nil, 0, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, dto.DisposalQueueQuery{Type: "archive"}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRecords, RecordStatus: "pending"}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRequests, RecordStatus: models.RecordStatusApproved}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDisposalQueueUsesCache(t *testing.T) {
	store := sampleQueueStore()
	cache := NewCacheService(repository.NewMemoryCacheRepository(expirable.NewLRU[string, []byte](8, nil, time.Minute)), nil, time.Minute, nil, true)
	svc := NewDisposalQueueService(store, nil, nil, nil, cache, nil, time.Minute, nil)
	ctx := context.Background()

	first, err := svc.List(ctx, dto.DisposalQueueQuery{}, systemAdmin)
	require.NoError(t, err)
	second, err := svc.List(ctx, dto.DisposalQueueQuery{}, systemAdmin)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
	assert.Len(t, store.manualFilters, 1)

	cache.Invalidate(ctx, DisposalCacheNamespace)
	_, err = svc.List(ctx, dto.DisposalQueueQuery{}, systemAdmin)
	require.NoError(t, err)
	assert.Len(t, store.manualFilters, 2)
}

func TestDisposalQueueListFor(t *testing.T) {
	users := userDirectoryStub{
		"u-it":   {ID: "u-it", Role: models.RoleStaff, Department: "IT", Active: true},
		"u-fin":  {ID: "u-fin", Role: models.RoleStaff, Department: "Finance", Active: true},
		"u-gone": {ID: "u-gone", Role: models.RoleStaff, Department: "IT"},
	}
	svc := NewDisposalQueueService(sampleQueueStore(), nil, users, nil, nil, nil, 0, nil)
	ctx := context.Background()

	_, err := svc.ListFor(ctx, dto.DisposalQueueQuery{UserID: "u-fin"}, itStaff)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	records, err := svc.ListFor(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRecords, UserID: "u-fin"}, procurer)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "Finance", rec.Department)
	}

	_, err = svc.ListFor(ctx, dto.DisposalQueueQuery{UserID: "nobody"}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.ListFor(ctx, dto.DisposalQueueQuery{UserID: "u-gone"}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestDisposalQueueStoreFailure(t *testing.T) {
	svc := NewDisposalQueueService(&queueStoreStub{err: errors.New("timeout")}, nil, nil, nil, nil, nil, 0, nil)
	_, err := svc.List(context.Background(), dto.DisposalQueueQuery{}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestQueueCacheKey(t *testing.T) {
	assert.Equal(t, "disposals:0:requests:any:_all", queueCacheKey(0, models.QueueTypeRequests, "", ""))
	assert.Equal(t, "disposals:7:records:rejected:R%26D%2FLabs", queueCacheKey(7, models.QueueTypeRecords, models.RecordStatusRejected, "R&D/Labs"))
}

func TestDisposalQueueInvalidationDuringReadDoesNotCacheStaleRows(t *testing.T) {
	store := sampleQueueStore()
	cache := NewCacheService(repository.NewMemoryCacheRepository(expirable.NewLRU[string, []byte](8, nil, time.Minute)), nil, time.Minute, nil, true)
	svc := NewDisposalQueueService(store, nil, nil, nil, cache, nil, time.Minute, nil)
	ctx := context.Background()

	// a1 is approved while the requests view is being read: the read has
	// already seen a1 as pending, then the decision commits and invalidates.
	store.afterAutomatic = func() {
		store.automatic[0].Asset.Status = models.AssetStatusDisposed
		cache.Invalidate(ctx, DisposalCacheNamespace)
	}
	stale, err := svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRequests}, systemAdmin)
	require.NoError(t, err)
	assert.True(t, containsRecord(stale, "a1"))

	requests, err := svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRequests}, systemAdmin)
	require.NoError(t, err)
	records, err := svc.List(ctx, dto.DisposalQueueQuery{Type: models.QueueTypeRecords}, systemAdmin)
	require.NoError(t, err)

	assert.False(t, containsRecord(requests, "a1"), "stale pending row served from cache")
	assert.True(t, containsRecord(records, "a1"))
	assert.Len(t, store.manualFilters, 3)
}

func TestDisposalQueueCacheBypassedWithoutGeneration(t *testing.T) {
	store := sampleQueueStore()
	cache := NewCacheService(failingCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewDisposalQueueService(store, nil, nil, nil, cache, nil, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.List(context.Background(), dto.DisposalQueueQuery{}, systemAdmin)
		require.NoError(t, err)
	}
	assert.Len(t, store.manualFilters, 2)
}

func TestDisposalQueueReadsHalvesInOneSnapshot(t *testing.T) {
	store := sampleQueueStore()
	snapshots := &snapshotStub{}
	svc := NewDisposalQueueService(store, snapshots, nil, nil, nil, nil, 0, nil)

	_, err := svc.List(context.Background(), dto.DisposalQueueQuery{Type: models.QueueTypeRecords}, systemAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshots.calls)
	assert.Len(t, store.manualFilters, 1)
	assert.Len(t, store.automaticCalls, 1)

	failing := NewDisposalQueueService(sampleQueueStore(), &snapshotStub{err: errors.New("could not serialize access")}, nil, nil, nil, nil, 0, nil)
	_, err = failing.List(context.Background(), dto.DisposalQueueQuery{}, systemAdmin)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func containsRecord(records []models.DisposalRecord, id string) bool {
	for _, rec := range records {
		if rec.ID == id {
			return true
		}
	}
	return false
}
