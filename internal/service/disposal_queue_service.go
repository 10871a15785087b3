package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/procurement-api/internal/dto"
	"github.com/noah-isme/procurement-api/internal/models"
	"github.com/noah-isme/procurement-api/internal/repository"
	"github.com/noah-isme/procurement-api/pkg/database"
	appErrors "github.com/noah-isme/procurement-api/pkg/errors"
)

type disposalQueueStore interface {
	ListManual(ctx context.Context, q sqlx.QueryerContext, filter repository.ManualQueueFilter) ([]models.ManualSource, error)
	ListAutomatic(ctx context.Context, q sqlx.QueryerContext, filter repository.AutomaticQueueFilter) ([]models.AutomaticSource, error)
}

// queueSnapshotter runs fn in a read-only transaction so both queue halves
// observe one consistent state.
type queueSnapshotter interface {
	WithinReadOnlyTx(ctx context.Context, fn database.TxFunc) error
}

// pooledReads runs fn without a transaction. It is only used when no
// snapshotter is configured.
type pooledReads struct{}

func (pooledReads) WithinReadOnlyTx(ctx context.Context, fn database.TxFunc) error {
	return fn(ctx, nil)
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// queueHalf is one side of the unified queue. Every half yields sources of
// the same variant type so the union keeps a single shape.
type queueHalf interface {
	load(ctx context.Context, store disposalQueueStore, q sqlx.QueryerContext) ([]models.DisposalSource, error)
}

type manualHalf struct {
	filter repository.ManualQueueFilter
}

func (h manualHalf) load(ctx context.Context, store disposalQueueStore, q sqlx.QueryerContext) ([]models.DisposalSource, error) {
	items, err := store.ListManual(ctx, q, h.filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.DisposalSource, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out, nil
}

type automaticHalf struct {
	filter repository.AutomaticQueueFilter
}

func (h automaticHalf) load(ctx context.Context, store disposalQueueStore, q sqlx.QueryerContext) ([]models.DisposalSource, error) {
	items, err := store.ListAutomatic(ctx, q, h.filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.DisposalSource, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return out, nil
}

// emptyHalf stands in for a half that can never contain rows, such as
// rejected automatic disposals, which leave no trace once reverted.
type emptyHalf struct{}

func (emptyHalf) load(context.Context, disposalQueueStore, sqlx.QueryerContext) ([]models.DisposalSource, error) {
	return nil, nil
}

// planQueue returns the halves that make up the requested view. The
// department filter is applied identically to both halves.
func planQueue(queueType models.QueueType, status models.RecordStatus, department string) []queueHalf {
	if queueType == models.QueueTypeRequests {
		return []queueHalf{
			manualHalf{filter: repository.ManualQueueFilter{
				Statuses:   []models.DisposalRequestStatus{models.DisposalRequestPending},
				Department: department,
			}},
			automaticHalf{filter: repository.AutomaticQueueFilter{
				Status:               models.AssetStatusDisposalPending,
				Department:           department,
				ExcludeRequestStatus: models.DisposalRequestPending,
			}},
		}
	}

	decided := automaticHalf{filter: repository.AutomaticQueueFilter{
		Status:               models.AssetStatusDisposed,
		Department:           department,
		ExcludeRequestStatus: models.DisposalRequestApproved,
	}}
	switch status {
	case models.RecordStatusApproved:
		return []queueHalf{
			manualHalf{filter: repository.ManualQueueFilter{Statuses: []models.DisposalRequestStatus{models.DisposalRequestApproved}, Department: department}},
			decided,
		}
	case models.RecordStatusRejected:
		return []queueHalf{
			manualHalf{filter: repository.ManualQueueFilter{Statuses: []models.DisposalRequestStatus{models.DisposalRequestRejected}, Department: department}},
			emptyHalf{},
		}
	default:
		return []queueHalf{
			manualHalf{filter: repository.ManualQueueFilter{Statuses: []models.DisposalRequestStatus{models.DisposalRequestApproved, models.DisposalRequestRejected}, Department: department}},
			decided,
		}
	}
}

// mergeSources projects every source and orders the rows by date, newest
// first, with the id as a stable tie-break.
func mergeSources(sources []models.DisposalSource) []models.DisposalRecord {
	records := make([]models.DisposalRecord, 0, len(sources))
	for _, src := range sources {
		records = append(records, src.Project())
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RequestDate.Equal(records[j].RequestDate) {
			return records[i].RequestDate.After(records[j].RequestDate)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// DisposalQueueService produces the unified, authorization-filtered
// disposal queue.
type DisposalQueueService struct {
	store     disposalQueueStore
	snapshots queueSnapshotter
	users     userDirectory
	policy    *DisposalPolicy
	cache     *CacheService
	metrics   *MetricsService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewDisposalQueueService constructs the queue service.
func NewDisposalQueueService(store disposalQueueStore, snapshots queueSnapshotter, users userDirectory, policy *DisposalPolicy, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *DisposalQueueService {
	if snapshots == nil {
		snapshots = pooledReads{}
	}
	if policy == nil {
		policy = NewDisposalPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisposalQueueService{store: store, snapshots: snapshots, users: users, policy: policy, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// ResolveViewer loads the role and department of a user from the user store.
func (s *DisposalQueueService) ResolveViewer(ctx context.Context, userID string) (models.Viewer, error) {
	return resolveViewer(ctx, s.users, userID)
}

func resolveViewer(ctx context.Context, users userDirectory, userID string) (models.Viewer, error) {
	if userID == "" {
		return models.Viewer{}, appErrors.Clone(appErrors.ErrUnauthorized, "viewer identity is required")
	}
	if users == nil {
		return models.Viewer{}, appErrors.Clone(appErrors.ErrInternal, "user directory is not configured")
	}
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Viewer{}, appErrors.NotFound("user")
		}
		return models.Viewer{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return models.Viewer{}, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return user.Viewer(), nil
}

// resolveActor replaces the token's role and department with the ones the
// user store holds now. Writes authorize against the result only.
func resolveActor(ctx context.Context, users userDirectory, actor models.Actor) (models.Actor, error) {
	viewer, err := resolveViewer(ctx, users, actor.UserID)
	if err != nil {
		return models.Actor{}, err
	}
	actor.Viewer = viewer
	return actor, nil
}

// ListFor resolves the viewer named by query.UserID (defaulting to the
// caller) and lists the queue on their behalf. Only privileged callers may
// view the queue as somebody else.
func (s *DisposalQueueService) ListFor(ctx context.Context, query dto.DisposalQueueQuery, caller models.Viewer) ([]models.DisposalRecord, error) {
	target := query.UserID
	if target == "" {
		target = caller.UserID
	}
	if target != caller.UserID && !s.policy.IsPrivileged(caller.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user_id must match the authenticated user")
	}
	viewer, err := s.ResolveViewer(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, query, viewer)
}

// List returns the requests or records view for viewer.
func (s *DisposalQueueService) List(ctx context.Context, query dto.DisposalQueueQuery, viewer models.Viewer) ([]models.DisposalRecord, error) {
	queueType, status, err := normalizeQueueQuery(query)
	if err != nil {
		return nil, err
	}
	department, err := s.policy.ResolveReadDepartment(viewer, query.Department)
	if err != nil {
		return nil, err
	}

	// Entries are keyed by the generation observed before loading. An
	// invalidation racing this read bumps the generation, so whatever this
	// read stores lands under a key later readers never consult.
	gen, cacheable := s.cache.Generation(ctx, DisposalCacheNamespace)
	key := queueCacheKey(gen, queueType, status, department)
	if cacheable {
		var cached []models.DisposalRecord
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	sources, err := s.loadSnapshot(ctx, planQueue(queueType, status, department))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal queue")
	}

	records := mergeSources(sources)
	s.metrics.ObserveQueueSize(queueType, len(records))
	if cacheable {
		if current, ok := s.cache.Generation(ctx, DisposalCacheNamespace); ok && current == gen {
			s.cache.Set(ctx, key, records, s.cacheTTL)
		}
	}
	return records, nil
}

// loadSnapshot reads every half inside one read-only transaction.
func (s *DisposalQueueService) loadSnapshot(ctx context.Context, halves []queueHalf) ([]models.DisposalSource, error) {
	start := time.Now()
	var sources []models.DisposalSource
	err := s.snapshots.WithinReadOnlyTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var q sqlx.QueryerContext
		if tx != nil {
			q = tx
		}
		sources = sources[:0]
		for _, half := range halves {
			items, err := half.load(ctx, s.store, q)
			if err != nil {
				return err
			}
			sources = append(sources, items...)
		}
		return nil
	})
	s.metrics.ObserveDBQuery("disposal_queue_snapshot", time.Since(start))
	return sources, err
}

func normalizeQueueQuery(query dto.DisposalQueueQuery) (models.QueueType, models.RecordStatus, error) {
	queueType := query.Type
	if queueType == "" {
		queueType = models.QueueTypeRequests
	}
	switch queueType {
	case models.QueueTypeRequests:
		if query.RecordStatus != models.RecordStatusAny {
			return "", "", appErrors.Validation("record_status only applies to type=records")
		}
	case models.QueueTypeRecords:
		switch query.RecordStatus {
		case models.RecordStatusAny, models.RecordStatusApproved, models.RecordStatusRejected:
		default:
			return "", "", appErrors.Validation("record_status must be approved or rejected")
		}
	default:
		return "", "", appErrors.Validation("type must be requests or records")
	}
	return queueType, query.RecordStatus, nil
}

func queueCacheKey(generation int64, queueType models.QueueType, status models.RecordStatus, department string) string {
	statusKey := string(status)
	if statusKey == "" {
		statusKey = "any"
	}
	deptKey := "_all"
	if department != "" {
		deptKey = url.QueryEscape(department)
	}
	return fmt.Sprintf("%s:%d:%s:%s:%s", DisposalCacheNamespace, generation, queueType, statusKey, deptKey)
}
