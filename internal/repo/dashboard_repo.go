package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/internal/tracing"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"

	"go.opentelemetry.io/otel/trace"
)

// DashboardsKey is the single store key holding every dashboard record.
const DashboardsKey = "dashboards"

const (
	defaultLockTTL     = 5 * time.Second
	defaultLockRetries = 20
	lockBackoffStart   = 10 * time.Millisecond
	lockBackoffMax     = 250 * time.Millisecond
)

// ErrLockTimeout is wrapped in a PersistenceError when the record list
// lock could not be taken.
var ErrLockTimeout = errors.New("timed out waiting for dashboards lock")

// DashboardRepo persists dashboard records.
type DashboardRepo interface {
	Save(ctx context.Context, r models.Record) (models.Record, error)
	Get(ctx context.Context, id string) (models.Record, error)
	List(ctx context.Context) ([]models.Record, error)
	Delete(ctx context.Context, id string) (DeleteResult, error)
}

// DefaultDashboardRepo keeps all records as one JSON list in a
// RecordStore. Writes are read-modify-write under the store lock named
// after the list key, so replicas sharing a Valkey do not lose updates.
type DefaultDashboardRepo struct {
	store       store.RecordStore
	logger      logger.Logger
	tracer      *tracing.DashboardTracer
	now         func() time.Time
	lockTTL     time.Duration
	lockRetries int
}

// Option configures a DefaultDashboardRepo.
type Option func(*DefaultDashboardRepo)

func WithClock(now func() time.Time) Option {
	return func(r *DefaultDashboardRepo) { r.now = now }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(r *DefaultDashboardRepo) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

func WithLockRetries(n int) Option {
	return func(r *DefaultDashboardRepo) {
		if n > 0 {
			r.lockRetries = n
		}
	}
}

// NewDefaultDashboardRepo constructs the DefaultDashboardRepo.
func NewDefaultDashboardRepo(s store.RecordStore, log logger.Logger, opts ...Option) *DefaultDashboardRepo {
	if log == nil {
		log = logger.NewNop()
	}
	r := &DefaultDashboardRepo{
		store:       s,
		logger:      log,
		tracer:      tracing.NewDashboardTracer("dashboard-core"),
		now:         time.Now,
		lockTTL:     defaultLockTTL,
		lockRetries: defaultLockRetries,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Save inserts or replaces the record with r.ID. createdAt of an existing
// record is kept; lastModified is always now.
func (r *DefaultDashboardRepo) Save(ctx context.Context, rec models.Record) (saved models.Record, err error) {
	if err := rec.Validate(); err != nil {
		return models.Record{}, err
	}
	if rec.Layout == nil {
		rec.Layout = []models.LayoutCell{}
	}
	if rec.Charts == nil {
		rec.Charts = map[string]models.ChartConfig{}
	}

	ctx, span := r.tracer.StartRepoSpan(ctx, "save", rec.ID)
	start := time.Now()
	defer func() { r.finish(span, "save", start, 1, err) }()

	err = r.withLock(ctx, "save", func() error {
		list, err := r.load(ctx, "save")
		if err != nil {
			return err
		}

		now := r.timestamp()
		rec.LastModified = now
		idx := indexOf(list, rec.ID)
		if idx >= 0 && !list[idx].CreatedAt.IsZero() {
			rec.CreatedAt = list[idx].CreatedAt
		} else {
			rec.CreatedAt = now
		}

		if idx >= 0 {
			list[idx] = rec
		} else {
			list = append(list, rec)
		}
		if err := r.write(ctx, "save", list); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		return models.Record{}, err
	}
	r.logger.Debug("Dashboard saved", "id", saved.ID, "charts", len(saved.Charts))
	return saved, nil
}

// Get returns the record with id, or a *models.NotFoundError.
func (r *DefaultDashboardRepo) Get(ctx context.Context, id string) (rec models.Record, err error) {
	ctx, span := r.tracer.StartRepoSpan(ctx, "get", id)
	start := time.Now()
	defer func() { r.finish(span, "get", start, 1, err) }()

	list, err := r.load(ctx, "get")
	if err != nil {
		return models.Record{}, err
	}
	if idx := indexOf(list, id); idx >= 0 {
		return list[idx], nil
	}
	return models.Record{}, &models.NotFoundError{Kind: "dashboard", ID: id}
}

// List returns every stored record in stored order.
func (r *DefaultDashboardRepo) List(ctx context.Context) (list []models.Record, err error) {
	ctx, span := r.tracer.StartRepoSpan(ctx, "list", "")
	start := time.Now()
	defer func() { r.finish(span, "list", start, len(list), err) }()

	return r.load(ctx, "list")
}

// Delete removes the record with id. A missing id is a no-op.
func (r *DefaultDashboardRepo) Delete(ctx context.Context, id string) (res DeleteResult, err error) {
	ctx, span := r.tracer.StartRepoSpan(ctx, "delete", id)
	start := time.Now()
	defer func() { r.finish(span, "delete", start, 1, err) }()

	res.ID = id
	err = r.withLock(ctx, "delete", func() error {
		list, err := r.load(ctx, "delete")
		if err != nil {
			return err
		}
		idx := indexOf(list, id)
		if idx < 0 {
			return nil
		}
		res.Found = true
		list = append(list[:idx], list[idx+1:]...)
		if err := r.write(ctx, "delete", list); err != nil {
			return err
		}
		res.Deleted = true
		return nil
	})
	if err != nil {
		return DeleteResult{ID: id}, err
	}
	return res, nil
}

// load reads the list; an absent key is an empty list.
func (r *DefaultDashboardRepo) load(ctx context.Context, op string) ([]models.Record, error) {
	ctx, span := r.tracer.StartStoreSpan(ctx, "get", r.store.Backend(), DashboardsKey)
	b, err := r.store.Get(ctx, DashboardsKey)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		r.tracer.RecordError(span, err)
	}
	span.End()
	if errors.Is(err, store.ErrKeyNotFound) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: op, Err: err}
	}

	var list []models.Record
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, &models.PersistenceError{Op: op, Err: fmt.Errorf("decode %s: %w", DashboardsKey, err)}
	}
	return list, nil
}

func (r *DefaultDashboardRepo) write(ctx context.Context, op string, list []models.Record) error {
	b, err := json.Marshal(list)
	if err != nil {
		return &models.PersistenceError{Op: op, Err: fmt.Errorf("encode %s: %w", DashboardsKey, err)}
	}
	ctx, span := r.tracer.StartStoreSpan(ctx, "set", r.store.Backend(), DashboardsKey)
	defer span.End()
	if err := r.store.Set(ctx, DashboardsKey, b, 0); err != nil {
		r.tracer.RecordError(span, err)
		return &models.PersistenceError{Op: op, Err: err}
	}
	return nil
}

// withLock runs fn holding the list lock, retrying acquisition with
// exponential backoff.
func (r *DefaultDashboardRepo) withLock(ctx context.Context, op string, fn func() error) error {
	backoff := lockBackoffStart
	for attempt := 0; ; attempt++ {
		ok, err := r.store.AcquireLock(ctx, DashboardsKey, r.lockTTL)
		if err != nil {
			return &models.PersistenceError{Op: op, Err: fmt.Errorf("acquire lock: %w", err)}
		}
		if ok {
			break
		}
		if attempt+1 >= r.lockRetries {
			return &models.PersistenceError{Op: op, Err: ErrLockTimeout}
		}
		select {
		case <-ctx.Done():
			return &models.PersistenceError{Op: op, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > lockBackoffMax {
			backoff = lockBackoffMax
		}
	}

	defer func() {
		if err := r.store.ReleaseLock(context.WithoutCancel(ctx), DashboardsKey); err != nil {
			r.logger.Warn("Failed to release dashboards lock", "op", op, "error", err)
		}
	}()
	return fn()
}

// timestamp is now in UTC at millisecond precision, matching the
// persisted ISO-8601 form.
func (r *DefaultDashboardRepo) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *DefaultDashboardRepo) finish(span trace.Span, op string, start time.Time, n int, err error) {
	dur := time.Since(start)
	// a missing dashboard is an answer, not a failure
	failed := err != nil && !errors.Is(err, models.ErrNotFound)
	monitoring.RecordRepoOperation(op, dur, !failed)
	r.tracer.RecordRepoMetrics(span, dur, n, !failed)
	if failed {
		r.tracer.RecordError(span, err)
		r.logger.Error("Dashboard repository operation failed", "op", op, "error", err)
	}
	span.End()
}

func indexOf(list []models.Record, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
