// Package tasksync mirrors a worker's tasks and their related documents
// from the backend into the local cache.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-id fetch fan-out.
const DefaultConcurrency = 4

// ErrSessionChanged is returned when the session was invalidated while a
// sync was in flight; nothing is written in that case.
var ErrSessionChanged = errors.New("tasksync: session changed during sync")

// Source is the part of the backend the engine reads from.
type Source interface {
	TasksByUser(ctx context.Context, userID string, q api.TaskQuery) ([]model.Task, error)
	Order(ctx context.Context, id string) (model.Order, error)
	Asset(ctx context.Context, id string) (model.Asset, error)
	Project(ctx context.Context, id string) (model.Project, error)
}

type Engine struct {
	source      Source
	cache       *store.Cache
	logger      *zap.Logger
	concurrency int
	query       api.TaskQuery

	mu         sync.Mutex
	generation uint64
	nextID     uint64
	inflight   map[uint64]context.CancelFunc
}

type Option func(*Engine)

// WithConcurrency sets how many per-id fetches run at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithQuery sets the filters sent with the primary task fetch.
func WithQuery(q api.TaskQuery) Option {
	return func(e *Engine) { e.query = q }
}

func NewEngine(source Source, cache *store.Cache, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		source:      source,
		cache:       cache,
		logger:      logger.Named("sync"),
		concurrency: DefaultConcurrency,
		inflight:    make(map[uint64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// begin registers a sync so Invalidate can cancel it.
func (e *Engine) begin(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.inflight[id] = cancel
	gen := e.generation
	return ctx, gen, func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		cancel()
	}
}

// Invalidate cancels every in-flight sync and prevents them from writing.
// It is called on logout before the session keys are cleared.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	for id, cancel := range e.inflight {
		cancel()
		delete(e.inflight, id)
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation == gen
}

// SyncCurrentUser syncs for the user stored in the cache. Without a stored
// user the snapshot is cleared and an *api.AuthError is returned.
func (e *Engine) SyncCurrentUser(ctx context.Context) (model.Snapshot, error) {
	user, ok, err := e.cache.User(ctx)
	if err != nil {
		return model.EmptySnapshot(), err
	}
	if !ok {
		if err := e.cache.ClearSnapshot(ctx); err != nil {
			e.logger.Warn("failed to clear snapshot", zap.Error(err))
		}
		return model.EmptySnapshot(), &api.AuthError{Message: "user id not found"}
	}
	return e.SyncForUser(ctx, user.ID)
}

// SyncForUser fetches the user's tasks, then every order, asset and project
// they reference, and replaces the cached snapshot with the result.
//
// An empty userID clears the snapshot. A failed task fetch clears the
// snapshot and returns the error. Failed per-id fetches are logged and the
// item is left out.
func (e *Engine) SyncForUser(ctx context.Context, userID string) (model.Snapshot, error) {
	if userID == "" {
		e.logger.Info("no user id, clearing snapshot")
		return model.EmptySnapshot(), e.cache.ClearSnapshot(ctx)
	}

	ctx, gen, done := e.begin(ctx)
	defer done()

	log := e.logger.With(zap.String("user_id", userID))

	tasks, err := e.source.TasksByUser(ctx, userID, e.query)
	if err != nil {
		if !e.current(gen) {
			return model.EmptySnapshot(), ErrSessionChanged
		}
		log.Error("failed to fetch user tasks", zap.Error(err))
		if cerr := e.clearIfCurrent(context.WithoutCancel(ctx), gen); cerr != nil {
			log.Warn("failed to clear snapshot", zap.Error(cerr))
		}
		return model.EmptySnapshot(), fmt.Errorf("failed to fetch tasks for user %s: %w", userID, err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	orderIDs, assetIDs, projectIDs := CollectRefs(tasks)

	snap := model.Snapshot{Tasks: tasks}
	snap.Orders = fetchAll(ctx, e, log, "order", orderIDs, e.source.Order)
	snap.Assets = fetchAll(ctx, e, log, "asset", assetIDs, e.source.Asset)
	snap.Projects = fetchAll(ctx, e, log, "project", projectIDs, e.source.Project)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		log.Info("session changed during sync, discarding snapshot")
		return model.EmptySnapshot(), ErrSessionChanged
	}
	if err := ctx.Err(); err != nil {
		return model.EmptySnapshot(), err
	}
	if err := e.cache.ReplaceSnapshot(ctx, snap); err != nil {
		return snap, fmt.Errorf("failed to store snapshot: %w", err)
	}

	log.Info("sync complete",
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("orders", len(snap.Orders)),
		zap.Int("assets", len(snap.Assets)),
		zap.Int("projects", len(snap.Projects)))
	return snap, nil
}

func (e *Engine) clearIfCurrent(ctx context.Context, gen uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return nil
	}
	return e.cache.ClearSnapshot(ctx)
}

// CollectRefs returns the distinct non-empty order, asset and project ids
// referenced by tasks, in first-seen order.
func CollectRefs(tasks []model.Task) (orders, assets, projects []string) {
	seenOrders := map[string]bool{}
	seenAssets := map[string]bool{}
	seenProjects := map[string]bool{}
	add := func(id string, seen map[string]bool, out *[]string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		*out = append(*out, id)
	}
	for _, t := range tasks {
		add(t.Order.ID, seenOrders, &orders)
		add(t.Asset.ID, seenAssets, &assets)
		add(t.Project.ID, seenProjects, &projects)
	}
	return orders, assets, projects
}

// fetchAll fetches ids with bounded parallelism. Results keep the order of
// ids; failed fetches are omitted.
func fetchAll[T any](ctx context.Context, e *Engine, log *zap.Logger, resource string, ids []string,
	fetch func(context.Context, string) (T, error)) []T {
	results := make([]*T, len(ids))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			v, err := fetch(ctx, id)
			if err != nil {
				log.Warn("omitting item from snapshot",
					zap.String("resource", resource), zap.String("id", id), zap.Error(err))
				return nil
			}
			results[i] = &v
			return nil
		})
	}
	_ = g.Wait()

	out := make([]T, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
