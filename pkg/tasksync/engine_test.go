package tasksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
)

type fakeSource struct {
	mu        sync.Mutex
	tasks     []model.Task
	tasksErr  error
	failing   map[string]bool
	orderHits map[string]int
	block     chan struct{}
}

func (f *fakeSource) TasksByUser(ctx context.Context, userID string, q api.TaskQuery) ([]model.Task, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.tasks, f.tasksErr
}

func (f *fakeSource) Order(ctx context.Context, id string) (model.Order, error) {
	f.mu.Lock()
	if f.orderHits == nil {
		f.orderHits = map[string]int{}
	}
	f.orderHits[id]++
	f.mu.Unlock()
	if f.failing[id] {
		return model.Order{}, &api.NotFoundError{Resource: "order", ID: id, StatusCode: 404}
	}
	return model.Order{ID: id, OrderNumber: "ORD-" + id}, nil
}

func (f *fakeSource) Asset(ctx context.Context, id string) (model.Asset, error) {
	if f.failing[id] {
		return model.Asset{}, errors.New("boom")
	}
	return model.Asset{ID: id}, nil
}

func (f *fakeSource) Project(ctx context.Context, id string) (model.Project, error) {
	if f.failing[id] {
		return model.Project{}, errors.New("boom")
	}
	return model.Project{ID: id}, nil
}

func tasksWithOrders(ids ...string) []model.Task {
	var tasks []model.Task
	for i, id := range ids {
		tasks = append(tasks, model.Task{
			ID:    fmt.Sprintf("t%d", i),
			Order: model.Ref{ID: id},
		})
	}
	return tasks
}

func newEngine(src Source) (*Engine, *store.Cache) {
	cache := store.NewCache(store.NewMemoryStore(), nil)
	return NewEngine(src, cache, nil), cache
}

func TestSyncOmitsFailedOrders(t *testing.T) {
	src := &fakeSource{
		tasks:   tasksWithOrders("o1", "o2", "o3", "o4", "o5"),
		failing: map[string]bool{"o2": true, "o4": true},
	}
	engine, cache := newEngine(src)

	snap, err := engine.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}
	if len(snap.Tasks) != 5 {
		t.Errorf("Expected 5 tasks, got %d", len(snap.Tasks))
	}
	if len(snap.Orders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(snap.Orders))
	}
	want := []string{"o1", "o3", "o5"}
	for i, o := range snap.Orders {
		if o.ID != want[i] {
			t.Errorf("Expected order %d to be %s, got %s", i, want[i], o.ID)
		}
	}

	cached, err := cache.Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(cached) != 3 {
		t.Errorf("Expected 3 cached orders, got %d", len(cached))
	}
}

func TestSyncDeduplicatesIDs(t *testing.T) {
	src := &fakeSource{tasks: tasksWithOrders("o1", "o1", "", "o2", "o1")}
	engine, _ := newEngine(src)

	snap, err := engine.SyncForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}
	if len(snap.Orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(snap.Orders))
	}
	for id, hits := range src.orderHits {
		if hits != 1 {
			t.Errorf("Expected order %s fetched once, got %d", id, hits)
		}
	}
	if _, ok := src.orderHits[""]; ok {
		t.Errorf("Expected empty order id to be skipped")
	}
}

func TestSyncEmptyUserClearsSnapshot(t *testing.T) {
	src := &fakeSource{tasks: tasksWithOrders("o1")}
	engine, cache := newEngine(src)
	ctx := context.Background()

	if _, err := engine.SyncForUser(ctx, "u1"); err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}

	snap, err := engine.SyncForUser(ctx, "")
	if err != nil {
		t.Fatalf("SyncForUser with empty id failed: %v", err)
	}
	if len(snap.Tasks) != 0 || len(snap.Orders) != 0 {
		t.Errorf("Expected empty snapshot, got %+v", snap)
	}

	for _, key := range store.SnapshotKeys {
		raw, err := cache.Store().Get(ctx, key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}
		if string(raw) != "[]" {
			t.Errorf("Expected %s to be [], got %s", key, raw)
		}
	}
}

func TestSyncPrimaryFailureClearsSnapshot(t *testing.T) {
	src := &fakeSource{tasks: tasksWithOrders("o1")}
	engine, cache := newEngine(src)
	ctx := context.Background()

	if _, err := engine.SyncForUser(ctx, "u1"); err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}

	src.tasksErr = &api.NetworkError{Op: "fetch tasks", StatusCode: 500}
	_, err := engine.SyncForUser(ctx, "u1")
	var netErr *api.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}

	tasks, _ := cache.Tasks(ctx)
	orders, _ := cache.Orders(ctx)
	if len(tasks) != 0 || len(orders) != 0 {
		t.Errorf("Expected cleared cache, got %d tasks and %d orders", len(tasks), len(orders))
	}
}

func TestSyncReplacesPreviousSnapshot(t *testing.T) {
	src := &fakeSource{tasks: tasksWithOrders("o1", "o2")}
	engine, cache := newEngine(src)
	ctx := context.Background()

	if _, err := engine.SyncForUser(ctx, "u1"); err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}
	src.tasks = tasksWithOrders("o3")
	if _, err := engine.SyncForUser(ctx, "u1"); err != nil {
		t.Fatalf("SyncForUser failed: %v", err)
	}

	orders, _ := cache.Orders(ctx)
	if len(orders) != 1 || orders[0].ID != "o3" {
		t.Errorf("Expected only o3 cached, got %+v", orders)
	}
}

func TestSyncCurrentUserWithoutUser(t *testing.T) {
	engine, _ := newEngine(&fakeSource{})

	_, err := engine.SyncCurrentUser(context.Background())
	var authErr *api.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
}

func TestInvalidateDiscardsInFlightSync(t *testing.T) {
	src := &fakeSource{tasks: tasksWithOrders("o1"), block: make(chan struct{})}
	engine, cache := newEngine(src)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := engine.SyncForUser(ctx, "u1")
		errc <- err
	}()

	// Wait until the sync is registered.
	for {
		engine.mu.Lock()
		n := len(engine.inflight)
		engine.mu.Unlock()
		if n > 0 {
			break
		}
	}
	engine.Invalidate()

	if err := <-errc; !errors.Is(err, ErrSessionChanged) {
		t.Fatalf("Expected ErrSessionChanged, got %v", err)
	}
	tasks, _ := cache.Tasks(ctx)
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks written, got %d", len(tasks))
	}
}

func TestCollectRefs(t *testing.T) {
	tasks := []model.Task{
		{Order: model.Ref{ID: "o1"}, Asset: model.Ref{ID: "a1"}, Project: model.Ref{ID: "p1"}},
		{Order: model.Ref{ID: "o1"}, Asset: model.Ref{ID: "a2"}},
		{Project: model.Ref{ID: "p1"}},
	}
	orders, assets, projects := CollectRefs(tasks)
	if len(orders) != 1 || len(assets) != 2 || len(projects) != 1 {
		t.Errorf("Expected 1/2/1 refs, got %v %v %v", orders, assets, projects)
	}
	if assets[0] != "a1" || assets[1] != "a2" {
		t.Errorf("Expected first-seen order, got %v", assets)
	}
}
