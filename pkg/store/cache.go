package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harrisonrobin/fieldtask/pkg/model"
	"go.uber.org/zap"
)

// Cache is the typed view of a Store holding the session and its snapshot.
// Missing or undecodable keys read as empty values.
type Cache struct {
	store  Store
	logger *zap.Logger
}

func NewCache(s Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, logger: logger.Named("cache")}
}

// Store returns the underlying key-value store.
func (c *Cache) Store() Store {
	return c.store
}

// load decodes key into v. It reports false when the key is absent or corrupt.
func (c *Cache) load(ctx context.Context, key string, v any) (bool, error) {
	b, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read '%s': %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		c.logger.Warn("ignoring undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (c *Cache) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode '%s': %w", key, err)
	}
	if err := c.store.Put(ctx, key, b); err != nil {
		return fmt.Errorf("failed to write '%s': %w", key, err)
	}
	return nil
}

// User returns the stored user; ok is false when no user is stored.
func (c *Cache) User(ctx context.Context) (user model.User, ok bool, err error) {
	ok, err = c.load(ctx, KeyUser, &user)
	if ok && user.ID == "" {
		ok = false
	}
	return user, ok, err
}

func (c *Cache) SetUser(ctx context.Context, user model.User) error {
	return c.save(ctx, KeyUser, user)
}

// Token returns the stored bearer token or "".
func (c *Cache) Token(ctx context.Context) (string, error) {
	var token string
	_, err := c.load(ctx, KeyToken, &token)
	return token, err
}

func (c *Cache) SetToken(ctx context.Context, token string) error {
	return c.save(ctx, KeyToken, token)
}

// ClearSession removes the user identity and token.
func (c *Cache) ClearSession(ctx context.Context) error {
	return c.store.Clear(ctx, KeyUser, KeyToken)
}

func (c *Cache) Tasks(ctx context.Context) ([]model.Task, error) {
	tasks := []model.Task{}
	if ok, err := c.load(ctx, KeyTasks, &tasks); err != nil || !ok || tasks == nil {
		return []model.Task{}, err
	}
	return tasks, nil
}

func (c *Cache) Orders(ctx context.Context) ([]model.Order, error) {
	orders := []model.Order{}
	if ok, err := c.load(ctx, KeyOrders, &orders); err != nil || !ok || orders == nil {
		return []model.Order{}, err
	}
	return orders, nil
}

func (c *Cache) Assets(ctx context.Context) ([]model.Asset, error) {
	assets := []model.Asset{}
	if ok, err := c.load(ctx, KeyAssets, &assets); err != nil || !ok || assets == nil {
		return []model.Asset{}, err
	}
	return assets, nil
}

func (c *Cache) Projects(ctx context.Context) ([]model.Project, error) {
	projects := []model.Project{}
	if ok, err := c.load(ctx, KeyProjects, &projects); err != nil || !ok || projects == nil {
		return []model.Project{}, err
	}
	return projects, nil
}

func (c *Cache) SetTasks(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return c.save(ctx, KeyTasks, tasks)
}

func (c *Cache) SetOrders(ctx context.Context, orders []model.Order) error {
	if orders == nil {
		orders = []model.Order{}
	}
	return c.save(ctx, KeyOrders, orders)
}

// Snapshot reads all four collections. Keys are read independently.
func (c *Cache) Snapshot(ctx context.Context) (model.Snapshot, error) {
	snap := model.EmptySnapshot()
	var err error
	if snap.Tasks, err = c.Tasks(ctx); err != nil {
		return model.EmptySnapshot(), err
	}
	if snap.Orders, err = c.Orders(ctx); err != nil {
		return model.EmptySnapshot(), err
	}
	if snap.Assets, err = c.Assets(ctx); err != nil {
		return model.EmptySnapshot(), err
	}
	if snap.Projects, err = c.Projects(ctx); err != nil {
		return model.EmptySnapshot(), err
	}
	return snap, nil
}

// ReplaceSnapshot overwrites each collection key with the given lists.
func (c *Cache) ReplaceSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := c.SetTasks(ctx, snap.Tasks); err != nil {
		return err
	}
	if err := c.SetOrders(ctx, snap.Orders); err != nil {
		return err
	}
	assets := snap.Assets
	if assets == nil {
		assets = []model.Asset{}
	}
	if err := c.save(ctx, KeyAssets, assets); err != nil {
		return err
	}
	projects := snap.Projects
	if projects == nil {
		projects = []model.Project{}
	}
	return c.save(ctx, KeyProjects, projects)
}

// ClearSnapshot writes empty arrays to all four collection keys.
func (c *Cache) ClearSnapshot(ctx context.Context) error {
	return c.ReplaceSnapshot(ctx, model.EmptySnapshot())
}

// Task looks up a cached task by id.
func (c *Cache) Task(ctx context.Context, id string) (model.Task, bool, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return model.Task{}, false, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, true, nil
		}
	}
	return model.Task{}, false, nil
}

// Project looks up a cached project by id.
func (c *Cache) Project(ctx context.Context, id string) (model.Project, bool, error) {
	if id == "" {
		return model.Project{}, false, nil
	}
	projects, err := c.Projects(ctx)
	if err != nil {
		return model.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return model.Project{}, false, nil
}

// Order looks up a cached order by id.
func (c *Cache) Order(ctx context.Context, id string) (model.Order, bool, error) {
	orders, err := c.Orders(ctx)
	if err != nil {
		return model.Order{}, false, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

// TasksForOrder returns the cached tasks referencing orderID.
func (c *Cache) TasksForOrder(ctx context.Context, orderID string) ([]model.Task, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range tasks {
		if t.Order.ID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

// PutTask replaces the cached task with the same id, appending if absent.
func (c *Cache) PutTask(ctx context.Context, task model.Task) error {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	return c.SetTasks(ctx, tasks)
}

// PutOrder replaces the cached order with the same id, appending if absent.
func (c *Cache) PutOrder(ctx context.Context, order model.Order) error {
	orders, err := c.Orders(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range orders {
		if orders[i].ID == order.ID {
			orders[i] = order
			replaced = true
			break
		}
	}
	if !replaced {
		orders = append(orders, order)
	}
	return c.SetOrders(ctx, orders)
}
