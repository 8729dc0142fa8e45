package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/geofence"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"go.uber.org/zap"
)

// Gateway is the commit side of the backend.
type Gateway interface {
	UpdateTask(ctx context.Context, id string, p *api.Payload) (model.Task, error)
	UpdateOrder(ctx context.Context, id string, p *api.Payload) (model.Order, error)
}

type Verifier interface {
	Verify(ctx context.Context, task model.Task) (geofence.Verdict, error)
}

// Deps are the collaborators shared by every machine.
type Deps struct {
	Gateway  Gateway
	Verifier Verifier
	Cache    *store.Cache
	// Permissions, when set, must grant the camera before a photo is accepted.
	Permissions     device.Permissions
	SignatureFormat SignatureFormat
	Now             func() time.Time
	Logger          *zap.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger.Named("lifecycle")
}

type StartInput struct {
	Photo    *api.Attachment
	Comments string
}

// OrderSignoff is set when Finish is reached from the order completion flow.
type OrderSignoff struct {
	Signature *model.SignaturePath
	Comments  string
}

type FinishInput struct {
	Photo    *api.Attachment
	Comments string
	Order    *OrderSignoff
}

// Machine is the in-memory state of one task's flow. Transitions are
// serialized; a failed commit leaves the state unchanged.
type Machine struct {
	mu      sync.Mutex
	task    model.Task
	state   State
	verdict geofence.Verdict
	deps    Deps
	logger  *zap.Logger
}

// New starts a machine in the state implied by the task's status.
func New(task model.Task, deps Deps) *Machine {
	m := &Machine{task: task, deps: deps}
	m.logger = deps.logger().With(zap.String("task_id", task.ID))
	switch task.Status {
	case model.StatusCompleted:
		m.state = Completed
	case model.StatusInProgress:
		m.state = InProgress
	default:
		m.state = AwaitingVerification
	}
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Task() model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task
}

// Verdict is the result of the last Verify call.
func (m *Machine) Verdict() geofence.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verdict
}

// Verify may be repeated any number of times before Start. An unverified
// verdict is not an error.
func (m *Machine) Verify(ctx context.Context) (geofence.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != AwaitingVerification && m.state != Verified {
		return m.verdict, &TransitionError{From: m.state, Action: "verify"}
	}
	verdict, err := m.deps.Verifier.Verify(ctx, m.task)
	m.verdict = verdict
	if verdict.Verified {
		m.state = Verified
	} else {
		m.state = AwaitingVerification
	}
	return verdict, err
}

func (m *Machine) requirePhoto(ctx context.Context, photo *api.Attachment, action string) error {
	if photo == nil || photo.Open == nil {
		return errPhotoRequired(action)
	}
	if m.deps.Permissions != nil {
		return device.Require(ctx, m.deps.Permissions, device.Camera)
	}
	return nil
}

func (m *Machine) Start(ctx context.Context, in StartInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Verified {
		return &TransitionError{From: m.state, Action: "start"}
	}
	if err := m.requirePhoto(ctx, in.Photo, "start"); err != nil {
		return err
	}

	now := m.deps.now()
	payload := api.BuildUpdatePayload(map[string]string{
		"status":            string(model.StatusInProgress),
		"comments":          in.Comments,
		"actual_start_time": now.UTC().Format(time.RFC3339),
	}, withField(*in.Photo, "photos"))

	updated, err := m.deps.Gateway.UpdateTask(ctx, m.task.ID, payload)
	if err != nil {
		m.logger.Error("failed to start task", zap.Error(err))
		return err
	}

	m.task = m.merge(updated, model.StatusInProgress, func(t *model.Task) { t.ActualStartTime = &now })
	m.state = InProgress
	m.echo(ctx)
	m.logger.Info("task started")
	return nil
}

// Finish completes the task. With in.Order set, every other task on the
// same order must already be completed and a signature must be present;
// the order is committed after the task.
func (m *Machine) Finish(ctx context.Context, in FinishInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != InProgress {
		return &TransitionError{From: m.state, Action: "finish"}
	}
	if err := m.requirePhoto(ctx, in.Photo, "finish"); err != nil {
		return err
	}
	orderID := m.task.Order.ID
	if in.Order != nil {
		if err := m.checkSiblings(ctx, orderID); err != nil {
			return err
		}
		if in.Order.Signature.Empty() {
			return errSignatureRequired
		}
	}

	now := m.deps.now()
	payload := api.BuildUpdatePayload(map[string]string{
		"status":          string(model.StatusCompleted),
		"comments":        in.Comments,
		"actual_end_time": now.UTC().Format(time.RFC3339),
	}, withField(*in.Photo, "photos"))

	updated, err := m.deps.Gateway.UpdateTask(ctx, m.task.ID, payload)
	if err != nil {
		m.logger.Error("failed to finish task", zap.Error(err))
		return err
	}

	m.task = m.merge(updated, model.StatusCompleted, func(t *model.Task) { t.ActualEndTime = &now })
	m.state = Completed
	m.echo(ctx)
	m.logger.Info("task finished")

	if in.Order != nil {
		if _, err := commitOrder(ctx, m.deps, orderID, in.Order.Signature, in.Order.Comments); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) checkSiblings(ctx context.Context, orderID string) error {
	if orderID == "" {
		return errOrderRequired
	}
	siblings, err := m.deps.Cache.TasksForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, t := range siblings {
		if t.ID != m.task.ID && t.Status != model.StatusCompleted {
			return errTasksIncomplete
		}
	}
	return nil
}

// merge prefers the server's copy of the task, falling back to the local one.
func (m *Machine) merge(updated model.Task, status model.Status, apply func(*model.Task)) model.Task {
	t := m.task
	if updated.ID != "" {
		t = updated
		if t.Project.Empty() {
			t.Project = m.task.Project
		}
		if t.Order.Empty() {
			t.Order = m.task.Order
		}
		if t.Asset.Empty() {
			t.Asset = m.task.Asset
		}
	}
	t.Status = status
	apply(&t)
	return t
}

func (m *Machine) echo(ctx context.Context) {
	if m.deps.Cache == nil {
		return
	}
	if err := m.deps.Cache.PutTask(ctx, m.task); err != nil {
		m.logger.Warn("failed to mirror task into cache", zap.Error(err))
	}
}

func withField(a api.Attachment, field string) api.Attachment {
	a.Field = field
	return a
}
