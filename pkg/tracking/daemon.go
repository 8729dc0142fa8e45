// Package tracking reports the worker's position to the backend in the
// background.
package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"go.uber.org/zap"
)

type Reporter interface {
	PostLocation(ctx context.Context, report api.LocationReport) error
}

type Daemon struct {
	sub      Subscriber
	perms    device.Permissions
	reporter Reporter
	cache    *store.Cache
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Daemon)

// WithClock sets the time source used when a fix carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithLocation sets the zone used for the report's local date and time.
func WithLocation(loc *time.Location) Option {
	return func(d *Daemon) { d.loc = loc }
}

func NewDaemon(sub Subscriber, perms device.Permissions, reporter Reporter, cache *store.Cache, logger *zap.Logger, opts ...Option) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Daemon{
		sub:      sub,
		perms:    perms,
		reporter: reporter,
		cache:    cache,
		logger:   logger.Named("tracking"),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start subscribes to position updates. It is a no-op when already running.
// Foreground and background location must both be granted. The loop is not
// bound to ctx's cancellation; only Stop ends it.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.logger.Debug("tracking already active")
		return nil
	}
	if err := device.Require(ctx, d.perms, device.ForegroundLocation); err != nil {
		return err
	}
	if err := device.Require(ctx, d.perms, device.BackgroundLocation); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	fixes, err := d.sub.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to location updates: %w", err)
	}

	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	go d.run(runCtx, fixes, done)

	d.logger.Info("location tracking started")
	return nil
}

// Stop ends tracking and waits for the loop to exit. It is a no-op when not
// running.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	d.logger.Info("location tracking stopped")
	return nil
}

func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

func (d *Daemon) run(ctx context.Context, fixes <-chan device.Fix, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			d.sample(ctx, fix)
		}
	}
}

// sample reports one fix. Failures are logged and never stop the loop.
func (d *Daemon) sample(ctx context.Context, fix device.Fix) {
	user, ok, err := d.cache.User(ctx)
	if err != nil {
		d.logger.Error("failed to read user", zap.Error(err))
		return
	}
	if !ok {
		d.logger.Warn("no user data found for location tracking")
		return
	}

	at := fix.Time
	if at.IsZero() {
		at = d.now()
	}
	report := BuildReport(user.ID, fix, at, d.loc)
	if err := d.reporter.PostLocation(ctx, report); err != nil {
		d.logger.Error("failed to send location", zap.Error(err))
		return
	}
	d.logger.Debug("location saved",
		zap.Float64("latitude", report.Latitude), zap.Float64("longitude", report.Longitude))
}

// BuildReport derives the posted report from a fix taken at at. Date and
// time are rendered in loc.
func BuildReport(workerID string, fix device.Fix, at time.Time, loc *time.Location) api.LocationReport {
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	return api.LocationReport{
		WorkerID:      workerID,
		Latitude:      fix.Latitude,
		Longitude:     fix.Longitude,
		Speed:         fix.Speed,
		LocationName:  fmt.Sprintf("%.4f, %.4f", fix.Latitude, fix.Longitude),
		Timestamp:     at.UTC(),
		Date:          local.Format("2006-01-02"),
		TimeFormatted: local.Format("15:04:05"),
	}
}
