package tracking

import (
	"context"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/geo"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultMinDistance = 20.0
	DefaultPoll        = 5 * time.Second
)

// Subscriber delivers position updates until ctx is done, then closes the
// channel.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan device.Fix, error)
}

// PollingSubscriber samples a Locator every Poll and emits a fix when
// Interval has passed since the last emitted one, or the device has moved at
// least MinDistance meters, whichever comes first.
type PollingSubscriber struct {
	Locator     device.Locator
	Interval    time.Duration
	MinDistance float64
	Poll        time.Duration
	Logger      *zap.Logger
}

func NewPollingSubscriber(locator device.Locator, logger *zap.Logger) *PollingSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingSubscriber{
		Locator:     locator,
		Interval:    DefaultInterval,
		MinDistance: DefaultMinDistance,
		Poll:        DefaultPoll,
		Logger:      logger.Named("poller"),
	}
}

func (p *PollingSubscriber) Subscribe(ctx context.Context) (<-chan device.Fix, error) {
	poll := p.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan device.Fix)
	go func() {
		defer close(out)
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		var last *device.Fix
		for {
			fix, err := p.Locator.CurrentPosition(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("failed to read position", zap.Error(err))
			} else if p.due(last, fix) {
				select {
				case out <- fix:
					last = &fix
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

func (p *PollingSubscriber) due(last *device.Fix, fix device.Fix) bool {
	if last == nil {
		return true
	}
	if fix.Time.Sub(last.Time) >= p.Interval {
		return true
	}
	moved := geo.DistanceMeters(last.Latitude, last.Longitude, fix.Latitude, fix.Longitude)
	return moved >= p.MinDistance
}
