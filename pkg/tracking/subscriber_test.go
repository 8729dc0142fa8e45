package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/device"
)

type scriptedLocator struct {
	fixes []device.Fix
	i     int
}

func (l *scriptedLocator) CurrentPosition(ctx context.Context) (device.Fix, error) {
	if l.i >= len(l.fixes) {
		return l.fixes[len(l.fixes)-1], nil
	}
	f := l.fixes[l.i]
	l.i++
	return f, nil
}

func TestPollingSubscriberDue(t *testing.T) {
	p := &PollingSubscriber{Interval: 30 * time.Second, MinDistance: 20}
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	last := device.Fix{Latitude: 51.5, Longitude: -0.12, Time: t0}

	if !p.due(nil, last) {
		t.Errorf("Expected the first fix to be due")
	}
	if p.due(&last, device.Fix{Latitude: 51.5, Longitude: -0.12, Time: t0.Add(10 * time.Second)}) {
		t.Errorf("Expected a stationary fix within the interval not to be due")
	}
	if !p.due(&last, device.Fix{Latitude: 51.5, Longitude: -0.12, Time: t0.Add(30 * time.Second)}) {
		t.Errorf("Expected a fix after the interval to be due")
	}
	if !p.due(&last, device.Fix{Latitude: 51.5003, Longitude: -0.12, Time: t0.Add(time.Second)}) {
		t.Errorf("Expected a fix 33m away to be due")
	}
}

func TestPollingSubscriberEmits(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	loc := &scriptedLocator{fixes: []device.Fix{
		{Latitude: 1, Longitude: 1, Time: t0},
		{Latitude: 1, Longitude: 1, Time: t0.Add(time.Second)},
		{Latitude: 1.01, Longitude: 1, Time: t0.Add(2 * time.Second)},
	}}
	p := NewPollingSubscriber(loc, nil)
	p.Poll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes, err := p.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	first := <-fixes
	second := <-fixes
	if first.Latitude != 1 || second.Latitude != 1.01 {
		t.Errorf("Expected the stationary fix to be dropped, got %v then %v", first.Latitude, second.Latitude)
	}

	cancel()
	for range fixes {
	}
}
