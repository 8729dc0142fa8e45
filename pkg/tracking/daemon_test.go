package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
)

type fakeSubscriber struct {
	mu    sync.Mutex
	calls int
	fixes chan device.Fix
}

func (s *fakeSubscriber) Subscribe(ctx context.Context) (<-chan device.Fix, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fixes, nil
}

type fakeReporter struct {
	mu      sync.Mutex
	calls   int
	failN   int
	reports chan api.LocationReport
}

func (r *fakeReporter) PostLocation(ctx context.Context, report api.LocationReport) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failN
	r.mu.Unlock()
	if fail {
		return &api.NetworkError{Op: "post location", StatusCode: 502}
	}
	r.reports <- report
	return nil
}

var granted = device.Grants{device.ForegroundLocation: true, device.BackgroundLocation: true}

func newDaemon(t *testing.T, perms device.Permissions, withUser bool) (*Daemon, *fakeSubscriber, *fakeReporter, *store.Cache) {
	t.Helper()
	cache := store.NewCache(store.NewMemoryStore(), nil)
	if withUser {
		if err := cache.SetUser(context.Background(), model.User{ID: "w1"}); err != nil {
			t.Fatal(err)
		}
	}
	sub := &fakeSubscriber{fixes: make(chan device.Fix)}
	rep := &fakeReporter{reports: make(chan api.LocationReport, 4)}
	d := NewDaemon(sub, perms, rep, cache, nil, WithLocation(time.UTC))
	t.Cleanup(func() { _ = d.Stop() })
	return d, sub, rep, cache
}

func fixAt(lat, lon float64) device.Fix {
	return device.Fix{Latitude: lat, Longitude: lon, Speed: 1.5, Time: time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)}
}

func TestStartTwiceSubscribesOnce(t *testing.T) {
	d, sub, _, _ := newDaemon(t, granted, true)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if sub.calls != 1 {
		t.Errorf("Expected 1 subscription, got %d", sub.calls)
	}
	if !d.Running() {
		t.Errorf("Expected daemon running")
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	d, sub, _, _ := newDaemon(t, granted, true)

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if sub.calls != 0 || d.Running() {
		t.Errorf("Expected nothing started")
	}
}

func TestStartRequiresBothPermissions(t *testing.T) {
	perms := device.Grants{device.ForegroundLocation: true}
	d, sub, _, _ := newDaemon(t, perms, true)

	err := d.Start(context.Background())
	var permErr *device.PermissionError
	if !errors.As(err, &permErr) || permErr.Permission != device.BackgroundLocation {
		t.Fatalf("Expected background PermissionError, got %v", err)
	}
	if sub.calls != 0 || d.Running() {
		t.Errorf("Expected tracking to remain stopped")
	}
}

func TestSampleSkipsWithoutUser(t *testing.T) {
	d, sub, rep, _ := newDaemon(t, granted, false)
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Each send completes only after the previous sample was handled.
	sub.fixes <- fixAt(1, 1)
	sub.fixes <- fixAt(2, 2)
	sub.fixes <- fixAt(3, 3)

	rep.mu.Lock()
	calls := rep.calls
	rep.mu.Unlock()
	if calls != 0 {
		t.Errorf("Expected no reports without a user, got %d", calls)
	}
	if !d.Running() {
		t.Errorf("Expected daemon still running")
	}
}

func TestPostFailureKeepsRunning(t *testing.T) {
	d, sub, rep, _ := newDaemon(t, granted, true)
	rep.failN = 1
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	sub.fixes <- fixAt(1, 1)
	sub.fixes <- fixAt(2, 2)

	report := <-rep.reports
	if report.Latitude != 2 {
		t.Errorf("Expected second sample reported, got %v", report.Latitude)
	}
	if !d.Running() {
		t.Errorf("Expected daemon still running")
	}
}

func TestStopEndsLoop(t *testing.T) {
	d, _, _, _ := newDaemon(t, granted, true)
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if d.Running() {
		t.Errorf("Expected daemon stopped")
	}
}

func TestBuildReport(t *testing.T) {
	fix := device.Fix{Latitude: 51.507351, Longitude: -0.127758, Speed: 2}
	at := time.Date(2024, 3, 1, 23, 30, 5, 0, time.UTC)
	loc := time.FixedZone("UTC+2", 2*60*60)

	r := BuildReport("w1", fix, at, loc)
	if r.WorkerID != "w1" {
		t.Errorf("Expected worker w1, got %s", r.WorkerID)
	}
	if r.LocationName != "51.5074, -0.1278" {
		t.Errorf("Expected '51.5074, -0.1278', got %q", r.LocationName)
	}
	if r.Date != "2024-03-02" {
		t.Errorf("Expected local date 2024-03-02, got %s", r.Date)
	}
	if r.TimeFormatted != "01:30:05" {
		t.Errorf("Expected 01:30:05, got %s", r.TimeFormatted)
	}
	if !r.Timestamp.Equal(at) {
		t.Errorf("Expected timestamp %v, got %v", at, r.Timestamp)
	}
}
