// Package device abstracts the sensors and permission prompts of the host.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Fix is one position sample.
type Fix struct {
	Latitude  float64
	Longitude float64
	Speed     float64 // m/s, 0 when unknown
	Time      time.Time
}

// Locator returns the device's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (Fix, error)
}

// Permission names a grant the host can give or refuse.
type Permission string

const (
	ForegroundLocation Permission = "foreground location"
	BackgroundLocation Permission = "background location"
	Camera             Permission = "camera"
)

// Permissions requests grants from the host.
type Permissions interface {
	Request(ctx context.Context, p Permission) (bool, error)
}

// PermissionError reports a refused grant. The operation can be retried once granted.
type PermissionError struct {
	Permission Permission
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s permission not granted", e.Permission)
}

// Require returns a *PermissionError when p is refused.
func Require(ctx context.Context, perms Permissions, p Permission) error {
	if perms == nil {
		return &PermissionError{Permission: p}
	}
	ok, err := perms.Request(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to request %s permission: %w", p, err)
	}
	if !ok {
		return &PermissionError{Permission: p}
	}
	return nil
}

// IsPermissionError reports whether err is, or wraps, a *PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// Grants is a fixed set of permission answers, e.g. from configuration.
type Grants map[Permission]bool

func (g Grants) Request(_ context.Context, p Permission) (bool, error) {
	return g[p], nil
}

// StaticLocator reports a position set by the operator. Set may be called
// concurrently with CurrentPosition.
type StaticLocator struct {
	mu  sync.RWMutex
	fix Fix
	set bool
	now func() time.Time
}

func NewStaticLocator(lat, lon, speed float64) *StaticLocator {
	l := &StaticLocator{now: time.Now}
	l.Set(lat, lon, speed)
	return l
}

// ErrNoFix is returned before any position is known.
var ErrNoFix = errors.New("device: no position fix available")

func (l *StaticLocator) Set(lat, lon, speed float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fix = Fix{Latitude: lat, Longitude: lon, Speed: speed}
	l.set = true
}

func (l *StaticLocator) CurrentPosition(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.set {
		return Fix{}, ErrNoFix
	}
	fix := l.fix
	if l.now != nil {
		fix.Time = l.now()
	} else {
		fix.Time = time.Now()
	}
	return fix, nil
}
