// Package geofence decides whether the device is close enough to a task's
// project site to start work.
package geofence

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/geo"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"go.uber.org/zap"
)

// Radius is the fixed geofence radius in meters.
const Radius = 100.0

// Verdict is the outcome of one verification. DistanceMeters is nil when no
// distance could be computed.
type Verdict struct {
	Verified       bool
	DistanceMeters *float64
}

type Verifier struct {
	cache   *store.Cache
	locator device.Locator
	perms   device.Permissions
	logger  *zap.Logger
}

func NewVerifier(cache *store.Cache, locator device.Locator, perms device.Permissions, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{cache: cache, locator: locator, perms: perms, logger: logger.Named("geofence")}
}

// Verify recomputes the verdict from the current device position. It never
// caches a result.
//
// An unresolved project, or one without coordinates, yields an unverified
// verdict and no error. A refused location permission yields an unverified
// verdict together with a *device.PermissionError.
func (v *Verifier) Verify(ctx context.Context, task model.Task) (Verdict, error) {
	log := v.logger.With(zap.String("task_id", task.ID), zap.String("project_id", task.Project.ID))

	if task.Project.ID == "" {
		log.Debug("task has no project")
		return Verdict{}, nil
	}
	project, ok, err := v.cache.Project(ctx, task.Project.ID)
	if err != nil {
		return Verdict{}, err
	}
	if !ok {
		log.Info("project not in cache, cannot verify")
		return Verdict{}, nil
	}
	lat, latOK := project.Latitude.Float()
	lon, lonOK := project.Longitude.Float()
	if !latOK || !lonOK {
		log.Info("project has no coordinates, cannot verify")
		return Verdict{}, nil
	}

	if err := device.Require(ctx, v.perms, device.ForegroundLocation); err != nil {
		return Verdict{}, err
	}
	fix, err := v.locator.CurrentPosition(ctx)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to get current position: %w", err)
	}

	dist := geo.DistanceMeters(fix.Latitude, fix.Longitude, lat, lon)
	verdict := Verdict{Verified: dist <= Radius, DistanceMeters: &dist}
	log.Info("geofence verified",
		zap.Float64("distance_m", dist), zap.Bool("verified", verdict.Verified))
	return verdict, nil
}
