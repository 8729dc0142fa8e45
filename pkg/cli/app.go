package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/auth"
	"github.com/harrisonrobin/fieldtask/pkg/config"
	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/geofence"
	"github.com/harrisonrobin/fieldtask/pkg/lifecycle"
	"github.com/harrisonrobin/fieldtask/pkg/logging"
	"github.com/harrisonrobin/fieldtask/pkg/store"
	"github.com/harrisonrobin/fieldtask/pkg/tasksync"
	"github.com/harrisonrobin/fieldtask/pkg/tracking"
	"go.uber.org/zap"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	cache    *store.Cache
	client   *api.Client
	engine   *tasksync.Engine
	verifier *geofence.Verifier
	perms    device.Permissions
	locator  device.Locator
	daemon   *tracking.Daemon
	session  *auth.Session
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	name := cfg.LogLevel
	if logLevel != "" {
		name = logLevel
	}
	lvl, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lvl)
}

// openStore builds the configured cache backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return store.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPrefix)
	case "sqlite":
		path, err := cfg.StorePath()
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(path)
	default:
		path, err := cfg.StorePath()
		if err != nil {
			return nil, err
		}
		return store.NewFileStore(path)
	}
}

func newLocator(cfg *config.Config) device.Locator {
	if cfg.Device.Latitude != nil && cfg.Device.Longitude != nil {
		return device.NewStaticLocator(*cfg.Device.Latitude, *cfg.Device.Longitude, cfg.Device.Speed)
	}
	return &device.StaticLocator{}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	return assemble(ctx, cfg, logger, s), nil
}

// assemble wires the components over an open store.
func assemble(ctx context.Context, cfg *config.Config, logger *zap.Logger, s store.Store) *app {
	cache := store.NewCache(s, logger)
	client := api.NewClient(cfg.API.BaseURL,
		api.WithDefaultTimeout(cfg.API.Timeout),
		api.WithTokenSource(auth.NewCacheTokenSource(ctx, cache)),
		api.WithLogger(logger),
	)
	perms := device.Grants{
		device.ForegroundLocation: cfg.Permissions.ForegroundLocation,
		device.BackgroundLocation: cfg.Permissions.BackgroundLocation,
		device.Camera:             cfg.Permissions.Camera,
	}
	locator := newLocator(cfg)

	engine := tasksync.NewEngine(client, cache, logger, tasksync.WithConcurrency(cfg.Sync.Concurrency))

	sub := tracking.NewPollingSubscriber(locator, logger)
	sub.Interval = cfg.Tracking.Interval
	sub.MinDistance = cfg.Tracking.MinDistanceMeters
	sub.Poll = cfg.Tracking.Poll
	daemon := tracking.NewDaemon(sub, perms, client, cache, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		cache:    cache,
		client:   client,
		engine:   engine,
		verifier: geofence.NewVerifier(cache, locator, perms, logger),
		perms:    perms,
		locator:  locator,
		daemon:   daemon,
		session:  auth.NewSession(client, cache, engine, daemon, logger),
	}
}

func (a *app) lifecycleDeps() lifecycle.Deps {
	return lifecycle.Deps{
		Gateway:         a.client,
		Verifier:        a.verifier,
		Cache:           a.cache,
		Permissions:     a.perms,
		SignatureFormat: lifecycle.SignatureFormat(a.cfg.Signature.Format),
		Logger:          a.logger,
	}
}

func (a *app) Close() error {
	var errs []error
	if err := a.daemon.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// withApp runs fn with a fully wired app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
