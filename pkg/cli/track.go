package cli

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/fieldtask/pkg/tracking"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Report your location in the foreground until interrupted",
	RunE:  runTrack,
}

type trackerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Daemon    *tracking.Daemon
}

func registerTracker(p trackerParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Daemon.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("shutting down tracking")
			return p.Daemon.Stop()
		},
	})
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		user, err := a.session.CurrentUser(ctx)
		if err != nil {
			return err
		}

		fxApp := fx.New(
			fx.Supply(a.logger, a.daemon),
			fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: log.Named("fx")}
			}),
			fx.Invoke(registerTracker),
		)
		if err := fxApp.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Tracking %s, press Ctrl+C to stop\n", firstNonEmpty(user.Name, user.ID))

		<-fxApp.Done()
		return fxApp.Stop(context.Background())
	})
}
