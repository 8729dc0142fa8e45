package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/fieldtask/pkg/agenda"
	"github.com/harrisonrobin/fieldtask/pkg/auth"
	"github.com/harrisonrobin/fieldtask/pkg/config"
	"github.com/harrisonrobin/fieldtask/pkg/overdue"
	"github.com/spf13/cobra"
)

var (
	agendaCalendar string
	agendaReauth   bool
)

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Mirror dated tasks into a Google Calendar",
	RunE:  runAgenda,
}

func init() {
	agendaCmd.Flags().StringVar(&agendaCalendar, "calendar", "", "Google Calendar name (overrides config)")
	agendaCmd.Flags().BoolVar(&agendaReauth, "auth", false, "discard the saved Google token and authorize again")
}

func runAgenda(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		dir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		name := a.cfg.Agenda.Calendar
		if agendaCalendar != "" {
			name = agendaCalendar
		}

		if agendaReauth {
			tokenFile := filepath.Join(dir, auth.TokenFile)
			if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("could not delete token file '%s': %w", tokenFile, err)
			}
		}

		srv, err := auth.NewGoogle(dir, a.logger).CalendarService(ctx)
		if err != nil {
			return err
		}
		cal, err := agenda.OpenGoogleCalendar(ctx, srv, name)
		if err != nil {
			return err
		}

		idx, err := agenda.NewEventIndex(filepath.Join(dir, "events.json"))
		if err != nil {
			return err
		}
		colors, err := agenda.NewColorCache(filepath.Join(dir, "project_colors.json"))
		if err != nil {
			return err
		}
		pending, err := overdue.NewTable(filepath.Join(dir, "pending_tasks.json"))
		if err != nil {
			return err
		}

		tasks, err := a.cache.Tasks(ctx)
		if err != nil {
			return err
		}
		res, err := agenda.NewPublisher(cal, idx, colors, pending, a.logger).Publish(ctx, tasks)
		if err != nil {
			return err
		}
		fmt.Printf("Calendar '%s': %d created, %d updated, %d unchanged, %d deleted, %d flagged past due\n",
			name, res.Created, res.Updated, res.Unchanged, res.Deleted, res.Flagged)
		if res.Skipped > 0 {
			fmt.Printf("%d tasks could not be mirrored, see the log for details\n", res.Skipped)
		}
		return nil
	})
}
