package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/report"
	"github.com/spf13/cobra"
)

var (
	filterStatus string
	filterQuery  string
	pastDueOnly  bool
	jsonOutput   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh tasks, orders, assets and projects from the backend",
	RunE:  runSync,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List cached tasks",
	RunE:  runTasks,
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List cached work orders",
	RunE:  runOrders,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts by status",
	RunE:  runStats,
}

func init() {
	for _, c := range []*cobra.Command{tasksCmd, ordersCmd} {
		c.Flags().StringVar(&filterStatus, "status", report.All, "status filter (All, Todo, In Progress, Completed, On Hold)")
		c.Flags().StringVarP(&filterQuery, "query", "q", "", "text search")
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	}
	tasksCmd.Flags().BoolVar(&pastDueOnly, "past-due", false, "only open tasks past their due date")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		snap, err := a.engine.SyncCurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d tasks, %d orders, %d assets, %d projects\n",
			len(snap.Tasks), len(snap.Orders), len(snap.Assets), len(snap.Projects))
		return nil
	})
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		tasks, err := a.cache.Tasks(ctx)
		if err != nil {
			return err
		}
		tasks = report.FilterTasks(tasks, report.Filter{Status: filterStatus, Query: filterQuery})
		if pastDueOnly {
			tasks = report.PastDue(tasks, time.Now())
		}
		if jsonOutput {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found. Run 'fieldtask sync' to refresh.")
			return nil
		}
		for _, t := range tasks {
			printTask(t)
		}
		return nil
	})
}

func printTask(t model.Task) {
	due := ""
	if t.DueDate != nil {
		due = t.DueDate.Local().Format("2006-01-02 15:04")
	}
	fmt.Printf("  %-24s  %-12s  %-16s  %-30s  %s\n", t.ID, t.Status, due, t.Title, t.Project.Label())
}

func runOrders(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		orders, err := a.cache.Orders(ctx)
		if err != nil {
			return err
		}
		orders = report.FilterOrders(orders, report.Filter{Status: filterStatus, Query: filterQuery})
		if jsonOutput {
			return printJSON(orders)
		}
		if len(orders) == 0 {
			fmt.Println("No orders found.")
			return nil
		}
		for _, o := range orders {
			tasks, err := a.cache.TasksForOrder(ctx, o.ID)
			if err != nil {
				return err
			}
			c := report.Count(tasks)
			fmt.Printf("  %-24s  %-12s  %-14s  %d/%d done  %s\n",
				o.ID, o.State(), o.OrderNumber, c.Completed, c.Total, o.Title)
		}
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		tasks, err := a.cache.Tasks(ctx)
		if err != nil {
			return err
		}
		c := report.Count(tasks)
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("Total:       %d\n", c.Total)
		fmt.Printf("Todo:        %d\n", c.Todo)
		fmt.Printf("In Progress: %d\n", c.InProgress)
		fmt.Printf("Completed:   %d\n", c.Completed)
		fmt.Printf("On Hold:     %d\n", c.OnHold)
		if c.Unknown > 0 {
			fmt.Printf("Unknown:     %d\n", c.Unknown)
		}
		fmt.Printf("Past due:    %d\n", len(report.PastDue(tasks, time.Now())))
		return nil
	})
}
