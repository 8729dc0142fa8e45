package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/device"
	"github.com/harrisonrobin/fieldtask/pkg/geofence"
	"github.com/harrisonrobin/fieldtask/pkg/lifecycle"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/spf13/cobra"
)

var (
	photoPath     string
	comments      string
	signaturePath string
	signOff       bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <task-id>",
	Short: "Check that you are within the project geofence",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Verify location and start a task with a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var finishCmd = &cobra.Command{
	Use:   "finish <task-id>",
	Short: "Finish a task with a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runFinish,
}

var completeOrderCmd = &cobra.Command{
	Use:   "complete-order <order-id>",
	Short: "Sign off a work order once all its tasks are completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompleteOrder,
}

func init() {
	for _, c := range []*cobra.Command{startCmd, finishCmd} {
		c.Flags().StringVar(&photoPath, "photo", "", "photo file to attach (required)")
		c.Flags().StringVar(&comments, "comments", "", "optional comments")
	}
	finishCmd.Flags().BoolVar(&signOff, "complete-order", false, "also sign off the task's order")
	finishCmd.Flags().StringVar(&signaturePath, "signature", "", "signature strokes JSON file")
	completeOrderCmd.Flags().StringVar(&signaturePath, "signature", "", "signature strokes JSON file (required)")
	completeOrderCmd.Flags().StringVar(&comments, "comments", "", "optional comments")
}

func loadSignature(path string) (*model.SignaturePath, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}
	var sig model.SignaturePath
	if err := json.Unmarshal(b, &sig); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	return &sig, nil
}

func photo() *api.Attachment {
	if photoPath == "" {
		return nil
	}
	a := api.FileAttachment("photos", photoPath)
	return &a
}

func cachedTask(ctx context.Context, a *app, id string) (model.Task, error) {
	task, ok, err := a.cache.Task(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !ok {
		return model.Task{}, fmt.Errorf("task %s not found, run 'fieldtask sync' first", id)
	}
	return task, nil
}

func printVerdict(v geofence.Verdict) {
	if v.DistanceMeters == nil {
		fmt.Println("Location could not be verified for this task")
		return
	}
	if v.Verified {
		fmt.Printf("Verified: %.0f m from site\n", *v.DistanceMeters)
		return
	}
	fmt.Printf("Not verified: %.0f m from site (must be within %.0f m)\n", *v.DistanceMeters, geofence.Radius)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		task, err := cachedTask(ctx, a, args[0])
		if err != nil {
			return err
		}
		verdict, err := a.verifier.Verify(ctx, task)
		if err != nil {
			return err
		}
		printVerdict(verdict)
		return nil
	})
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		task, err := cachedTask(ctx, a, args[0])
		if err != nil {
			return err
		}
		m := lifecycle.New(task, a.lifecycleDeps())
		verdict, err := m.Verify(ctx)
		if err != nil {
			if device.IsPermissionError(err) {
				return fmt.Errorf("%w: enable it to verify your location", err)
			}
			return err
		}
		printVerdict(verdict)
		if m.State() != lifecycle.Verified {
			return errors.New("task not started")
		}
		if err := m.Start(ctx, lifecycle.StartInput{Photo: photo(), Comments: comments}); err != nil {
			return err
		}
		fmt.Printf("Started %s\n", task.Title)
		return nil
	})
}

func runFinish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		task, err := cachedTask(ctx, a, args[0])
		if err != nil {
			return err
		}
		in := lifecycle.FinishInput{Photo: photo(), Comments: comments}
		if signOff {
			sig, err := loadSignature(signaturePath)
			if err != nil {
				return err
			}
			in.Order = &lifecycle.OrderSignoff{Signature: sig, Comments: comments}
		}
		m := lifecycle.New(task, a.lifecycleDeps())
		if err := m.Finish(ctx, in); err != nil {
			return err
		}
		fmt.Printf("Finished %s\n", task.Title)
		if signOff {
			fmt.Printf("Order %s completed\n", task.Order.Label())
		}
		return nil
	})
}

func runCompleteOrder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		sig, err := loadSignature(signaturePath)
		if err != nil {
			return err
		}
		order, err := lifecycle.CompleteOrder(ctx, a.lifecycleDeps(), args[0], sig, comments)
		if err != nil {
			return err
		}
		fmt.Printf("Order %s completed\n", firstNonEmpty(order.OrderNumber, order.ID))
		return nil
	})
}
