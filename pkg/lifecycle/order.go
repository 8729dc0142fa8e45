package lifecycle

import (
	"context"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/api"
	"github.com/harrisonrobin/fieldtask/pkg/model"
	"go.uber.org/zap"
)

// CompleteOrder signs off a work order. Every task on the order must be
// completed and the signature must be present, checked in that order.
// On success the order's status and signature are mirrored into the cache.
func CompleteOrder(ctx context.Context, deps Deps, orderID string, signature *model.SignaturePath, comments string) (model.Order, error) {
	tasks, err := deps.Cache.TasksForOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	for _, t := range tasks {
		if t.Status != model.StatusCompleted {
			return model.Order{}, errTasksIncomplete
		}
	}
	if signature.Empty() {
		return model.Order{}, errSignatureRequired
	}
	return commitOrder(ctx, deps, orderID, signature, comments)
}

func commitOrder(ctx context.Context, deps Deps, orderID string, signature *model.SignaturePath, comments string) (model.Order, error) {
	log := deps.logger().With(zap.String("order_id", orderID))

	att, stored, err := EncodeSignature(signature, deps.SignatureFormat)
	if err != nil {
		return model.Order{}, err
	}

	now := deps.now()
	payload := api.BuildUpdatePayload(map[string]string{
		"status":       string(model.StatusCompleted),
		"completed_at": now.UTC().Format(time.RFC3339),
		"comments":     comments,
	}, att)

	updated, err := deps.Gateway.UpdateOrder(ctx, orderID, payload)
	if err != nil {
		log.Error("failed to complete order", zap.Error(err))
		return model.Order{}, err
	}

	order, ok, err := deps.Cache.Order(ctx, orderID)
	if err != nil || !ok {
		order = updated
		order.ID = orderID
	}
	order.Status = string(model.StatusCompleted)
	order.CompletedAt = &now
	order.Signature = stored
	if updated.Signature != "" {
		order.Signature = updated.Signature
	}
	if err := deps.Cache.PutOrder(ctx, order); err != nil {
		log.Warn("failed to mirror order into cache", zap.Error(err))
	}
	log.Info("order completed")
	return order, nil
}
