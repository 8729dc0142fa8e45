package api

import (
	"context"

	"github.com/harrisonrobin/fieldtask/pkg/model"
)

// Gateway is the backend surface the core depends on.
type Gateway interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	TasksByUser(ctx context.Context, userID string, q TaskQuery) ([]model.Task, error)
	Order(ctx context.Context, id string) (model.Order, error)
	Asset(ctx context.Context, id string) (model.Asset, error)
	Project(ctx context.Context, id string) (model.Project, error)
	UpdateTask(ctx context.Context, id string, p *Payload) (model.Task, error)
	UpdateOrder(ctx context.Context, id string, p *Payload) (model.Order, error)
	PostLocation(ctx context.Context, report LocationReport) error
}

var _ Gateway = (*Client)(nil)
