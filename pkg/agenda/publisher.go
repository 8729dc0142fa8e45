package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/model"
	"github.com/harrisonrobin/fieldtask/pkg/overdue"
	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
)

// Result counts what one Publish call did.
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Flagged   int
	Skipped   int
}

type Publisher struct {
	cal     Calendar
	index   *EventIndex
	colors  *ColorCache
	pending *overdue.Table
	logger  *zap.Logger
	now     func() time.Time
}

func NewPublisher(cal Calendar, index *EventIndex, colors *ColorCache, pending *overdue.Table, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		cal:     cal,
		index:   index,
		colors:  colors,
		pending: pending,
		logger:  logger.Named("agenda"),
		now:     time.Now,
	}
}

// Publish mirrors the dated tasks. Events whose task is no longer present
// are deleted, and pending events whose due date has passed are flagged.
// Per-task failures are logged and counted as skipped.
func (p *Publisher) Publish(ctx context.Context, tasks []model.Task) (Result, error) {
	var res Result
	now := p.now()

	res.Flagged = p.sweep(ctx, now)

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if !Dated(t) {
			continue
		}
		seen[t.ID] = true
		event, outcome, err := p.sync(ctx, t, now)
		if err != nil {
			p.logger.Warn("failed to mirror task", zap.String("task_id", t.ID), zap.Error(err))
			res.Skipped++
			continue
		}
		switch outcome {
		case created:
			res.Created++
		case updated:
			res.Updated++
		default:
			res.Unchanged++
		}
		if t.Status != model.StatusCompleted && t.DueDate != nil {
			p.pending.Update(t.ID, event.Id, t.Title, *t.DueDate, now)
		} else {
			p.pending.Remove(t.ID)
		}
	}

	for _, id := range p.index.TaskIDs() {
		if seen[id] {
			continue
		}
		if err := p.cal.Delete(ctx, p.index.Get(id)); err != nil {
			p.logger.Warn("failed to delete stale event", zap.String("task_id", id), zap.Error(err))
			continue
		}
		p.index.Remove(id)
		p.pending.Remove(id)
		res.Deleted++
	}

	err := errors.Join(p.index.Save(), p.colors.Save(), p.pending.Save())
	if err != nil {
		err = fmt.Errorf("failed to save agenda state: %w", err)
	}
	p.logger.Info("agenda published",
		zap.Int("created", res.Created), zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted), zap.Int("flagged", res.Flagged))
	return res, err
}

func (p *Publisher) sweep(ctx context.Context, now time.Time) int {
	flagged := 0
	for _, e := range p.pending.Sweep(now) {
		patch := &calendar.Event{Summary: "! " + e.Summary}
		if _, err := p.cal.Patch(ctx, e.EventID, patch); err != nil {
			p.logger.Warn("failed to flag past due event", zap.String("event_id", e.EventID), zap.Error(err))
			continue
		}
		flagged++
	}
	return flagged
}

type outcome int

const (
	unchanged outcome = iota
	created
	updated
)

// sync creates or patches the event for t. The index is tried first, then
// a search by task id.
func (p *Publisher) sync(ctx context.Context, t model.Task, now time.Time) (*calendar.Event, outcome, error) {
	target, err := ConvertTask(t, p.colors.ColorID(t.Project.ID), now)
	if err != nil {
		return nil, unchanged, err
	}

	var existing *calendar.Event
	if id := p.index.Get(t.ID); id != "" {
		existing, err = p.cal.Get(ctx, id)
		if err != nil {
			existing = nil
		}
	}
	if existing == nil {
		existing, err = p.cal.FindByTaskID(ctx, t.ID)
		if err != nil {
			return nil, unchanged, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing == nil {
		ev, err := p.cal.Insert(ctx, target)
		if err != nil {
			return nil, unchanged, err
		}
		p.index.Set(t.ID, ev.Id)
		return ev, created, nil
	}

	p.index.Set(t.ID, existing.Id)
	patch, err := EventNeedsUpdate(existing, target)
	if err != nil {
		return nil, unchanged, err
	}
	if patch == nil {
		return existing, unchanged, nil
	}
	ev, err := p.cal.Patch(ctx, existing.Id, patch)
	if err != nil {
		return nil, unchanged, err
	}
	return ev, updated, nil
}
