// Package report summarizes and filters the cached snapshot for display.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/fieldtask/pkg/model"
)

// All matches every status in a Filter.
const All = "All"

type Counts struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	OnHold     int `json:"on_hold"`
	Unknown    int `json:"unknown"`
}

func Count(tasks []model.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusTodo:
			c.Todo++
		case model.StatusInProgress:
			c.InProgress++
		case model.StatusCompleted:
			c.Completed++
		case model.StatusOnHold:
			c.OnHold++
		default:
			c.Unknown++
		}
	}
	return c
}

// Filter selects tasks by status and a case-insensitive text query.
// An empty Status or "All" matches any status.
type Filter struct {
	Status string
	Query  string
}

func (f Filter) status() (model.Status, bool) {
	if f.Status == "" || strings.EqualFold(f.Status, All) {
		return "", false
	}
	return model.NormalizeStatus(f.Status), true
}

func contains(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func FilterTasks(tasks []model.Task, f Filter) []model.Task {
	want, byStatus := f.status()
	out := []model.Task{}
	for _, t := range tasks {
		if byStatus && t.Status != want {
			continue
		}
		if !contains(f.Query, t.Title, t.Description, t.Project.Name, t.Order.Name, t.Asset.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func FilterOrders(orders []model.Order, f Filter) []model.Order {
	want, byStatus := f.status()
	out := []model.Order{}
	for _, o := range orders {
		if byStatus && o.State() != want {
			continue
		}
		if !contains(f.Query, o.Title, o.Description, o.OrderNumber, o.Customer.Name, o.Project.Name) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// PastDue returns the open tasks due before now, most overdue first.
func PastDue(tasks []model.Task, now time.Time) []model.Task {
	out := []model.Task{}
	for _, t := range tasks {
		if t.Status == model.StatusCompleted || t.DueDate == nil {
			continue
		}
		if t.DueDate.Before(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out
}
