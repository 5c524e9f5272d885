// Package service holds the marketplace core: the inventory, ticket
// lifecycle and ledger managers, and the sale and resale workflows that
// compose them inside one unit of work.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/monitoring"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
)

// EventPublisher receives domain events after their unit of work has
// committed.  Delivery is best effort.
type EventPublisher interface {
	TicketsSold(ctx context.Context, ev queue.TicketsSoldEvent) error
	ResaleSettled(ctx context.Context, ev queue.ResaleSettledEvent) error
}

type nopPublisher struct{}

func (nopPublisher) TicketsSold(context.Context, queue.TicketsSoldEvent) error     { return nil }
func (nopPublisher) ResaleSettled(context.Context, queue.ResaleSettledEvent) error { return nil }

var now = func() time.Time { return time.Now().UTC() }

func newID() string { return uuid.NewString() }

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

// finish turns the error of a workflow run into its outcome.  Business
// failures become a failed outcome with a nil error; anything else is a
// store failure and is returned as well.
func finish(log *slog.Logger, workflow string, start time.Time, err error) (model.Outcome, error) {
	took := time.Since(start)
	if err == nil {
		monitoring.ObserveWorkflow(workflow, "success", took)
		return model.Outcome{Success: true}, nil
	}
	out := model.Failed(err)
	monitoring.ObserveWorkflow(workflow, string(out.Kind), took)
	if out.Kind == model.StoreUnavailable {
		log.Error(workflow+" failed", "err", err)
		return out, err
	}
	log.Info(workflow+" refused", "kind", out.Kind, "reason", err.Error())
	return out, nil
}

// publish runs fn detached from the request so a slow broker never holds
// up a committed response.
func publish(ctx context.Context, log *slog.Logger, q string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			monitoring.PublishFailed(q)
			log.Warn("publish domain event failed", "queue", q, "err", err)
		}
	}()
}
