package events

import (
	"log/slog"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/internal/notify"
)

// NotificationQueue is the asynchronous hand-off to the push fan-out pool.
// Enqueue must not block; it reports whether the job was accepted.
type NotificationQueue interface {
	Enqueue(job notify.Job) bool
}

// Gate defers delivery of a resolved event until the unit of work that
// produced it reports its outcome. On commit the event is published to the
// in-process listeners synchronously (fast path) and handed to the
// notification queue; the queue is the only asynchronous hop. On rollback
// the event is dropped.
type Gate struct {
	bus    *Bus
	queue  NotificationQueue
	logger *slog.Logger
}

func NewGate(bus *Bus, queue NotificationQueue, logger *slog.Logger) *Gate {
	return &Gate{
		bus:    bus,
		queue:  queue,
		logger: logger,
	}
}

// Watch registers exactly one completion callback for the event on the
// given unit of work
func (g *Gate) Watch(u UnitOfWork, ev models.Event) {
	u.RunAfterCommit(func() {
		g.deliver(ev)
	})
}

func (g *Gate) deliver(ev models.Event) {
	// Sale events are admin-only: global channel, no company push
	if ev.Sale || ev.Scope == models.ScopeGlobal {
		g.bus.NotifyAdminListeners(ev)
		return
	}

	g.bus.NotifyListeners(ev, ev.CompanyID)

	if g.queue == nil {
		return
	}
	if !g.queue.Enqueue(notify.Job{Event: ev, CustomerID: ev.CustomerID}) {
		g.logger.Warn("Notification queue full, push job dropped",
			"event_id", ev.ID, "type", ev.Type, "company_id", ev.CompanyID)
	}
}
