package events

import (
	"log/slog"
	"sync"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// Listener receives a delivered event. Errors and panics are contained by
// the bus: they are logged and never reach the publisher or later listeners.
type Listener func(ev models.Event) error

// Channel is a delivery target: one per company, plus a single global/admin
// channel. Admin listeners also observe company-scoped events; company
// listeners never observe another company or global-only events.
type Channel struct {
	companyID int64
	global    bool
}

func CompanyChannel(companyID int64) Channel {
	return Channel{companyID: companyID}
}

func GlobalChannel() Channel {
	return Channel{global: true}
}

// Bus is the in-process publish/subscribe router. Listener invocation order
// within one publish call follows subscription order; nothing is promised
// across concurrent publish calls.
type Bus struct {
	mu      sync.RWMutex
	company map[int64][]Listener
	global  []Listener
	logger  *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		company: make(map[int64][]Listener),
		logger:  logger,
	}
}

func (b *Bus) Subscribe(ch Channel, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch.global {
		b.global = append(b.global, l)
		return
	}
	b.company[ch.companyID] = append(b.company[ch.companyID], l)
}

// Publish resolves the target channels from the event's scope and fans out
// synchronously. Global-scoped events reach admin listeners only.
func (b *Bus) Publish(ev models.Event) {
	if ev.Scope == models.ScopeGlobal {
		b.NotifyAdminListeners(ev)
		return
	}
	b.NotifyListeners(ev, ev.CompanyID)
}

// NotifyListeners delivers a company-scoped event: first the company's own
// listeners, then the admin listeners, each set in subscription order.
func (b *Bus) NotifyListeners(ev models.Event, companyID int64) {
	b.mu.RLock()
	companyListeners := b.company[companyID]
	globalListeners := b.global
	b.mu.RUnlock()

	b.dispatch(companyListeners, ev)
	b.dispatch(globalListeners, ev)
	metrics.EventsPublished.WithLabelValues("company").Inc()
}

// NotifyAdminListeners delivers an event on the global/admin channel only
func (b *Bus) NotifyAdminListeners(ev models.Event) {
	b.mu.RLock()
	globalListeners := b.global
	b.mu.RUnlock()

	b.dispatch(globalListeners, ev)
	metrics.EventsPublished.WithLabelValues("global").Inc()
}

func (b *Bus) dispatch(listeners []Listener, ev models.Event) {
	for _, l := range listeners {
		b.invoke(l, ev)
	}
}

func (b *Bus) invoke(l Listener, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerFailures.Inc()
			b.logger.Error("Event listener panicked", "event_id", ev.ID, "type", ev.Type, "panic", r)
		}
	}()

	if err := l(ev); err != nil {
		metrics.ListenerFailures.Inc()
		b.logger.Error("Event listener failed", "event_id", ev.ID, "type", ev.Type, "error", err)
	}
}
