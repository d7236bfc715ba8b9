package events_test

import (
	"testing"

	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/internal/notify"
)

type fakeQueue struct {
	jobs []notify.Job
	full bool
}

func (q *fakeQueue) Enqueue(job notify.Job) bool {
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

func newGateFixture(t *testing.T) (*events.Gate, *fakeQueue, *[]models.Event, *[]models.Event) {
	t.Helper()

	bus := events.NewBus(testLogger())
	var company, global []models.Event
	bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
		company = append(company, ev)
		return nil
	})
	bus.Subscribe(events.GlobalChannel(), func(ev models.Event) error {
		global = append(global, ev)
		return nil
	})

	queue := &fakeQueue{}
	return events.NewGate(bus, queue, testLogger()), queue, &company, &global
}

func TestGateDeliversOnlyAfterCommit(t *testing.T) {
	t.Parallel()

	gate, queue, company, _ := newGateFixture(t)
	unit := events.NewUnit()

	gate.Watch(unit, models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})

	if len(*company) != 0 {
		t.Fatal("event observed before the transaction outcome was known")
	}

	unit.Commit()

	if len(*company) != 1 {
		t.Fatalf("expected 1 delivery after commit, got %d", len(*company))
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("expected 1 notification job, got %d", len(queue.jobs))
	}
}

func TestGateNeverDeliversTwice(t *testing.T) {
	t.Parallel()

	gate, _, company, _ := newGateFixture(t)
	unit := events.NewUnit()

	gate.Watch(unit, models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})
	unit.Commit()
	unit.Commit()
	unit.Rollback()

	if len(*company) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(*company))
	}
}

func TestGateDiscardsOnRollback(t *testing.T) {
	t.Parallel()

	gate, queue, company, global := newGateFixture(t)
	unit := events.NewUnit()

	gate.Watch(unit, models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})
	unit.Rollback()
	unit.Commit()

	if len(*company) != 0 || len(*global) != 0 {
		t.Fatal("rolled back event must never be observed")
	}
	if len(queue.jobs) != 0 {
		t.Fatal("rolled back event must not produce a notification job")
	}
}

func TestGateRoutesSaleEventsToGlobalOnly(t *testing.T) {
	t.Parallel()

	gate, queue, company, global := newGateFixture(t)
	unit := events.NewUnit()

	gate.Watch(unit, models.Event{ID: "sale", Scope: models.ScopeGlobal, CompanyID: 1, Sale: true})
	unit.Commit()

	if len(*global) != 1 {
		t.Fatalf("expected sale event on the global channel, got %d", len(*global))
	}
	if len(*company) != 0 {
		t.Fatal("sale event must never reach the company channel")
	}
	if len(queue.jobs) != 0 {
		t.Fatal("sale event must never trigger a company push job")
	}
}

func TestGateFullQueueDoesNotAffectChannelDelivery(t *testing.T) {
	t.Parallel()

	gate, queue, company, _ := newGateFixture(t)
	queue.full = true
	unit := events.NewUnit()

	gate.Watch(unit, models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})
	unit.Commit()

	if len(*company) != 1 {
		t.Fatalf("expected listener delivery despite a full queue, got %d", len(*company))
	}
}

func TestUnitRegisteredAfterSettlementIsDropped(t *testing.T) {
	t.Parallel()

	unit := events.NewUnit()
	unit.Commit()

	fired := false
	unit.RunAfterCommit(func() { fired = true })
	unit.Commit()

	if fired {
		t.Fatal("callback registered after settlement must not run")
	}
}
