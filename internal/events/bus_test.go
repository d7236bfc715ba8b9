package events_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusInvokesListenersInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(testLogger())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		n := name
		bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
			order = append(order, n)
			return nil
		})
	}

	bus.Publish(models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})

	if len(order) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(order))
	}
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, order[i])
		}
	}
}

func TestBusFailingListenerDoesNotStopLaterListeners(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(testLogger())

	var reached []string
	bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
		return errors.New("listener exploded")
	})
	bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
		panic("listener panicked")
	})
	bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
		reached = append(reached, ev.ID)
		return nil
	})

	bus.Publish(models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})

	if len(reached) != 1 || reached[0] != "e1" {
		t.Fatalf("expected last listener to run despite earlier failures, got %v", reached)
	}
}

func TestBusCompanyListenersAreScopedToTheirCompany(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(testLogger())

	var companyOne, companyTwo int
	bus.Subscribe(events.CompanyChannel(1), func(ev models.Event) error {
		companyOne++
		return nil
	})
	bus.Subscribe(events.CompanyChannel(2), func(ev models.Event) error {
		companyTwo++
		return nil
	})

	bus.Publish(models.Event{ID: "e1", Scope: models.ScopeCompany, CompanyID: 1})

	if companyOne != 1 {
		t.Fatalf("expected company 1 listener to fire once, got %d", companyOne)
	}
	if companyTwo != 0 {
		t.Fatalf("expected company 2 listener to stay silent, got %d", companyTwo)
	}
}

func TestBusAdminListenersObserveCompanyEvents(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(testLogger())

	var admin []string
	bus.Subscribe(events.GlobalChannel(), func(ev models.Event) error {
		admin = append(admin, ev.ID)
		return nil
	})

	bus.Publish(models.Event{ID: "company-ev", Scope: models.ScopeCompany, CompanyID: 7})
	bus.Publish(models.Event{ID: "global-ev", Scope: models.ScopeGlobal})

	if len(admin) != 2 {
		t.Fatalf("expected admin channel to observe both events, got %v", admin)
	}
}

func TestBusGlobalEventsNeverReachCompanyListeners(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(testLogger())

	var company int
	bus.Subscribe(events.CompanyChannel(7), func(ev models.Event) error {
		company++
		return nil
	})

	bus.Publish(models.Event{ID: "sale", Scope: models.ScopeGlobal, CompanyID: 7, Sale: true})

	if company != 0 {
		t.Fatalf("expected company listener to stay silent on a global event, got %d", company)
	}
}
