package notify_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDirectory struct {
	company      []models.Subscriber
	companyErr   error
	customer     []models.Subscriber
	customerHits int
	mu           sync.Mutex
}

func (d *fakeDirectory) CompanySubscribers(ctx context.Context, companyID int64) ([]models.Subscriber, error) {
	if d.companyErr != nil {
		return nil, d.companyErr
	}
	return d.company, nil
}

func (d *fakeDirectory) CustomerSubscribers(ctx context.Context, customerID string) ([]models.Subscriber, error) {
	d.mu.Lock()
	d.customerHits++
	d.mu.Unlock()
	return d.customer, nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failFor  map[string]bool
	failures int
	block    chan struct{}
}

func (s *fakeSender) SendPush(ctx context.Context, sub models.Subscriber, payload []byte) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[sub.DeviceToken] {
		s.failures++
		return errors.New("device unreachable")
	}
	s.sent = append(s.sent, sub.DeviceToken)
	return nil
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcherDeliversToAllReachableSubscribers(t *testing.T) {
	t.Parallel()

	// 150 subscribers, 1 unreachable device: the other 149 must still
	// receive the push
	subs := make([]models.Subscriber, 150)
	for i := range subs {
		subs[i] = models.Subscriber{DeviceToken: fmt.Sprintf("token-%d", i), OwnerRole: "STAFF"}
	}

	directory := &fakeDirectory{company: subs}
	sender := &fakeSender{failFor: map[string]bool{"token-42": true}}

	d := notify.NewDispatcher(directory, sender, notify.DispatcherConfig{Workers: 2, QueueSize: 8}, testLogger())

	if !d.Enqueue(notify.Job{Event: models.Event{ID: "e1", CompanyID: 1}}) {
		t.Fatal("expected job to be accepted")
	}
	d.Close()

	if got := sender.sentCount(); got != 149 {
		t.Fatalf("expected 149 deliveries, got %d", got)
	}
	if sender.failures != 1 {
		t.Fatalf("expected 1 failed delivery, got %d", sender.failures)
	}
}

func TestDispatcherFiltersByRole(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{company: []models.Subscriber{
		{DeviceToken: "admin-1", OwnerRole: "ADMIN"},
		{DeviceToken: "staff-1", OwnerRole: "STAFF"},
		{DeviceToken: "admin-2", OwnerRole: "ADMIN"},
	}}
	sender := &fakeSender{}

	d := notify.NewDispatcher(directory, sender, notify.DispatcherConfig{Workers: 2, QueueSize: 8}, testLogger())
	d.Enqueue(notify.Job{Event: models.Event{ID: "e1", CompanyID: 1}, Roles: []string{"ADMIN"}})
	d.Close()

	if got := sender.sentCount(); got != 2 {
		t.Fatalf("expected 2 role-filtered deliveries, got %d", got)
	}
}

func TestDispatcherSendsCustomerPushIndependently(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{
		companyErr: errors.New("directory offline"),
		customer:   []models.Subscriber{{DeviceToken: "cust-1"}},
	}
	sender := &fakeSender{}

	d := notify.NewDispatcher(directory, sender, notify.DispatcherConfig{Workers: 2, QueueSize: 8}, testLogger())
	d.Enqueue(notify.Job{Event: models.Event{ID: "e1", CompanyID: 1}, CustomerID: "cust-9"})
	d.Close()

	// Company resolution failed, but the customer push must still go out
	if got := sender.sentCount(); got != 1 {
		t.Fatalf("expected 1 customer delivery, got %d", got)
	}
	if directory.customerHits != 1 {
		t.Fatalf("expected 1 customer directory lookup, got %d", directory.customerHits)
	}
}

func TestDispatcherDirectoryFailureNeverSurfaces(t *testing.T) {
	t.Parallel()

	directory := &fakeDirectory{companyErr: errors.New("directory offline")}
	sender := &fakeSender{}

	d := notify.NewDispatcher(directory, sender, notify.DispatcherConfig{Workers: 2, QueueSize: 8}, testLogger())
	if !d.Enqueue(notify.Job{Event: models.Event{ID: "e1", CompanyID: 1}}) {
		t.Fatal("enqueue must succeed even when the job will fail internally")
	}
	d.Close()

	if got := sender.sentCount(); got != 0 {
		t.Fatalf("expected no deliveries, got %d", got)
	}
}

func TestDispatcherRejectsJobsOnFullQueue(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	directory := &fakeDirectory{company: []models.Subscriber{{DeviceToken: "t-1"}}}
	sender := &fakeSender{block: block}

	d := notify.NewDispatcher(directory, sender, notify.DispatcherConfig{Workers: 2, QueueSize: 1}, testLogger())

	// Saturate both workers plus the single queue slot
	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Enqueue(notify.Job{Event: models.Event{ID: fmt.Sprintf("e%d", i), CompanyID: 1}}) {
			accepted++
		}
	}
	if accepted >= 10 {
		t.Fatal("expected at least one job to be rejected on a full queue")
	}

	close(block)
	d.Close()
}
