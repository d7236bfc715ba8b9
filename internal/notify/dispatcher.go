package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// Job is one post-commit fan-out unit: a company push for the event's
// subscribers, plus an optional customer-directed push
type Job struct {
	Event      models.Event
	CustomerID string
	// Roles restricts the company push to subscribers with one of these
	// owner roles. Empty means no filtering.
	Roles []string
}

// Directory resolves push subscriptions on demand. It is owned by an
// external token service.
type Directory interface {
	CompanySubscribers(ctx context.Context, companyID int64) ([]models.Subscriber, error)
	CustomerSubscribers(ctx context.Context, customerID string) ([]models.Subscriber, error)
}

// PushSender delivers one serialized message to one subscriber
type PushSender interface {
	SendPush(ctx context.Context, sub models.Subscriber, payload []byte) error
}

// EmailSender is the institutional email primitive
type EmailSender interface {
	SendInstitutionalEmail(ctx context.Context, templateKey, recipient string, model map[string]any, attachment []byte) error
}

type DispatcherConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Dispatcher is the bounded pool that turns delivered events into outbound
// pushes. It is built once at process startup; Enqueue never blocks the
// goroutine that performed the commit, and everything a job does is
// contained at the job boundary (fire-and-forget).
type Dispatcher struct {
	directory Directory
	sender    PushSender
	cfg       DispatcherConfig
	jobs      chan Job
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

func NewDispatcher(directory Directory, sender PushSender, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		directory: directory,
		sender:    sender,
		cfg:       cfg,
		jobs:      make(chan Job, cfg.QueueSize),
		logger:    logger,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}
	return d
}

// Enqueue hands a job to the pool without blocking. A full queue rejects
// the job; push fan-out is best effort and must never back-pressure the
// request path.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.jobs <- job:
		metrics.NotifyQueueDepth.Inc()
		return true
	default:
		metrics.NotifyJobsDropped.Inc()
		return false
	}
}

// Close stops accepting work and waits for in-flight jobs to finish
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		metrics.NotifyQueueDepth.Dec()
		d.run(job)
	}
}

// run executes one job. Any error or panic stays here; the enqueuer is long
// gone.
func (d *Dispatcher) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Notification job panicked",
				"event_id", job.Event.ID, "company_id", job.Event.CompanyID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.JobTimeout)
	defer cancel()

	d.pushToCompany(ctx, job)

	// The customer push is independent of the company push outcome
	if job.CustomerID != "" {
		d.pushToCustomer(ctx, job)
	}
}

func (d *Dispatcher) pushToCompany(ctx context.Context, job Job) {
	l := d.logger.With("event_id", job.Event.ID, "company_id", job.Event.CompanyID)

	subs, err := d.directory.CompanySubscribers(ctx, job.Event.CompanyID)
	if err != nil {
		l.Error("Failed to resolve company subscribers", "error", err)
		return
	}
	subs = filterByRole(subs, job.Roles)
	if len(subs) == 0 {
		return
	}

	// Serialize once; a job can carry ~150 subscribers
	payload, err := json.Marshal(companyPushMessage(job.Event))
	if err != nil {
		l.Error("Failed to build push payload", "error", err)
		return
	}

	d.deliver(ctx, l, subs, payload)
}

func (d *Dispatcher) pushToCustomer(ctx context.Context, job Job) {
	l := d.logger.With("event_id", job.Event.ID, "customer_id", job.CustomerID)

	subs, err := d.directory.CustomerSubscribers(ctx, job.CustomerID)
	if err != nil {
		l.Error("Failed to resolve customer subscribers", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(customerPushMessage(job.Event))
	if err != nil {
		l.Error("Failed to build customer push payload", "error", err)
		return
	}

	d.deliver(ctx, l, subs, payload)
}

// deliver attempts every subscriber independently; one unreachable device
// never aborts the rest
func (d *Dispatcher) deliver(ctx context.Context, l *slog.Logger, subs []models.Subscriber, payload []byte) {
	for _, sub := range subs {
		if err := d.sender.SendPush(ctx, sub, payload); err != nil {
			metrics.PushDeliveries.WithLabelValues("error").Inc()
			l.Warn("Push delivery failed", "device_token", sub.DeviceToken, "error", err)
			continue
		}
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
	}
}

func filterByRole(subs []models.Subscriber, roles []string) []models.Subscriber {
	if len(roles) == 0 {
		return subs
	}
	filtered := subs[:0:0]
	for _, sub := range subs {
		for _, role := range roles {
			if sub.OwnerRole == role {
				filtered = append(filtered, sub)
				break
			}
		}
	}
	return filtered
}

type pushMessage struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ReferenceID string `json:"reference_id"`
	OccurredAt  string `json:"occurred_at"`
}

func companyPushMessage(ev models.Event) pushMessage {
	return pushMessage{
		Type:        string(ev.Type),
		Title:       ev.ActorName,
		Body:        ev.Description,
		ReferenceID: ev.ReferenceID,
		OccurredAt:  ev.OccurredAt.Format(time.RFC3339),
	}
}

// customerPushMessage is the customer-facing variant: no internal actor,
// reference rendered into the body
func customerPushMessage(ev models.Event) pushMessage {
	return pushMessage{
		Type:        string(ev.Type),
		Title:       string(ev.Type),
		Body:        fmt.Sprintf("%s (%s)", ev.Description, ev.ReferenceID),
		OccurredAt:  ev.OccurredAt.Format(time.RFC3339),
		ReferenceID: ev.ReferenceID,
	}
}
