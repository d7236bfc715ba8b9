package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/pkg/infra"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// Reconnector keeps a healthy Broker behind the PushSender/EmailSender
// contracts. The dispatcher pool is built once at startup and must not be
// rebuilt when the broker link drops, so the link lifecycle lives here
// instead.
type Reconnector struct {
	url     string
	logger  *slog.Logger
	backoff *infra.Backoff

	mu     sync.RWMutex
	broker *Broker
}

func NewReconnector(url string, logger *slog.Logger) *Reconnector {
	return &Reconnector{
		url:     url,
		logger:  logger,
		backoff: infra.NewBackoff(1*time.Second, 60*time.Second, 2.0),
	}
}

// Run blocks until ctx is canceled, restoring the broker link whenever it
// drops
func (r *Reconnector) Run(ctx context.Context) {
	for {
		if r.current() == nil || !r.current().IsHealthy() {
			if old := r.current(); old != nil {
				old.Close()
			}

			broker, err := NewBroker(r.url, r.logger)
			if err != nil {
				wait := r.backoff.Next()
				r.logger.Error("Broker link failure, retrying", "wait", wait, "error", err)

				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return
				}
			}

			metrics.BrokerReconnections.Inc()
			r.backoff.Reset()
			r.swap(broker)
		}

		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			if b := r.current(); b != nil {
				b.Close()
			}
			return
		}
	}
}

func (r *Reconnector) current() *Broker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.broker
}

func (r *Reconnector) swap(b *Broker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broker = b
}

func (r *Reconnector) SendPush(ctx context.Context, sub models.Subscriber, payload []byte) error {
	b := r.current()
	if b == nil {
		return fmt.Errorf("broker link not established")
	}
	return b.SendPush(ctx, sub, payload)
}

func (r *Reconnector) SendInstitutionalEmail(ctx context.Context, templateKey, recipient string, model map[string]any, attachment []byte) error {
	b := r.current()
	if b == nil {
		return fmt.Errorf("broker link not established")
	}
	return b.SendInstitutionalEmail(ctx, templateKey, recipient, model, attachment)
}
