package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

const (
	notifyExchange    = "backoffice.notify"
	routingPushDevice = "push.device"
	routingEmail      = "email.institutional"
)

// Broker is the RabbitMQ transport behind the push and email primitives.
// The push gateway and the mailer consume from the notify exchange.
type Broker struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewBroker initializes a connection and a channel with Publisher Confirms
// enabled, and starts a close monitor that flips the health flag.
func NewBroker(url string, l *slog.Logger) (*Broker, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		notifyExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare notify exchange: %v", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	broker := &Broker{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	broker.healthy.Store(true)
	metrics.BrokerHealth.Set(1)

	broker.conn.NotifyClose(broker.connClosed)
	broker.channel.NotifyClose(broker.chanClosed)

	go func() {
		select {
		case err := <-broker.connClosed:
			broker.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-broker.chanClosed:
			broker.healthy.Store(false)
			metrics.BrokerHealth.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-broker.ctx.Done():
			return
		}
	}()

	l.Info("Notification broker connected", "url", url)
	return broker, nil
}

func (b *Broker) IsHealthy() bool {
	return b.healthy.Load()
}

func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		if b.channel != nil {
			b.channel.Close()
		}
		if b.conn != nil {
			b.conn.Close()
		}
	})
}

type pushEnvelope struct {
	DeviceToken string          `json:"device_token"`
	OwnerRole   string          `json:"owner_role"`
	Body        json.RawMessage `json:"body"`
}

// SendPush publishes one device-targeted push message and blocks until the
// broker confirms it
func (b *Broker) SendPush(ctx context.Context, sub models.Subscriber, payload []byte) error {
	body, err := json.Marshal(pushEnvelope{
		DeviceToken: sub.DeviceToken,
		OwnerRole:   sub.OwnerRole,
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize push envelope: %v", err)
	}
	return b.publish(ctx, routingPushDevice, body)
}

type emailEnvelope struct {
	Template   string         `json:"template"`
	Recipient  string         `json:"recipient"`
	Model      map[string]any `json:"model"`
	Attachment []byte         `json:"attachment,omitempty"`
}

// SendInstitutionalEmail publishes one templated email job for the mailer
func (b *Broker) SendInstitutionalEmail(ctx context.Context, templateKey, recipient string, model map[string]any, attachment []byte) error {
	body, err := json.Marshal(emailEnvelope{
		Template:   templateKey,
		Recipient:  recipient,
		Model:      model,
		Attachment: attachment,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize email envelope: %v", err)
	}
	return b.publish(ctx, routingEmail, body)
}

func (b *Broker) publish(ctx context.Context, routingKey string, body []byte) error {
	if !b.IsHealthy() {
		return fmt.Errorf("broker connection is closed")
	}

	deferred, err := b.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		notifyExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		b.logger.Error("Failed to publish notification", "routing_key", routingKey, "error", err)
		return fmt.Errorf("publish call failed: %v", err)
	}

	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	acked, err := deferred.WaitContext(confirmCtx)
	if err != nil {
		return fmt.Errorf("confirmation wait failed: %v", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected the message (NACK)")
	}
	return nil
}
