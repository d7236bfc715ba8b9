package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mvrezende/event-pipeline/internal/models"
)

const (
	importExchange   = "backoffice.notify"
	importQueue      = "backoffice.imports"
	importRoutingKey = "import.request"
)

// ImportRequest is the message shape submitted by the upload front-end.
// The payload itself is staged on shared storage; the message carries its
// path.
type ImportRequest struct {
	CompanyID      int64  `json:"company_id"`
	Format         string `json:"format"`
	Path           string `json:"path"`
	Delimiter      string `json:"delimiter,omitempty"`
	Windows1252    bool   `json:"windows_1252,omitempty"`
	Locale         string `json:"locale,omitempty"`
	Actor          string `json:"actor"`
	RecipientEmail string `json:"recipient_email"`
	EventType      string `json:"event_type"`
}

// Consumer pulls import requests off the queue and runs them through the
// strategy registry
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	registry *Registry
	workers  int
	deadline time.Duration
	logger   *slog.Logger
}

func NewConsumer(url string, registry *Registry, workers int, deadline time.Duration, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %v", err)
	}

	// Prefetch 1: one batch at a time per consumer; the engine's worker
	// pool is the intra-batch parallelism
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %v", err)
	}

	return &Consumer{
		conn:     conn,
		channel:  ch,
		registry: registry,
		workers:  workers,
		deadline: deadline,
		logger:   logger,
	}, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// Listen blocks consuming import requests until ctx is canceled
func (c *Consumer) Listen(ctx context.Context) error {
	q, err := c.channel.QueueDeclare(importQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %v", err)
	}

	if err := c.channel.QueueBind(q.Name, importRoutingKey, importExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %v", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %v", err)
	}

	c.logger.Info("Import consumer is online and waiting for requests", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var req ImportRequest
			if err := json.Unmarshal(d.Body, &req); err != nil {
				c.logger.Error("Failed to unmarshal import request", "error", err)
				d.Nack(false, false) // Drop malformed messages
				continue
			}

			c.process(ctx, req)

			// The batch outcome is already reported through events and
			// email; a terminal failure must not loop the message
			if err := d.Ack(false); err != nil {
				c.logger.Error("Failed to ack import request", "error", err)
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, req ImportRequest) {
	l := c.logger.With("company_id", req.CompanyID, "format", req.Format, "path", req.Path)

	strategy, err := c.registry.Lookup(req.Format)
	if err != nil {
		l.Error("Import request rejected", "error", err)
		return
	}

	f, err := os.Open(req.Path)
	if err != nil {
		l.Error("Failed to open staged import payload", "error", err)
		return
	}
	defer f.Close()

	opts := Options{
		CompanyID:      req.CompanyID,
		Locale:         req.Locale,
		EventType:      models.EventType(req.EventType),
		Actor:          req.Actor,
		RecipientEmail: req.RecipientEmail,
		Workers:        c.workers,
		Deadline:       c.deadline,
		Windows1252:    req.Windows1252,
	}
	if req.Delimiter != "" {
		opts.Delimiter = rune(req.Delimiter[0])
	}

	job, summary, err := strategy.Run(ctx, f, opts)
	switch {
	case err == nil:
		l.Info("Import request finished", "job_id", job.ID,
			"succeeded", summary.Succeeded, "failed", summary.Failed)
	case errors.Is(err, ErrDeadlineExceeded):
		l.Warn("Import request timed out", "job_id", job.ID,
			"finished", summary.Succeeded+summary.Failed, "total", summary.TotalRead)
	default:
		l.Error("Import request failed", "job_id", job.ID, "error", err)
	}
}
