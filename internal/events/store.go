package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvrezende/event-pipeline/internal/models"
)

// EventStore persists one audit record per delivered event. It is wired as
// an admin-channel listener so every delivered event reaches it exactly once.
type EventStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEventStore(pool *pgxpool.Pool, logger *slog.Logger) *EventStore {
	return &EventStore{pool: pool, logger: logger}
}

func (s *EventStore) Save(ctx context.Context, ev models.Event) error {
	query := `
		INSERT INTO company_events
			(id, company_id, event_type, is_sale, read, description, actor_name, reference_id, occurred_at)
		VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		ev.ID,
		ev.CompanyID,
		string(ev.Type),
		ev.Sale,
		ev.Description,
		ev.ActorName,
		ev.ReferenceID,
		ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to persist event record: %w", err)
	}
	return nil
}

// Listener adapts Save for bus subscription. Delivery already happened by
// the time this runs, so a bounded timeout keeps a slow insert from holding
// the publishing goroutine.
func (s *EventStore) Listener() Listener {
	return func(ev models.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Save(ctx, ev)
	}
}
