package importer

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/models"
)

// SaveFunc performs the domain write for one row inside the given
// transaction and returns the operation result used for event resolution
type SaveFunc func(ctx context.Context, tx pgx.Tx, row models.ImportRow, companyID int64) (any, error)

// TxRowRepository gives every row its own transaction and routes the
// committed outcome through the resolver and commit gate, the same path an
// interactive operation takes. Event resolution problems abort only the
// event, never the row write.
type TxRowRepository struct {
	pool     *pgxpool.Pool
	save     SaveFunc
	resolver *events.Resolver
	gate     *events.Gate
	mappings []events.ActionMapping
	actor    string
	logger   *slog.Logger
}

func NewTxRowRepository(pool *pgxpool.Pool, save SaveFunc, resolver *events.Resolver, gate *events.Gate, mappings []events.ActionMapping, actor string, logger *slog.Logger) *TxRowRepository {
	return &TxRowRepository{
		pool:     pool,
		save:     save,
		resolver: resolver,
		gate:     gate,
		mappings: mappings,
		actor:    actor,
		logger:   logger,
	}
}

func (r *TxRowRepository) SaveRow(ctx context.Context, row models.ImportRow, companyID int64) error {
	unit, err := events.Begin(ctx, r.pool)
	if err != nil {
		return err
	}
	defer unit.Rollback(ctx)

	result, err := r.save(ctx, unit.Tx(), row, companyID)
	if err != nil {
		return err
	}

	if r.resolver != nil && r.gate != nil {
		ev, rerr := r.resolver.Resolve(result, nil, r.actor, r.mappings)
		if rerr != nil {
			r.logger.Warn("Row event resolution failed, row commit proceeds",
				"row", row.Index, "error", rerr)
		} else {
			r.gate.Watch(unit, ev)
		}
	}

	return unit.Commit(ctx)
}
