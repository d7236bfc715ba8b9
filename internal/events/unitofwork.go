package events

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// UnitOfWork exposes explicit after-commit registration. Callbacks run once,
// on the goroutine that reports the commit, only if the unit commits. A unit
// that rolls back, or is discarded without a decision, drops its callbacks
// silently.
type UnitOfWork interface {
	RunAfterCommit(fn func())
}

// Unit is the in-memory unit of work for callers that manage their own
// persistence (and for tests)
type Unit struct {
	mu      sync.Mutex
	hooks   []func()
	settled bool
}

func NewUnit() *Unit {
	return &Unit{}
}

func (u *Unit) RunAfterCommit(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.settled {
		return
	}
	u.hooks = append(u.hooks, fn)
}

// Commit runs the registered callbacks in registration order. A second
// Commit or a Commit after Rollback is a no-op.
func (u *Unit) Commit() {
	u.mu.Lock()
	if u.settled {
		u.mu.Unlock()
		return
	}
	u.settled = true
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Rollback discards the registered callbacks. Not an error: the work that
// would have been announced never happened.
func (u *Unit) Rollback() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.settled {
		return
	}
	u.settled = true
	for range u.hooks {
		metrics.EventsDropped.WithLabelValues("rollback").Inc()
	}
	u.hooks = nil
}

// TxUnit binds a unit of work to a pgx transaction: callbacks run only after
// the database reports a durable commit.
type TxUnit struct {
	unit Unit
	tx   pgx.Tx
}

func Begin(ctx context.Context, pool *pgxpool.Pool) (*TxUnit, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &TxUnit{tx: tx}, nil
}

// Tx exposes the underlying transaction as the repository handle for the
// business write
func (t *TxUnit) Tx() pgx.Tx {
	return t.tx
}

func (t *TxUnit) RunAfterCommit(fn func()) {
	t.unit.RunAfterCommit(fn)
}

func (t *TxUnit) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		t.unit.Rollback()
		return err
	}
	t.unit.Commit()
	return nil
}

// Rollback is safe to defer: after a successful Commit it is a no-op
func (t *TxUnit) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	t.unit.Rollback()
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
