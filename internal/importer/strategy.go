package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mvrezende/event-pipeline/internal/models"
)

var (
	// ErrNoStrategy is a configuration error: the format was never
	// registered. It surfaces synchronously to the caller at lookup time.
	ErrNoStrategy = errors.New("no import strategy registered for format")

	// ErrPremiumRequired rejects a gated format for companies without a
	// premium plan
	ErrPremiumRequired = errors.New("import format requires a premium plan")
)

// Strategy runs one import batch for a specific input format
type Strategy interface {
	Run(ctx context.Context, in io.Reader, opts Options) (models.ImportJob, models.ImportSummary, error)
}

// Registry maps a format tag to its strategy instance. An unregistered
// format fails at call time, not at startup.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(format string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(format)] = s
}

func (r *Registry) Lookup(format string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoStrategy, format)
	}
	return s, nil
}

// PlanChecker answers whether a company carries a premium plan
type PlanChecker interface {
	HasPremium(ctx context.Context, companyID int64) (bool, error)
}

// PremiumGate is a composable wrapper holding an inner strategy: the plan
// check runs in front of every batch for the gated format.
type PremiumGate struct {
	inner Strategy
	plans PlanChecker
}

func NewPremiumGate(inner Strategy, plans PlanChecker) *PremiumGate {
	return &PremiumGate{inner: inner, plans: plans}
}

func (g *PremiumGate) Run(ctx context.Context, in io.Reader, opts Options) (models.ImportJob, models.ImportSummary, error) {
	ok, err := g.plans.HasPremium(ctx, opts.CompanyID)
	if err != nil {
		return models.ImportJob{}, models.ImportSummary{}, fmt.Errorf("plan check failed: %w", err)
	}
	if !ok {
		return models.ImportJob{}, models.ImportSummary{}, fmt.Errorf("company %d: %w", opts.CompanyID, ErrPremiumRequired)
	}
	return g.inner.Run(ctx, in, opts)
}

// CSVStrategy is the delimited-text import backed by the engine
type CSVStrategy struct {
	engine *Engine
}

func NewCSVStrategy(engine *Engine) *CSVStrategy {
	return &CSVStrategy{engine: engine}
}

func (s *CSVStrategy) Run(ctx context.Context, in io.Reader, opts Options) (models.ImportJob, models.ImportSummary, error) {
	return s.engine.Run(ctx, in, opts)
}
