package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompanyPlans is the Postgres-backed plan checker used by the premium gate
type CompanyPlans struct {
	pool *pgxpool.Pool
}

func NewCompanyPlans(pool *pgxpool.Pool) *CompanyPlans {
	return &CompanyPlans{pool: pool}
}

func (p *CompanyPlans) HasPremium(ctx context.Context, companyID int64) (bool, error) {
	query := `SELECT premium FROM company_plans WHERE company_id = $1`

	var premium bool
	err := p.pool.QueryRow(ctx, query, companyID).Scan(&premium)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch company plan: %w", err)
	}
	return premium, nil
}
