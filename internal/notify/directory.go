package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvrezende/event-pipeline/internal/models"
)

// TokenDirectory reads push subscriptions from the token tables maintained
// by the device registration flow
type TokenDirectory struct {
	pool *pgxpool.Pool
}

func NewTokenDirectory(pool *pgxpool.Pool) *TokenDirectory {
	return &TokenDirectory{pool: pool}
}

func (d *TokenDirectory) CompanySubscribers(ctx context.Context, companyID int64) ([]models.Subscriber, error) {
	query := `
		SELECT device_token, owner_role
		FROM push_subscriptions
		WHERE company_id = $1 AND active = true
	`
	return d.fetch(ctx, query, companyID)
}

func (d *TokenDirectory) CustomerSubscribers(ctx context.Context, customerID string) ([]models.Subscriber, error) {
	query := `
		SELECT device_token, owner_role
		FROM customer_push_subscriptions
		WHERE customer_id = $1 AND active = true
	`
	return d.fetch(ctx, query, customerID)
}

func (d *TokenDirectory) fetch(ctx context.Context, query string, arg any) ([]models.Subscriber, error) {
	rows, err := d.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscribers: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(&sub.DeviceToken, &sub.OwnerRole); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
