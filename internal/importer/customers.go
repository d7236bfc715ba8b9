package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mvrezende/event-pipeline/internal/events"
	"github.com/mvrezende/event-pipeline/internal/models"
)

// CustomerSchema describes the customer upload format. Status is a
// non-critical enum column: unrecognized values fall back to ACTIVE.
var CustomerSchema = Schema{
	Columns: []Column{
		{Name: "name", Required: true},
		{Name: "email"},
		{Name: "phone"},
		{Name: "status", Enum: []string{"ACTIVE", "INACTIVE"}, Default: "ACTIVE"},
	},
}

// CustomerMappings declares the event table for imported customer writes
var CustomerMappings = []events.ActionMapping{
	{Action: events.ActionNew, Type: models.EventCustomerNew, DescriptionKey: "event.customer.new"},
	{Action: events.ActionEdit, Type: models.EventCustomerEdit, DescriptionKey: "event.customer.edit"},
}

type customerResult struct {
	companyID int64
	id        string
	name      string
}

func (r customerResult) CompanyID() int64           { return r.companyID }
func (r customerResult) SaleEvent() bool            { return false }
func (r customerResult) ReferenceID() string        { return r.id }
func (r customerResult) ReferencedEntityID() string { return "" }
func (r customerResult) MessageParams() []any       { return []any{r.name} }

// CustomerSave writes one imported customer inside the row's transaction
func CustomerSave(ctx context.Context, tx pgx.Tx, row models.ImportRow, companyID int64) (any, error) {
	name := row.Fields["name"]
	if name == "" {
		return nil, fmt.Errorf("missing required field %q", "name")
	}

	id := uuid.NewString()
	query := `
		INSERT INTO customers (id, company_id, name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.Exec(ctx, query,
		id,
		companyID,
		name,
		row.Fields["email"],
		row.Fields["phone"],
		row.Fields["status"],
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}

	return customerResult{companyID: companyID, id: id, name: name}, nil
}
