package models

import "time"

// EventType identifies the business operation that produced an event
type EventType string

const (
	EventCustomerNew    EventType = "CUSTOMER_NEW"
	EventCustomerEdit   EventType = "CUSTOMER_EDIT"
	EventCustomerRemove EventType = "CUSTOMER_REMOVE"
	EventSaleNew        EventType = "SALE_NEW"
	EventImportCustomer EventType = "IMPORT_CUSTOMER"
	EventImportProduct  EventType = "IMPORT_PRODUCT"
	EventImportError    EventType = "IMPORT_ERROR"
)

// Scope selects the delivery channel for an event
type Scope string

const (
	ScopeCompany Scope = "company"
	ScopeGlobal  Scope = "global"
)

// Event is an immutable record of a completed state change. It exists only
// in memory until it is delivered after the producing transaction commits.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Scope       Scope     `json:"scope"`
	CompanyID   int64     `json:"company_id"`
	Sale        bool      `json:"sale"`
	Description string    `json:"description"`
	ActorName   string    `json:"actor_name"`
	ReferenceID string    `json:"reference_id"`
	CustomerID  string    `json:"customer_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TransactionOutcome is reported exactly once per unit of work
type TransactionOutcome string

const (
	OutcomeCommitted  TransactionOutcome = "committed"
	OutcomeRolledBack TransactionOutcome = "rolled_back"
)

// Subscriber is one registered push target, fetched on demand from the
// token directory
type Subscriber struct {
	DeviceToken string `json:"device_token"`
	OwnerRole   string `json:"owner_role"`
}
