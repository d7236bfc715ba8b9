package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvrezende/event-pipeline/internal/i18n"
	"github.com/mvrezende/event-pipeline/internal/models"
	"github.com/mvrezende/event-pipeline/pkg/metrics"
)

// ErrUnexpectedResultType means the completed operation's result does not
// expose the audit capabilities. It aborts only this event; the business
// write has already committed.
var ErrUnexpectedResultType = errors.New("operation result does not expose audit capabilities")

// Action keys the declared mapping tables of an audited operation
type Action string

const (
	ActionNew    Action = "NEW"
	ActionEdit   Action = "EDIT"
	ActionRemove Action = "REMOVE"
)

// ActionMapping declares which event type and description template an
// operation produces for one action
type ActionMapping struct {
	Action         Action
	Type           models.EventType
	DescriptionKey string
}

// AuditedResult is the capability contract an operation result must satisfy
// to be turned into an event
type AuditedResult interface {
	CompanyID() int64
	SaleEvent() bool
	ReferenceID() string
	// ReferencedEntityID is non-empty when the event targets a related
	// entity instead of the main one
	ReferencedEntityID() string
	// MessageParams supplies the arguments for the localized description
	// template
	MessageParams() []any
}

// AuditedRequest is the optional capability contract of the request argument
type AuditedRequest interface {
	ReferenceID() string
	ReferencedEntityID() string
}

// OptionalCustomer lets a result attach a customer-directed push target
type OptionalCustomer interface {
	CustomerID() string
}

// Resolver computes an event descriptor from a completed operation's result
// and its declared mapping tables
type Resolver struct {
	catalog *i18n.Catalog
	locale  string
}

func NewResolver(catalog *i18n.Catalog, locale string) *Resolver {
	return &Resolver{
		catalog: catalog,
		locale:  locale,
	}
}

// Resolve computes the event for a completed operation. The request argument
// may be nil.
//
// Mapping selection: when the request names an existing entity (the
// referenced entity id if the event targets a related entity, the reference
// id otherwise) and an EDIT entry is declared, the EDIT entry wins.
// Everything else falls back to the first declared entry. The first-entry
// fallback is a long-standing convention of the audited operations; keep it.
func (r *Resolver) Resolve(result any, request any, actor string, mappings []ActionMapping) (models.Event, error) {
	res, ok := result.(AuditedResult)
	if !ok {
		metrics.EventsDropped.WithLabelValues("resolver_error").Inc()
		return models.Event{}, fmt.Errorf("%w: %T", ErrUnexpectedResultType, result)
	}
	if len(mappings) == 0 {
		metrics.EventsDropped.WithLabelValues("resolver_error").Inc()
		return models.Event{}, fmt.Errorf("%w: no mappings declared", ErrUnexpectedResultType)
	}

	picked := mappings[0]
	if req, ok := request.(AuditedRequest); ok && req != nil {
		var existingID string
		if res.ReferencedEntityID() != "" {
			existingID = req.ReferencedEntityID()
		} else {
			existingID = req.ReferenceID()
		}
		if existingID != "" {
			if edit, ok := findAction(mappings, ActionEdit); ok {
				picked = edit
			}
		}
	}

	sale := res.SaleEvent()
	scope := models.ScopeCompany
	if sale {
		scope = models.ScopeGlobal
	}

	ev := models.Event{
		ID:          uuid.NewString(),
		Type:        picked.Type,
		Scope:       scope,
		CompanyID:   res.CompanyID(),
		Sale:        sale,
		Description: r.catalog.Lookup(r.locale, picked.DescriptionKey, res.MessageParams()...),
		ActorName:   actor,
		ReferenceID: res.ReferenceID(),
		OccurredAt:  time.Now(),
	}

	if c, ok := result.(OptionalCustomer); ok {
		ev.CustomerID = c.CustomerID()
	}

	return ev, nil
}

func findAction(mappings []ActionMapping, action Action) (ActionMapping, bool) {
	for _, m := range mappings {
		if m.Action == action {
			return m, true
		}
	}
	return ActionMapping{}, false
}
