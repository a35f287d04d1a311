// Package actions holds the domain handlers an automation or a workflow
// caller can invoke, and the registry they are looked up in.
package actions

import (
	"time"

	"autoflow/app/events"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
)

const (
	CreateInvoice    = "create_invoice"
	CreateQuote      = "create_quote"
	AddTimeEntry     = "add_time_entry"
	CreateContact    = "create_contact"
	Search           = "search"
	UpdateStatus     = "update_status"
	SendNotification = "send_notification"
)

// Deps are the collaborators shared by the builtin handlers.
type Deps struct {
	Publisher events.Publisher
	Now       func() time.Time
}

func (d *Deps) now() time.Time {
	if d == nil || d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func (d *Deps) publisher() events.Publisher {
	if d == nil || d.Publisher == nil {
		return events.NopPublisher{}
	}
	return d.Publisher
}

// actionContext is what a builtin handler sees during one call.
type actionContext struct {
	*contextx.Context
	wctx *objects.WorkflowContext
	deps *Deps
}

func (c *actionContext) tenantID() string {
	return c.wctx.TenantID()
}

// NewDefaultRegistry registers every builtin handler.
func NewDefaultRegistry(deps Deps) *Registry {
	d := &deps
	return NewRegistry(
		newHandler(CreateInvoice, d, createInvoice),
		newHandler(CreateQuote, d, createQuote),
		newHandler(AddTimeEntry, d, addTimeEntry),
		newHandler(CreateContact, d, createContact),
		newHandler(Search, d, search),
		newHandler(UpdateStatus, d, updateStatus),
		newHandler(SendNotification, d, sendNotification),
	)
}
