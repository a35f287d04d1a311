package actions

import (
	"fmt"
	"strings"

	"autoflow/app/db/models"
	"autoflow/app/objects"
	"autoflow/pkg/log"
)

const (
	defaultCurrency  = "EUR"
	defaultDueDays   = 30
	defaultValidDays = 30
)

type CreateInvoiceParams struct {
	ClientID    string  `json:"clientId" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	DueDays     *int    `json:"dueDays" validate:"omitempty,gte=0,lte=365"`
	Description string  `json:"description" validate:"max=1000"`
}

type CreateQuoteParams struct {
	ClientID    string  `json:"clientId" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	ValidDays   *int    `json:"validDays" validate:"omitempty,gte=1,lte=365"`
	Description string  `json:"description" validate:"max=1000"`
}

// nextNumber numbers a tenant's records of one kind sequentially, e.g. INV-0007.
func nextNumber(ctx *actionContext, kind, prefix string) (string, error) {
	n, err := objects.CountRecords(ctx.Context, ctx.tenantID(), kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", prefix, n+1), nil
}

func currency(c string) string {
	if c == "" {
		return defaultCurrency
	}
	return strings.ToUpper(c)
}

func createInvoice(ctx *actionContext, p *CreateInvoiceParams) (interface{}, error) {
	number, err := nextNumber(ctx, models.KindInvoice, "INV")
	if err != nil {
		return nil, err
	}
	dueDays := defaultDueDays
	if p.DueDays != nil {
		dueDays = *p.DueDays
	}
	now := ctx.deps.now()

	r := objects.NewRecord(ctx.tenantID(), models.KindInvoice)
	r.Status = "draft"
	r.Title = p.Description
	if r.Title == "" {
		r.Title = "Invoice " + number
	}
	r.Amount = p.Amount
	r.Data["number"] = number
	r.Data["clientId"] = p.ClientID
	r.Data["currency"] = currency(p.Currency)
	r.Data["issueDate"] = now.Format("2006-01-02")
	r.Data["dueDate"] = now.AddDate(0, 0, dueDays).Format("2006-01-02")
	if ctx.wctx.AutomationID != "" {
		r.Data["automationId"] = ctx.wctx.AutomationID
	}
	if err := r.Save(ctx.Context); err != nil {
		return nil, err
	}
	log.Infof(ctx.Context, "invoice %s (%s) created for client %s", r.ID, number, p.ClientID)
	return r.AsMap(), nil
}

func createQuote(ctx *actionContext, p *CreateQuoteParams) (interface{}, error) {
	number, err := nextNumber(ctx, models.KindQuote, "QUO")
	if err != nil {
		return nil, err
	}
	validDays := defaultValidDays
	if p.ValidDays != nil {
		validDays = *p.ValidDays
	}
	now := ctx.deps.now()

	r := objects.NewRecord(ctx.tenantID(), models.KindQuote)
	r.Status = "draft"
	r.Title = p.Description
	if r.Title == "" {
		r.Title = "Quote " + number
	}
	r.Amount = p.Amount
	r.Data["number"] = number
	r.Data["clientId"] = p.ClientID
	r.Data["currency"] = currency(p.Currency)
	r.Data["validUntil"] = now.AddDate(0, 0, validDays).Format("2006-01-02")
	if err := r.Save(ctx.Context); err != nil {
		return nil, err
	}
	log.Infof(ctx.Context, "quote %s (%s) created for client %s", r.ID, number, p.ClientID)
	return r.AsMap(), nil
}
