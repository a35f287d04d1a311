package actions

import (
	"fmt"

	"autoflow/app/db/models"
	"autoflow/app/objects"
)

type AddTimeEntryParams struct {
	Hours       float64 `json:"hours" validate:"gt=0,lte=24"`
	Description string  `json:"description" validate:"required,max=1000"`
	ProjectID   string  `json:"projectId"`
	ClientID    string  `json:"clientId"`
	Date        string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Rate        float64 `json:"rate" validate:"gte=0"`
}

func addTimeEntry(ctx *actionContext, p *AddTimeEntryParams) (interface{}, error) {
	date := p.Date
	if date == "" {
		date = ctx.deps.now().Format("2006-01-02")
	}

	r := objects.NewRecord(ctx.tenantID(), models.KindTimeEntry)
	r.Status = "unbilled"
	r.Title = p.Description
	r.Amount = p.Hours * p.Rate
	r.Data["hours"] = p.Hours
	r.Data["date"] = date
	if p.ProjectID != "" {
		r.Data["projectId"] = p.ProjectID
	}
	if p.ClientID != "" {
		r.Data["clientId"] = p.ClientID
	}
	if p.Rate > 0 {
		r.Data["rate"] = p.Rate
	}
	if err := r.Save(ctx.Context); err != nil {
		return nil, fmt.Errorf("save time entry: %w", err)
	}
	return r.AsMap(), nil
}
