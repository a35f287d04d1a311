package actions

import (
	"fmt"
	"strings"

	"autoflow/app/db/models"
	"autoflow/app/objects"
	"autoflow/pkg/log"
)

type UpdateStatusParams struct {
	RecordID string `json:"recordId" validate:"required"`
	Status   string `json:"status" validate:"required"`
}

var allowedStatuses = map[string][]string{
	models.KindInvoice:   {"draft", "sent", "paid", "overdue", "cancelled"},
	models.KindQuote:     {"draft", "sent", "accepted", "declined", "expired"},
	models.KindTimeEntry: {"unbilled", "billed"},
	models.KindContact:   {"active", "archived"},
}

func updateStatus(ctx *actionContext, p *UpdateStatusParams) (interface{}, error) {
	r, err := objects.QueryRecordByID(ctx.Context, ctx.tenantID(), p.RecordID)
	if err != nil {
		return nil, err
	}
	if allowed, ok := allowedStatuses[r.Kind]; ok && !objects.SliceString(allowed).Has(p.Status) {
		return nil, objects.NewValidationError("invalid status", map[string]string{
			"status": fmt.Sprintf("%s status must be one of %s", r.Kind, strings.Join(allowed, ", ")),
		})
	}

	previous := r.Status
	r.Status = p.Status
	if p.Status == "paid" {
		r.Data["paidAt"] = ctx.deps.now().Format("2006-01-02")
		if err := r.Update(ctx.Context, "Status", "Data"); err != nil {
			return nil, err
		}
	} else if err := r.Update(ctx.Context, "Status"); err != nil {
		return nil, err
	}
	log.Infof(ctx.Context, "%s %s status %s -> %s", r.Kind, r.ID, previous, p.Status)

	out := r.AsMap()
	out["previousStatus"] = previous
	return out, nil
}
