package actions

import (
	"autoflow/app/events"
	"autoflow/app/objects"
)

type SendNotificationParams struct {
	To       string `json:"to" validate:"omitempty,email"`
	RecordID string `json:"recordId" validate:"required_without=To"`
	Subject  string `json:"subject" validate:"required,max=255"`
	Body     string `json:"body" validate:"max=10000"`
}

// sendNotification hands the message to the delivery service through the
// event bus. When only a record is named, its contact address is used.
func sendNotification(ctx *actionContext, p *SendNotificationParams) (interface{}, error) {
	to := p.To
	if p.RecordID != "" {
		r, err := objects.QueryRecordByID(ctx.Context, ctx.tenantID(), p.RecordID)
		if err != nil {
			return nil, err
		}
		if to == "" {
			to = r.Data.GetString("email")
		}
	}
	if to == "" {
		return nil, objects.NewValidationError("no recipient", map[string]string{
			"to": "record has no email address",
		})
	}

	payload := map[string]interface{}{
		"to":      to,
		"subject": p.Subject,
		"body":    p.Body,
		"userId":  ctx.wctx.UserID,
	}
	if p.RecordID != "" {
		payload["recordId"] = p.RecordID
	}
	if ctx.wctx.AutomationID != "" {
		payload["automationId"] = ctx.wctx.AutomationID
	}
	ev := events.NewEvent(ctx.Context, events.TopicNotificationRequested, ctx.tenantID(), payload)
	if err := ctx.deps.publisher().Publish(ctx.Context, ev); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"queued":  true,
		"eventId": ev.ID,
		"to":      to,
	}, nil
}
