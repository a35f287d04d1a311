package actions

import (
	"strings"

	"autoflow/app/db/models"
	"autoflow/app/objects"
)

type CreateContactParams struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=64"`
	Company string `json:"company" validate:"max=255"`
}

func createContact(ctx *actionContext, p *CreateContactParams) (interface{}, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	existing, err := objects.QueryRecords(ctx.Context, objects.RecordFilter{
		TenantID: ctx.tenantID(),
		Kind:     models.KindContact,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Data.GetString("email"), email) {
			return nil, objects.NewValidationError("contact already exists", map[string]string{
				"email": "already used by contact " + c.ID,
			})
		}
	}

	r := objects.NewRecord(ctx.tenantID(), models.KindContact)
	r.Status = "active"
	r.Title = p.Name
	r.Data["email"] = email
	if p.Phone != "" {
		r.Data["phone"] = p.Phone
	}
	if p.Company != "" {
		r.Data["company"] = p.Company
	}
	if err := r.Save(ctx.Context); err != nil {
		return nil, err
	}
	return r.AsMap(), nil
}
