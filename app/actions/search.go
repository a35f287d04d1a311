package actions

import (
	"autoflow/app/objects"
)

type SearchParams struct {
	Query string `json:"query" validate:"required,max=255"`
	Kind  string `json:"kind" validate:"omitempty,oneof=invoice quote time_entry contact"`
	Limit int    `json:"limit" validate:"omitempty,gte=1,lte=50"`
}

func search(ctx *actionContext, p *SearchParams) (interface{}, error) {
	limit := p.Limit
	if limit == 0 {
		limit = 10
	}
	records, err := objects.QueryRecords(ctx.Context, objects.RecordFilter{
		TenantID: ctx.tenantID(),
		Kind:     p.Kind,
		Query:    p.Query,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		results = append(results, r.AsMap())
	}
	return map[string]interface{}{
		"query":   p.Query,
		"count":   len(results),
		"results": results,
	}, nil
}
