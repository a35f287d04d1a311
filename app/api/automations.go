package api

import (
	"net/http"
	"strconv"

	"autoflow/app/automation/engine"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) runScheduled(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	n, err := s.engine.RunScheduledAutomations(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, map[string]int{"processed": n}
}

func (s *Server) seedDefaults(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	n, err := s.engine.SeedDefaults(ctx, ctx.GetTenantID())
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, map[string]int{"created": n}
}

type eventRequest struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

func (s *Server) publishEvent(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	req := eventRequest{}
	if err := decode(r, &req); err != nil {
		return errorResponse(err)
	}
	n, err := s.engine.HandleEvent(ctx, ctx.GetTenantID(), req.Event, req.Payload)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusAccepted, map[string]int{"automations": n}
}

func (s *Server) listAutomations(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	q := r.URL.Query()
	filter := objects.AutomationFilter{
		TenantID:    ctx.GetTenantID(),
		Category:    q.Get("category"),
		TriggerType: q.Get("triggerType"),
	}
	if v := q.Get("enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errorResponse(objects.NewValidationError("invalid filter", map[string]string{"enabled": "must be a boolean"}))
		}
		filter.Enabled = &enabled
	}
	views, err := s.engine.List(ctx, filter)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, map[string]interface{}{"automations": views}
}

func (s *Server) createAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	in := &engine.AutomationInput{}
	if err := decode(r, in); err != nil {
		return errorResponse(err)
	}
	v, err := s.engine.Create(ctx, ctx.GetTenantID(), in)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusCreated, v
}

func (s *Server) getAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	v, err := s.engine.Get(ctx, ctx.GetTenantID(), ps.ByName("id"))
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, v
}

func (s *Server) updateAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	in := &engine.AutomationInput{}
	if err := decode(r, in); err != nil {
		return errorResponse(err)
	}
	v, err := s.engine.Update(ctx, ctx.GetTenantID(), ps.ByName("id"), in)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, v
}

func (s *Server) deleteAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	deleted, err := s.engine.Delete(ctx, ctx.GetTenantID(), ps.ByName("id"))
	if err != nil {
		return errorResponse(err)
	}
	if !deleted {
		return http.StatusOK, map[string]interface{}{"deleted": false, "disabled": true}
	}
	return http.StatusOK, map[string]interface{}{"deleted": true}
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) toggleAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	req := toggleRequest{}
	if err := decode(r, &req); err != nil {
		return errorResponse(err)
	}
	v, err := s.engine.Toggle(ctx, ctx.GetTenantID(), ps.ByName("id"), req.Enabled)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, v
}

func (s *Server) testAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	result, err := s.engine.Test(ctx, ctx.GetTenantID(), ps.ByName("id"))
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, result
}

func (s *Server) runAutomation(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	report, err := s.engine.RunNow(ctx, ctx.GetTenantID(), ps.ByName("id"))
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, report
}

func (s *Server) listRuns(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	result, err := s.engine.Runs(ctx, ctx.GetTenantID(), ps.ByName("id"), page, limit)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, result
}
