package api

import (
	"net/http"

	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/julienschmidt/httprouter"
)

type dispatchRequest struct {
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters"`
	UserID     string                 `json:"userId"`
}

// dispatch authenticates the caller before acting on anything else, then
// resolves the user and runs the action. The body is read first only so that
// requests rejected early are still logged with their action.
func (s *Server) dispatch(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	req := dispatchRequest{}
	decodeErr := decode(r, &req)

	token := bearerToken(r)
	if token == "" {
		return s.rejectDispatch(ctx, req, nil, &objects.UnauthorizedError{Reason: "missing credential"})
	}
	principal, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return s.rejectDispatch(ctx, req, nil, err)
	}
	if decodeErr != nil {
		return s.rejectDispatch(ctx, req, principal, decodeErr)
	}
	wctx, err := s.resolver.Context(ctx, principal, req.UserID)
	if err != nil {
		return s.rejectDispatch(ctx, req, principal, err)
	}
	ctx.Set(contextx.KeyTenantID, wctx.UserID)

	result := s.router.Dispatch(ctx, req.Action, req.Parameters, wctx)
	if result.Success {
		return http.StatusOK, result
	}
	return objects.HTTPStatus(result.Err()), result
}

func (s *Server) rejectDispatch(ctx *contextx.Context, req dispatchRequest, p *objects.Principal, err error) (int, interface{}) {
	saID := ""
	if p != nil {
		saID = p.ServiceAccountID
	}
	log.Infof(ctx, "dispatch action=%s user=%s serviceAccount=%s outcome=%s rejected: %s",
		req.Action, req.UserID, saID, objects.ErrorCode(err), err.Error())
	return errorResponse(err)
}
