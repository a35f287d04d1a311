package api

import (
	"net/http"

	"autoflow/app/credential"
	"autoflow/pkg/contextx"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) createServiceAccount(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	in := credential.IssueInput{}
	if err := decode(r, &in); err != nil {
		return errorResponse(err)
	}
	if in.CreatedBy == "" {
		in.CreatedBy = "admin"
	}
	cred, err := s.auth.Issue(ctx, in)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusCreated, cred
}

func (s *Server) rotateServiceAccount(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	cred, err := s.auth.Rotate(ctx, ps.ByName("id"))
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, cred
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (s *Server) setServiceAccountActive(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	req := activeRequest{}
	if err := decode(r, &req); err != nil {
		return errorResponse(err)
	}
	sa, err := s.auth.SetActive(ctx, ps.ByName("id"), req.Active)
	if err != nil {
		return errorResponse(err)
	}
	return http.StatusOK, sa
}
