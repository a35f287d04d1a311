package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const (
	headerRequestID = "X-Request-Id"
	headerAdminKey  = "X-Admin-Key"
	headerTenantID  = "X-Tenant-Id"
	headerAPIKey    = "X-API-Key"

	maxBodyBytes = 1 << 20
)

// handle is an endpoint: it returns the status and the JSON body to send.
type handle func(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{})

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func errorResponse(err error) (int, interface{}) {
	body := errorBody{Error: objects.ErrorCode(err), Message: err.Error()}
	if body.Error == objects.CodeInternal {
		body.Message = "internal error"
	}
	var verr *objects.ValidationError
	if errors.As(err, &verr) {
		body.Details = verr.Fields
	}
	return objects.HTTPStatus(err), body
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(headerRequestID)); id != "" && len(id) <= 128 {
		return id
	}
	return "af-req-" + uuid.NewString()
}

func (s *Server) wrap(h handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		reqID := requestID(r)
		ctx := contextx.NewContextFrom(r.Context(), s.db)
		ctx.Set(contextx.KeyRequestID, reqID)
		w.Header().Set(headerRequestID, reqID)

		status, body := h(ctx, r, ps)
		if status >= http.StatusInternalServerError {
			log.Errorf(ctx, "%s %s -> %d", r.Method, r.URL.Path, status)
		} else {
			log.Debugf(ctx, "%s %s -> %d", r.Method, r.URL.Path, status)
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf(nil, "encode response failed: %s", err.Error())
	}
}

// admin guards operator endpoints with the configured admin key.
func (s *Server) admin(h handle) handle {
	return func(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
		if s.adminKey == "" {
			return errorResponse(&objects.UnauthorizedError{Reason: "admin api is disabled"})
		}
		given := r.Header.Get(headerAdminKey)
		if subtle.ConstantTimeCompare([]byte(given), []byte(s.adminKey)) != 1 {
			return errorResponse(&objects.UnauthorizedError{Reason: "invalid admin key"})
		}
		return h(ctx, r, ps)
	}
}

// tenant is admin plus the tenant the call acts for.
func (s *Server) tenant(h handle) handle {
	return s.admin(func(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
		tenantID := strings.TrimSpace(r.Header.Get(headerTenantID))
		if tenantID == "" {
			return errorResponse(objects.NewValidationError("tenant is required",
				map[string]string{headerTenantID: "required"}))
		}
		ctx.Set(contextx.KeyTenantID, tenantID)
		return h(ctx, r, ps)
	})
}

// decode reads a JSON body into out; an empty body leaves out untouched.
func decode(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return objects.NewValidationError("malformed request body", map[string]string{"body": err.Error()})
	}
	return nil
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.Header.Get(headerAPIKey))
}

func (s *Server) panicHandler(w http.ResponseWriter, r *http.Request, v interface{}) {
	log.Errorf(nil, "%s %s panicked: %v", r.Method, r.URL.Path, v)
	w.Header().Set(headerRequestID, requestID(r))
	status, body := errorResponse(fmt.Errorf("panic: %v", v))
	writeJSON(w, status, body)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(headerRequestID, requestID(r))
	writeJSON(w, http.StatusNotFound, errorBody{Error: objects.CodeNotFound, Message: "no route for " + r.URL.Path})
}

func (s *Server) health(ctx *contextx.Context, r *http.Request, ps httprouter.Params) (int, interface{}) {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			return http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"}
		}
	}
	return http.StatusOK, map[string]string{"status": "ok"}
}
