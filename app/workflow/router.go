package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"autoflow/app/actions"
	"autoflow/app/events"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"
)

type Router struct {
	registry  *actions.Registry
	publisher events.Publisher
	timeout   time.Duration
}

func NewRouter(registry *actions.Registry, publisher events.Publisher, timeout time.Duration) *Router {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Router{registry: registry, publisher: publisher, timeout: timeout}
}

// Dispatch runs action for wctx and never lets an error or panic escape: the
// outcome is always an envelope. The permission check happens before the
// registry is consulted, so callers learn nothing about actions they may not
// use.
func (r *Router) Dispatch(ctx *contextx.Context, action string, params map[string]interface{}, wctx *objects.WorkflowContext) (result ActionResult) {
	action = strings.TrimSpace(action)
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Errorf(ctx, "dispatch %s panicked: %v", action, p)
			result = ActionResult{
				Success: false,
				Error:   objects.CodeInternal,
				Message: "internal error",
				err:     fmt.Errorf("dispatch panicked: %v", p),
			}
		}
		r.audit(ctx, action, wctx, result, time.Since(started))
	}()

	if action == "" {
		return failed(objects.NewValidationError("action is required", map[string]string{"action": "required"}))
	}
	if wctx == nil || wctx.UserID == "" {
		return failed(&objects.AmbiguousContextError{Reason: "no user context"})
	}
	if !wctx.Allows(action) {
		return failed(&objects.ForbiddenError{Reason: fmt.Sprintf("action %s is not permitted", action)})
	}
	h, ok := r.registry.Lookup(action)
	if !ok {
		return failed(&objects.UnsupportedActionError{Action: action})
	}
	if params == nil {
		params = map[string]interface{}{}
	}

	data, err := actions.CallWithTimeout(ctx, h, params, wctx, r.timeout)
	if err != nil {
		var timeout *actions.TimeoutError
		if errors.As(err, &timeout) {
			err = &objects.ExecutionError{Action: action, Err: err}
		} else if objects.ErrorCode(err) == objects.CodeInternal {
			log.Errorf(ctx, "action %s failed: %s", action, err.Error())
		}
		return failed(err)
	}
	return succeeded(data, fmt.Sprintf("%s completed", action))
}

// audit logs every dispatch with the acting user and publishes it.
func (r *Router) audit(ctx *contextx.Context, action string, wctx *objects.WorkflowContext, result ActionResult, took time.Duration) {
	userID, saID := "", ""
	if wctx != nil {
		userID, saID = wctx.UserID, wctx.ServiceAccountID
	}
	outcome := "success"
	if !result.Success {
		outcome = result.Error
	}
	log.Infof(ctx, "dispatch action=%s user=%s serviceAccount=%s outcome=%s took=%s", action, userID, saID, outcome, took)

	payload := map[string]interface{}{
		"action":           action,
		"userId":           userID,
		"serviceAccountId": saID,
		"success":          result.Success,
	}
	if !result.Success {
		payload["error"] = result.Error
	}
	if err := r.publisher.Publish(ctx, events.NewEvent(ctx, events.TopicActionDispatched, userID, payload)); err != nil {
		log.Warnf(ctx, "publish dispatch of %s failed: %s", action, err.Error())
	}
}
