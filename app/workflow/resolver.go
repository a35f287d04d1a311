// Package workflow serves external workflow callers: it resolves on whose
// behalf a service account acts and routes the requested action to its
// handler.
package workflow

import (
	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"
)

type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve picks the user a call acts for. A tenant bound to the credential
// wins; a requested user is only honored when it matches that tenant or when
// the credential is global, in which case it is mandatory.
func (r *Resolver) Resolve(ctx *contextx.Context, serviceAccountID, boundTenantID, requestedUserID string) (*objects.User, error) {
	var userID string
	switch {
	case boundTenantID == "" && requestedUserID == "":
		return nil, &objects.AmbiguousContextError{Reason: "no bound tenant and no userId in the request"}
	case boundTenantID != "" && requestedUserID != "" && requestedUserID != boundTenantID:
		log.Warnf(ctx, "service account %s bound to %s asked to act for %s", serviceAccountID, boundTenantID, requestedUserID)
		return nil, &objects.ForbiddenError{Reason: "credential is bound to another tenant"}
	case boundTenantID != "":
		userID = boundTenantID
	default:
		userID = requestedUserID
	}
	return objects.QueryUserByID(ctx, userID)
}

// Context builds the workflow context of one call made with principal p.
func (r *Resolver) Context(ctx *contextx.Context, p *objects.Principal, requestedUserID string) (*objects.WorkflowContext, error) {
	if p == nil {
		return nil, &objects.UnauthorizedError{Reason: "no principal"}
	}
	u, err := r.Resolve(ctx, p.ServiceAccountID, p.BoundTenantID, requestedUserID)
	if err != nil {
		return nil, err
	}
	return &objects.WorkflowContext{
		UserID:             u.ID,
		UserName:           u.Name,
		UserEmail:          u.Email,
		ServiceAccountID:   p.ServiceAccountID,
		ServiceAccountName: p.ServiceAccountName,
		Permissions:        p.Permissions,
	}, nil
}
