package objects

// Principal is the acting service account established by authentication.
type Principal struct {
	ServiceAccountID   string
	ServiceAccountName string
	BoundTenantID      string
	Permissions        SliceString
}

// WorkflowContext scopes a single dispatch: the resolved acting user and the
// principal acting for them. It is never persisted.
type WorkflowContext struct {
	UserID             string      `json:"userId"`
	UserName           string      `json:"userName"`
	UserEmail          string      `json:"userEmail"`
	ServiceAccountID   string      `json:"serviceAccountId,omitempty"`
	ServiceAccountName string      `json:"serviceAccountName,omitempty"`
	Permissions        SliceString `json:"permissions"`

	AutomationID string `json:"automationId,omitempty"`
	RunID        string `json:"runId,omitempty"`
}

// Allows reports whether action is on the allow-list, directly or through
// the wildcard.
func (w *WorkflowContext) Allows(action string) bool {
	if w == nil || action == "" {
		return false
	}
	return w.Permissions.Has(PermissionWildcard) || w.Permissions.Has(action)
}

// TenantID is the tenant whose data the dispatch reads and writes.
func (w *WorkflowContext) TenantID() string {
	return w.UserID
}
