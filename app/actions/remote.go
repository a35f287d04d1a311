package actions

import (
	"context"
	"fmt"
	"sort"

	"autoflow/app/objects"
	"autoflow/pkg/contextx"
	"autoflow/pkg/pluginx"
)

// RemoteHandler forwards an action to a plugin process. Parameters are
// passed through untouched; the plugin validates them.
type RemoteHandler struct {
	name   string
	client *pluginx.PluginClient
}

func NewRemoteHandler(name, addr string) (*RemoteHandler, error) {
	client, err := pluginx.NewPluginClient(addr)
	if err != nil {
		return nil, fmt.Errorf("plugin action %s: %w", name, err)
	}
	return &RemoteHandler{name: name, client: client}, nil
}

func (h *RemoteHandler) Name() string {
	return h.name
}

func (h *RemoteHandler) Validate(params map[string]interface{}, partial bool) error {
	return nil
}

func (h *RemoteHandler) Execute(ctx *contextx.Context, params map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, error) {
	attrs := map[string]interface{}{
		"tenantId":         wctx.TenantID(),
		"userId":           wctx.UserID,
		"serviceAccountId": wctx.ServiceAccountID,
		"automationId":     wctx.AutomationID,
		"runId":            wctx.RunID,
		"requestId":        ctx.GetRequestID(),
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	var parent context.Context = ctx
	if ctx.Context == nil {
		parent = context.Background()
	}
	out, err := h.client.Call(parent, h.name, attrs, params)
	if err != nil {
		if pluginx.IsRemoteError(err) {
			return nil, &objects.ExecutionError{Action: h.name, Err: err}
		}
		return nil, fmt.Errorf("call plugin %s at %s: %w", h.name, h.client.Addr(), err)
	}
	return out, nil
}

// RegisterPlugins adds a RemoteHandler per action name to address entry.
// A plugin may shadow a builtin action.
func RegisterPlugins(r *Registry, plugins map[string]string) error {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h, err := NewRemoteHandler(name, plugins[name])
		if err != nil {
			return err
		}
		r.Register(h)
	}
	return nil
}
