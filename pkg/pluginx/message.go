// Package pluginx runs action handlers out of process over JSON-RPC.
//
// A plugin process serves one or more named endpoints on a unix or tcp
// socket; the host dials it once per call.
package pluginx

const endpointRunFunc = "Run"

// MessageArgs is the request of one endpoint call. Attributes describe who
// is calling (tenant, user, service account, automation, request id).
type MessageArgs struct {
	Attributes map[string]interface{} `json:"attributes"`
	Params     map[string]interface{} `json:"params"`
}

type MessageReply struct {
	Result interface{} `json:"result"`
}

// Endpoint is implemented by a plugin action.
type Endpoint interface {
	Run(attrs map[string]interface{}, params map[string]interface{}) (interface{}, error)
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(attrs map[string]interface{}, params map[string]interface{}) (interface{}, error)

func (f EndpointFunc) Run(attrs map[string]interface{}, params map[string]interface{}) (interface{}, error) {
	return f(attrs, params)
}
