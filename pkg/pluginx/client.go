package pluginx

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"time"
)

type PluginClient struct {
	network string
	address string
}

// NewPluginClient parses addr, either unix:///path/to.sock or tcp://host:port.
func NewPluginClient(addr string) (*PluginClient, error) {
	network, address, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}
	return &PluginClient{network: network, address: address}, nil
}

func (c *PluginClient) Addr() string {
	return c.network + "://" + c.address
}

// Call invokes the endpoint registered as name. The connection is bounded by
// ctx's deadline and is closed when ctx is cancelled.
func (c *PluginClient) Call(ctx context.Context, name string, attrs, params map[string]interface{}) (interface{}, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, c.network, c.address)
	if err != nil {
		return nil, fmt.Errorf("dial plugin %s: %w", c.Addr(), err)
	}
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = conn.SetDeadline(deadline)
	}

	client := jsonrpc.NewClient(conn)
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	reply := MessageReply{}
	args := MessageArgs{Attributes: attrs, Params: params}
	if err := client.Call(name+"."+endpointRunFunc, &args, &reply); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return reply.Result, nil
}

// IsRemoteError reports an error returned by the endpoint itself rather than
// a transport failure.
func IsRemoteError(err error) bool {
	_, ok := err.(rpc.ServerError)
	return ok
}

func parseAddr(addr string) (string, string, error) {
	uri, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	switch uri.Scheme {
	case "unix":
		path := uri.Host + uri.Path
		if path == "" {
			return "", "", fmt.Errorf("plugin address %q has no socket path", addr)
		}
		return "unix", path, nil
	case "tcp", "tcp4", "tcp6":
		if uri.Host == "" || !strings.Contains(uri.Host, ":") {
			return "", "", fmt.Errorf("plugin address %q needs host:port", addr)
		}
		return uri.Scheme, uri.Host, nil
	}
	return "", "", fmt.Errorf("plugin address scheme '%s' is not supported", uri.Scheme)
}
