package pluginx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, addr string) *PluginServer {
	srv, err := NewPluginServer(addr)
	require.NoError(t, err)

	require.NoError(t, srv.Register("acme.echo", EndpointFunc(func(attrs, params map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"tenant": attrs["tenantId"], "echo": params["text"]}, nil
	})))
	require.NoError(t, srv.Register("acme.fail", EndpointFunc(func(attrs, params map[string]interface{}) (interface{}, error) {
		return nil, errors.New("ledger unavailable")
	})))
	require.NoError(t, srv.Register("acme.slow", EndpointFunc(func(attrs, params map[string]interface{}) (interface{}, error) {
		time.Sleep(500 * time.Millisecond)
		return "late", nil
	})))
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return srv
}

func TestPluginRoundTrip(t *testing.T) {
	asserter := assert.New(t)

	for _, addr := range []string{"tcp://127.0.0.1:0", "unix://" + filepath.Join(t.TempDir(), "p.sock")} {
		srv := startServer(t, addr)
		client, err := NewPluginClient(srv.Addr())
		require.NoError(t, err)

		out, err := client.Call(context.Background(), "acme.echo",
			map[string]interface{}{"tenantId": "u-1"}, map[string]interface{}{"text": "hi"})
		if asserter.NoError(err, addr) {
			asserter.Equal(map[string]interface{}{"tenant": "u-1", "echo": "hi"}, out)
		}

		_, err = client.Call(context.Background(), "acme.fail", nil, nil)
		asserter.EqualError(err, "ledger unavailable")
		asserter.True(IsRemoteError(err))

		_, err = client.Call(context.Background(), "acme.missing", nil, nil)
		asserter.Error(err)
	}
}

func TestPluginCall_Deadline(t *testing.T) {
	srv := startServer(t, "tcp://127.0.0.1:0")
	client, err := NewPluginClient(srv.Addr())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Call(ctx, "acme.slow", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsRemoteError(err))
}

func TestNewPluginClient_Address(t *testing.T) {
	asserter := assert.New(t)

	_, err := NewPluginClient("http://example.com")
	asserter.Error(err)
	_, err = NewPluginClient("tcp://localhost")
	asserter.Error(err)
	_, err = NewPluginClient("unix://")
	asserter.Error(err)

	c, err := NewPluginClient("unix:///run/autoflow/acme.sock")
	if asserter.NoError(err) {
		asserter.Equal("unix:///run/autoflow/acme.sock", c.Addr())
	}
}
