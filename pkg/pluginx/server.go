package pluginx

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"

	"autoflow/pkg/log"
)

// endpoint is the net/rpc receiver wrapping an Endpoint.
type endpoint struct {
	name     string
	callback Endpoint
}

func (e *endpoint) Run(args *MessageArgs, reply *MessageReply) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf(nil, "plugin endpoint %s panicked: %v", e.name, r)
			err = errors.New("plugin endpoint panicked")
		}
	}()
	result, err := e.callback.Run(args.Attributes, args.Params)
	if err != nil {
		return err
	}
	reply.Result = result
	return nil
}

type PluginServer struct {
	server   *rpc.Server
	listener net.Listener
}

func NewPluginServer(addr string) (*PluginServer, error) {
	network, address, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		if _, err := os.Stat(address); err == nil {
			_ = os.Remove(address)
		}
	}

	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &PluginServer{server: rpc.NewServer(), listener: l}, nil
}

// Addr is the listening address in the form NewPluginClient accepts.
func (s *PluginServer) Addr() string {
	a := s.listener.Addr()
	return a.Network() + "://" + a.String()
}

func (s *PluginServer) Register(name string, e Endpoint) error {
	return s.server.RegisterName(name, &endpoint{name: name, callback: e})
}

// Serve accepts connections until Shutdown is called.
func (s *PluginServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf(nil, "plugin server accept failed: %v", err)
			continue
		}
		go s.server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

func (s *PluginServer) Shutdown() error {
	return s.listener.Close()
}
