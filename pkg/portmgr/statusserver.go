/*
Copyright 2018 Intel Corporation.

SPDX-License-Identifier: Apache-2.0
*/

package portmgr

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/pkg/errors"
	"google.golang.org/grpc"

	"github.com/hanlet/asyn/pkg/log"
	"github.com/hanlet/asyn/pkg/portmgr/statuspb"
	"github.com/hanlet/asyn/pkg/vxi11"
)

// ParseEndpoint splits a string of the form (unix|tcp)://<address> into
// its network and address parts, the same convention the rest of this
// codebase's gRPC servers use.
func ParseEndpoint(ep string) (string, string, error) {
	lower := strings.ToLower(ep)
	if strings.HasPrefix(lower, "unix://") || strings.HasPrefix(lower, "tcp://") {
		s := strings.SplitN(ep, "://", 2)
		if s[1] != "" {
			return s[0], s[1], nil
		}
	}
	return "", "", errors.Errorf("invalid endpoint: %v", ep)
}

// StatusServer exposes a Manager's port inventory over gRPC for
// diagnostics and monitoring. It is the DEVICE_INTR-free, read-only
// counterpart of the driver's own RPC traffic: nothing here talks to a
// gateway, it only reports what the Manager already knows.
type StatusServer struct {
	Endpoint string

	manager *Manager
	logger  log.Logger

	wg     sync.WaitGroup
	server *grpc.Server
	addr   net.Addr
}

// NewStatusServer builds a StatusServer bound to manager, listening on
// endpoint once Start is called.
func NewStatusServer(endpoint string, manager *Manager, logger log.Logger) *StatusServer {
	if logger == nil {
		logger = log.L()
	}
	return &StatusServer{Endpoint: endpoint, manager: manager, logger: logger}
}

// Start listens on the configured endpoint and serves in the background.
// Unlike the upstream NonBlockingGRPCServer this adapts, there is no
// OpenTracing interceptor: this codebase never wired tracing in past its
// own commented-out TODO, so the chain here is just server-side request
// logging.
func (s *StatusServer) Start(ctx context.Context) error {
	proto, addr, err := ParseEndpoint(s.Endpoint)
	if err != nil {
		return errors.Wrap(err, "parse endpoint")
	}
	if proto == "unix" {
		addr = "/" + addr
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "remove unix socket")
		}
	}
	listener, err := net.Listen(proto, addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr()

	interceptor := grpc_middleware.ChainUnaryServer(s.logInterceptor)
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	s.server = server
	statuspb.RegisterPortStatusServer(server, s)

	s.logger.Infow("status service listening", "address", listener.Addr())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := server.Serve(listener); err != nil {
			s.logger.Warnw("status service stopped serving", "error", err)
		}
	}()
	return nil
}

func (s *StatusServer) logInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warnw("status RPC failed", "method", info.FullMethod, "error", err)
	} else {
		s.logger.Debugw("status RPC served", "method", info.FullMethod)
	}
	return resp, err
}

// Addr returns the address Start bound to.
func (s *StatusServer) Addr() net.Addr {
	return s.addr
}

// Stop gracefully stops the server and waits for Serve to return.
func (s *StatusServer) Stop() {
	if s.server != nil {
		s.server.GracefulStop()
	}
	s.wg.Wait()
}

// GetPortStatus implements statuspb.PortStatusServer.
func (s *StatusServer) GetPortStatus(ctx context.Context, req *statuspb.PortStatusRequest) (*statuspb.PortStatus, error) {
	port, err := s.manager.Port(req.Name)
	if err != nil {
		return nil, statuspb.NotFound(req.Name)
	}
	return portStatusOf(port), nil
}

// ListPorts implements statuspb.PortStatusServer.
func (s *StatusServer) ListPorts(ctx context.Context, req *statuspb.ListPortsRequest) (*statuspb.ListPortsReply, error) {
	names := s.manager.PortNames()
	reply := &statuspb.ListPortsReply{Ports: make([]*statuspb.PortStatus, 0, len(names))}
	for _, name := range names {
		port, err := s.manager.Port(name)
		if err != nil {
			continue
		}
		reply.Ports = append(reply.Ports, portStatusOf(port))
	}
	return reply, nil
}

func portStatusOf(port *vxi11.Port) *statuspb.PortStatus {
	return &statuspb.PortStatus{
		Name:        port.Name,
		Host:        port.Host,
		VxiName:     port.VXIName,
		Connected:   port.Connected(),
		CtrlAddr:    int32(port.CtrlAddr()),
		MaxRecvSize: port.MaxRecvSize(),
		SingleLink:  port.IsSingleLink,
	}
}
