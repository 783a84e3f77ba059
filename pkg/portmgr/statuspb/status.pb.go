// Code generated by protoc-gen-go, hand-maintained here in lieu of a
// protoc toolchain dependency. DO NOT EDIT the wire format without also
// updating status.proto.
//
// source: status.proto

package statuspb

import (
	"context"
	"fmt"

	"github.com/golang/protobuf/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PortStatusRequest names the port to report on.
type PortStatusRequest struct {
	Name string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
}

func (m *PortStatusRequest) Reset()         { *m = PortStatusRequest{} }
func (m *PortStatusRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*PortStatusRequest) ProtoMessage()    {}

func (m *PortStatusRequest) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

// PortStatus mirrors a vxi11.Port's externally interesting state.
type PortStatus struct {
	Name        string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Host        string `protobuf:"bytes,2,opt,name=host,proto3" json:"host,omitempty"`
	VxiName     string `protobuf:"bytes,3,opt,name=vxi_name,json=vxiName,proto3" json:"vxi_name,omitempty"`
	Connected   bool   `protobuf:"varint,4,opt,name=connected,proto3" json:"connected,omitempty"`
	CtrlAddr    int32  `protobuf:"varint,5,opt,name=ctrl_addr,json=ctrlAddr,proto3" json:"ctrl_addr,omitempty"`
	MaxRecvSize uint32 `protobuf:"varint,6,opt,name=max_recv_size,json=maxRecvSize,proto3" json:"max_recv_size,omitempty"`
	SingleLink  bool   `protobuf:"varint,7,opt,name=single_link,json=singleLink,proto3" json:"single_link,omitempty"`
}

func (m *PortStatus) Reset()         { *m = PortStatus{} }
func (m *PortStatus) String() string { return fmt.Sprintf("%+v", *m) }
func (*PortStatus) ProtoMessage()    {}

// ListPortsRequest takes no parameters; it lists every registered port.
type ListPortsRequest struct{}

func (m *ListPortsRequest) Reset()         { *m = ListPortsRequest{} }
func (m *ListPortsRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListPortsRequest) ProtoMessage()    {}

// ListPortsReply carries one PortStatus per registered port.
type ListPortsReply struct {
	Ports []*PortStatus `protobuf:"bytes,1,rep,name=ports,proto3" json:"ports,omitempty"`
}

func (m *ListPortsReply) Reset()         { *m = ListPortsReply{} }
func (m *ListPortsReply) String() string { return fmt.Sprintf("%+v", *m) }
func (*ListPortsReply) ProtoMessage()    {}

// Compile-time assertions that the message types satisfy proto.Message.
var (
	_ proto.Message = (*PortStatusRequest)(nil)
	_ proto.Message = (*PortStatus)(nil)
	_ proto.Message = (*ListPortsRequest)(nil)
	_ proto.Message = (*ListPortsReply)(nil)
)

// PortStatusServer is the service implemented by pkg/portmgr.
type PortStatusServer interface {
	GetPortStatus(context.Context, *PortStatusRequest) (*PortStatus, error)
	ListPorts(context.Context, *ListPortsRequest) (*ListPortsReply, error)
}

// RegisterPortStatusServer registers srv with s under the PortStatus
// service name.
func RegisterPortStatusServer(s *grpc.Server, srv PortStatusServer) {
	s.RegisterService(&_PortStatus_serviceDesc, srv)
}

func _PortStatus_GetPortStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PortStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PortStatusServer).GetPortStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/portmgr.v0.PortStatus/GetPortStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PortStatusServer).GetPortStatus(ctx, req.(*PortStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PortStatus_ListPorts_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListPortsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PortStatusServer).ListPorts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/portmgr.v0.PortStatus/ListPorts"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PortStatusServer).ListPorts(ctx, req.(*ListPortsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _PortStatus_serviceDesc = grpc.ServiceDesc{
	ServiceName: "portmgr.v0.PortStatus",
	HandlerType: (*PortStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPortStatus", Handler: _PortStatus_GetPortStatus_Handler},
		{MethodName: "ListPorts", Handler: _PortStatus_ListPorts_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "status.proto",
}

// PortStatusClient is the client API for the PortStatus service.
type PortStatusClient interface {
	GetPortStatus(ctx context.Context, in *PortStatusRequest, opts ...grpc.CallOption) (*PortStatus, error)
	ListPorts(ctx context.Context, in *ListPortsRequest, opts ...grpc.CallOption) (*ListPortsReply, error)
}

type portStatusClient struct {
	cc *grpc.ClientConn
}

// NewPortStatusClient wraps an established connection as a
// PortStatusClient.
func NewPortStatusClient(cc *grpc.ClientConn) PortStatusClient {
	return &portStatusClient{cc}
}

func (c *portStatusClient) GetPortStatus(ctx context.Context, in *PortStatusRequest, opts ...grpc.CallOption) (*PortStatus, error) {
	out := new(PortStatus)
	if err := c.cc.Invoke(ctx, "/portmgr.v0.PortStatus/GetPortStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *portStatusClient) ListPorts(ctx context.Context, in *ListPortsRequest, opts ...grpc.CallOption) (*ListPortsReply, error) {
	out := new(ListPortsReply)
	if err := c.cc.Invoke(ctx, "/portmgr.v0.PortStatus/ListPorts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NotFound builds the status.Error a GetPortStatus implementation should
// return for an unknown port name.
func NotFound(name string) error {
	return status.Errorf(codes.NotFound, "port %q not found", name)
}
