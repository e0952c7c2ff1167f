package grpcbus

import (
    "context"

    "google.golang.org/grpc"
)

const serviceName = "lsf.v1.ControllerService"

const (
    methodJoin    = "/" + serviceName + "/Join"
    methodLeave   = "/" + serviceName + "/Leave"
    methodCall    = "/" + serviceName + "/Call"
    methodSignals = "/" + serviceName + "/Signals"
)

// envelope types carried by the JSON codec
type empty struct{}

type joinRequest struct {
    ClientID string `json:"clientId"`
}

type joinResponse struct {
    SessionID uint32 `json:"sessionId"`
    DeviceID  string `json:"deviceId"`
}

type leaveRequest struct {
    SessionID uint32 `json:"sessionId"`
}

type signalsRequest struct {
    SessionID uint32 `json:"sessionId"`
}

// frame carries one D-Bus encoded message. Error is set on a reply when the
// host could not produce one.
type frame struct {
    SessionID uint32 `json:"sessionId"`
    Data      []byte `json:"data,omitempty"`
    Error     string `json:"error,omitempty"`
}

type controllerServiceServer interface {
    Join(ctx context.Context, in *joinRequest) (*joinResponse, error)
    Leave(ctx context.Context, in *leaveRequest) (*empty, error)
    Call(ctx context.Context, in *frame) (*frame, error)
    Signals(in *signalsRequest, stream grpc.ServerStream) error
}

// hand-written descriptor, no codegen required
var controllerServiceDesc = grpc.ServiceDesc{
    ServiceName: serviceName,
    HandlerType: (*controllerServiceServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "Join", Handler: joinHandler},
        {MethodName: "Leave", Handler: leaveHandler},
        {MethodName: "Call", Handler: callHandler},
    },
    Streams: []grpc.StreamDesc{{
        StreamName:    "Signals",
        ServerStreams: true,
        Handler:       signalsHandler,
    }},
}

func joinHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(joinRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(controllerServiceServer).Join(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodJoin}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(controllerServiceServer).Join(ctx, req.(*joinRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func leaveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(leaveRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(controllerServiceServer).Leave(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLeave}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(controllerServiceServer).Leave(ctx, req.(*leaveRequest))
    }
    return interceptor(ctx, in, info, handler)
}

func callHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
    in := new(frame)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(controllerServiceServer).Call(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCall}
    handler := func(ctx context.Context, req interface{}) (interface{}, error) {
        return srv.(controllerServiceServer).Call(ctx, req.(*frame))
    }
    return interceptor(ctx, in, info, handler)
}

func signalsHandler(srv interface{}, stream grpc.ServerStream) error {
    in := new(signalsRequest)
    if err := stream.RecvMsg(in); err != nil { return err }
    return srv.(controllerServiceServer).Signals(in, stream)
}
