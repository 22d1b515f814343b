// Package api describes the popmatch.MatchService gRPC service. Its messages
// are protobuf well-known types, so no generated code is needed.
package api

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	MatchServiceName                        = "popmatch.MatchService"
	MatchService_FindNearest_FullMethodName = "/popmatch.MatchService/FindNearest"
	MatchService_Stats_FullMethodName       = "/popmatch.MatchService/Stats"
)

// MatchServiceServer is the server API for MatchService.
//
// FindNearest takes an address text and returns
// {ip, match_ip, match_bits, pop, asn}; Stats returns
// {addresses, slash16_buckets, slash8_buckets}.
type MatchServiceServer interface {
	FindNearest(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Stats(context.Context, *empty.Empty) (*structpb.Struct, error)
	mustEmbedUnimplementedMatchServiceServer()
}

type UnimplementedMatchServiceServer struct{}

func (UnimplementedMatchServiceServer) FindNearest(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FindNearest not implemented")
}

func (UnimplementedMatchServiceServer) Stats(context.Context, *empty.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Stats not implemented")
}

func (UnimplementedMatchServiceServer) mustEmbedUnimplementedMatchServiceServer() {}

func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&MatchService_ServiceDesc, srv)
}

func _MatchService_FindNearest_Handler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).FindNearest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchService_FindNearest_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServiceServer).FindNearest(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _MatchService_Stats_Handler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(empty.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchServiceServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchService_Stats_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchServiceServer).Stats(ctx, req.(*empty.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var MatchService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: MatchServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "FindNearest",
			Handler:    _MatchService_FindNearest_Handler,
		},
		{
			MethodName: "Stats",
			Handler:    _MatchService_Stats_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "popmatch/match.proto",
}

// MatchServiceClient is the client API for MatchService.
type MatchServiceClient interface {
	FindNearest(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Stats(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type matchServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMatchServiceClient(cc grpc.ClientConnInterface) MatchServiceClient {
	return &matchServiceClient{cc}
}

func (c *matchServiceClient) FindNearest(
	ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MatchService_FindNearest_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchServiceClient) Stats(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MatchService_Stats_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
