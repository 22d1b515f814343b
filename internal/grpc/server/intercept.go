package grpcserver

import (
	"context"
	"strings"

	api "github.com/ak7sky/popmatch/internal/grpc/api"
	"github.com/ak7sky/popmatch/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func loggerInterceptor(logger logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		logger.Info("rpc %s started", info.FullMethod)
		defer logger.Info("rpc %s finished", info.FullMethod)
		logger.Debug("request data: %v", req)
		res, err := handler(ctx, req)
		if err != nil {
			logger.Error("error on rpc %s: %v", info.FullMethod, err)
		}
		return res, err
	}
}

func reqValidatorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == api.MatchService_FindNearest_FullMethodName {
			reqMsg := req.(*wrapperspb.StringValue)
			if strings.TrimSpace(reqMsg.GetValue()) == "" {
				return nil, status.Errorf(
					codes.InvalidArgument, "invalid request: missed required field (address)",
				)
			}
		}
		return handler(ctx, req)
	}
}
