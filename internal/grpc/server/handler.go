package grpcserver

import (
	"context"
	"errors"

	"github.com/ak7sky/popmatch/internal/core"
	"github.com/ak7sky/popmatch/internal/core/model"
	api "github.com/ak7sky/popmatch/internal/grpc/api"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type serverHandler struct {
	api.UnimplementedMatchServiceServer
	msrv core.Matcher
}

func newHandler(msrv core.Matcher) *serverHandler {
	return &serverHandler{msrv: msrv}
}

func (s *serverHandler) FindNearest(ctx context.Context, addr *wrapperspb.StringValue) (*structpb.Struct, error) {
	record, err := s.msrv.FindNearest(ctx, addr.GetValue())
	if err != nil {
		return nil, errResponse(err)
	}
	if record == nil {
		return nil, status.Errorf(codes.NotFound, "no match found for %s", addr.GetValue())
	}
	return recordStruct(record)
}

func (s *serverHandler) Stats(context.Context, *empty.Empty) (*structpb.Struct, error) {
	stats := s.msrv.IndexStats()
	return structpb.NewStruct(map[string]any{
		"addresses":       stats.Addrs,
		"slash16_buckets": stats.Slash16s,
		"slash8_buckets":  stats.Slash8s,
	})
}

func recordStruct(record *model.Record) (*structpb.Struct, error) {
	fields := map[string]any{
		"ip":         record.RelayIP,
		"match_ip":   record.IP,
		"match_bits": int(record.MatchBits),
	}
	if record.Pop != "" {
		fields["pop"] = record.Pop
	}
	if record.ASN != "" {
		fields["asn"] = record.ASN
	}
	res, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func errResponse(errSrv error) error {
	switch {
	case errSrv == nil:
		return nil
	case errors.Is(errSrv, model.ErrParse), errors.Is(errSrv, core.ErrExcluded):
		return status.Error(codes.InvalidArgument, errSrv.Error())
	case errors.Is(errSrv, core.ErrIndexNotLoaded):
		return status.Error(codes.Unavailable, errSrv.Error())
	default:
		return status.Error(codes.Internal, errSrv.Error())
	}
}
