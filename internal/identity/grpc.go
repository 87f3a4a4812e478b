package identity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"stocksearch/internal/logger"
	"stocksearch/internal/metrics"
)

const (
	serviceName         = "stocksearch.identity.v1.TokenValidator"
	validateTokenMethod = "/" + serviceName + "/ValidateToken"
	requestIDMetadata   = "x-request-id"
)

// TokenValidatorServer is the server API of the TokenValidator service.
// Messages are protobuf well-known types: the token travels as a
// StringValue and the verdict as a Struct {"valid": bool, "reason": string}.
type TokenValidatorServer interface {
	ValidateToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var tokenValidatorServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TokenValidatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ValidateToken",
			Handler:    validateTokenHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stocksearch/identity/v1/token_validator",
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenValidatorServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: validateTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenValidatorServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterServer exposes v as a TokenValidator service on s.
func RegisterServer(s grpc.ServiceRegistrar, v Validator, log *logrus.Logger) {
	s.RegisterService(&tokenValidatorServiceDesc, &tokenServer{validator: v, log: log})
}

type tokenServer struct {
	validator Validator
	log       *logrus.Logger
}

func (s *tokenServer) ValidateToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	entry := logrus.NewEntry(s.log)
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDMetadata); len(ids) > 0 {
			entry = entry.WithField("request_id", ids[0])
		}
	}

	res, err := s.validator.Validate(ctx, req.GetValue())
	if err != nil {
		entry.WithError(err).Error("token validation failed")
		return nil, err
	}
	entry.WithField("valid", res.Valid).Info("token check")

	return structpb.NewStruct(map[string]any{
		"valid":  res.Valid,
		"reason": res.Reason,
	})
}

// GRPCValidator asks a remote TokenValidator service.
type GRPCValidator struct {
	conn grpc.ClientConnInterface
}

func NewGRPCValidator(conn grpc.ClientConnInterface) *GRPCValidator {
	return &GRPCValidator{conn: conn}
}

// DialGRPCValidator connects to an identity manager at addr.
func DialGRPCValidator(addr string) (*GRPCValidator, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to identity manager: %w", err)
	}
	return NewGRPCValidator(conn), conn, nil
}

func (v *GRPCValidator) Validate(ctx context.Context, token string) (Result, error) {
	if token == "" {
		metrics.TokenValidationsTotal.WithLabelValues("grpc", "invalid").Inc()
		return emptyToken, nil
	}
	if id := logger.IDFrom(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, requestIDMetadata, id)
	}

	out := new(structpb.Struct)
	if err := v.conn.Invoke(ctx, validateTokenMethod, wrapperspb.String(token), out); err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("grpc", "error").Inc()
		return Result{}, fmt.Errorf("identity manager: %w", err)
	}

	res := Result{
		Valid:  out.GetFields()["valid"].GetBoolValue(),
		Reason: out.GetFields()["reason"].GetStringValue(),
	}
	if res.Valid {
		metrics.TokenValidationsTotal.WithLabelValues("grpc", "valid").Inc()
	} else {
		metrics.TokenValidationsTotal.WithLabelValues("grpc", "invalid").Inc()
	}
	return res, nil
}
