package grpcx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/slotsync/slotsync/libs/httpx"
)

// RequestIDMetadataKey is the canonical metadata key for request id
// propagation across service hops.
const RequestIDMetadataKey = "x-request-id"

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type DialOptions struct {
	Timeout time.Duration
	// Defaults to insecure transport (in-cluster traffic; mTLS belongs to
	// the mesh layer).
	TransportCredentials grpc.DialOption
}

func Dial(ctx context.Context, addr string, opts DialOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	dialOpts := []grpc.DialOption{
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestIDInterceptor()),
		grpc.WithBlock(),
	}
	if opts.TransportCredentials != nil {
		dialOpts = append(dialOpts, opts.TransportCredentials)
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, extra...)

	return grpc.DialContext(ctx, addr, dialOpts...)
}

// UnaryClientRequestIDInterceptor copies the request id from the context
// (HTTP or gRPC origin) into outgoing metadata.
func UnaryClientRequestIDInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		id := httpx.RequestIDFromContext(ctx)
		if id == "" {
			id = RequestIDFromContext(ctx)
		}
		if id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// UnaryServerRequestIDInterceptor reads (or mints) a request id and echoes
// it back in response headers.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = NewRequestID()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		ctx = WithRequestID(ctx, id)
		return handler(ctx, req)
	}
}
