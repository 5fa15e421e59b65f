package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor tags every call with a request id and logs its
// outcome. The id rides the context, so handler log lines pick it up
// through the context handler.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = WithRequestID(ctx, uuid.NewString())
		start := time.Now()

		resp, err := handler(ctx, req)

		logCall(ctx, logger, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := WithRequestID(ss.Context(), uuid.NewString())
		start := time.Now()

		err := handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})

		logCall(ctx, logger, info.FullMethod, time.Since(start), err)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, elapsed time.Duration, err error) {
	if err != nil {
		logger.ErrorContext(ctx, "rpc failed",
			"method", method,
			"code", status.Code(err).String(),
			"duration", elapsed,
			"error", err,
		)
		return
	}
	logger.DebugContext(ctx, "rpc complete", "method", method, "duration", elapsed)
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
