package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/internal/registry"
	"github.com/haasonsaas/lattice/pkg/api"
)

// proxyStreamDesc treats every forwarded call as bidirectional streaming.
// Unary calls degenerate to one frame in each direction, so a single shape
// covers the whole method surface of every backend.
var proxyStreamDesc = &grpc.StreamDesc{
	ServerStreams: true,
	ClientStreams: true,
}

// handleProxy is the gateway's unknown-service handler. It resolves the
// routing tag against the registry, opens one outbound connection for this
// call, and replays raw frames in both directions. The backend's status is
// returned verbatim; only local defects become Internal.
func (s *Server) handleProxy(_ any, serverStream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(serverStream)
	if !ok {
		return status.Error(codes.Internal, "proxy: no method in server stream")
	}

	ctx := serverStream.Context()
	md, _ := metadata.FromIncomingContext(ctx)

	target := ""
	if vals := md.Get(api.TargetServiceKey); len(vals) > 0 {
		target = vals[0]
	}
	if target == "" {
		return status.Errorf(codes.InvalidArgument, "missing %s metadata", api.TargetServiceKey)
	}
	ctx = observability.WithTargetService(ctx, target)

	addr, err := s.registry.ResolveService(target)
	if err != nil {
		if errors.Is(err, registry.ErrNotRegistered) {
			return status.Errorf(codes.NotFound, "service %q is not registered with the gateway", target)
		}
		return status.Errorf(codes.Internal, "proxy: resolve %q: %v", target, err)
	}

	ctx, span := s.tracer.StartProxySpan(ctx, fullMethod, target)
	defer span.End()

	start := time.Now()
	err = s.forward(ctx, serverStream, fullMethod, addr, md)
	observability.RecordSpanError(span, err)

	code := status.Code(err)
	s.metrics.ProxiedCalls.WithLabelValues(target, code.String()).Inc()
	s.metrics.ProxiedCallDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	s.logger.Debug("forwarded call",
		"method", fullMethod,
		"service", target,
		"addr", addr,
		"code", code.String(),
	)
	return err
}

// forward dials the backend and pumps frames until the backend closes the
// call. One connection per forwarded call; no pooling or reuse.
func (s *Server) forward(ctx context.Context, serverStream grpc.ServerStream, fullMethod, addr string, md metadata.MD) error {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return status.Errorf(codes.Internal, "proxy: dial %s: %v", addr, err)
	}
	defer conn.Close()

	outCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The routing tag is consumed here; everything else is passed through.
	outMD := md.Copy()
	delete(outMD, api.TargetServiceKey)
	outCtx = metadata.NewOutgoingContext(outCtx, outMD)

	clientStream, err := conn.NewStream(outCtx, proxyStreamDesc, fullMethod)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Errorf(codes.Internal, "proxy: open stream to %s: %v", addr, err)
	}

	s2cErr := forwardServerToClient(serverStream, clientStream)
	c2sErr := forwardClientToServer(clientStream, serverStream)

	for range 2 {
		select {
		case err := <-s2cErr:
			if errors.Is(err, io.EOF) {
				// Caller finished sending; tell the backend and keep
				// draining its responses.
				if cerr := clientStream.CloseSend(); cerr != nil {
					return status.Errorf(codes.Internal, "proxy: close send: %v", cerr)
				}
				continue
			}
			// The caller-side stream broke mid-call. Abort the backend
			// call rather than leaving it dangling.
			cancel()
			return status.Errorf(codes.Internal, "proxy: caller stream: %v", err)
		case err := <-c2sErr:
			// The backend finished. Its trailer and status are mirrored
			// to the caller unchanged; io.EOF is a clean end.
			serverStream.SetTrailer(clientStream.Trailer())
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return status.Error(codes.Internal, "proxy: streams finished without a backend status")
}

func forwardServerToClient(src grpc.ServerStream, dst grpc.ClientStream) chan error {
	ret := make(chan error, 1)
	go func() {
		f := &rawFrame{}
		for {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				return
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}

func forwardClientToServer(src grpc.ClientStream, dst grpc.ServerStream) chan error {
	ret := make(chan error, 1)
	go func() {
		f := &rawFrame{}
		for i := 0; ; i++ {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				return
			}
			if i == 0 {
				// Headers only materialize after the first response
				// frame; relay them before any payload.
				hdr, err := src.Header()
				if err != nil {
					ret <- err
					return
				}
				if err := dst.SendHeader(hdr); err != nil {
					ret <- err
					return
				}
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}

// rawFrame is an opaque message payload.
type rawFrame struct {
	data []byte
}

// rawCodec moves frames through the proxy without decoding them. Its name
// matches the platform's JSON codec so backends decode forwarded frames
// with their registered codec.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*rawFrame)
	if !ok {
		return nil, fmt.Errorf("proxy codec: cannot marshal %T", v)
	}
	return f.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*rawFrame)
	if !ok {
		return fmt.Errorf("proxy codec: cannot unmarshal into %T", v)
	}
	f.data = append(f.data[:0], data...)
	return nil
}

func (rawCodec) Name() string { return api.CodecName }
