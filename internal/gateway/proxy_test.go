package gateway

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/internal/observability"
	"github.com/haasonsaas/lattice/pkg/api"
)

// fakeSessionBackend is a minimal session service used to observe what
// arrives on the far side of the proxy.
type fakeSessionBackend struct {
	api.SessionServiceServer
}

func (f *fakeSessionBackend) GetOrCreateSession(_ context.Context, req *api.GetOrCreateSessionRequest) (*api.Session, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	return &api.Session{
		SessionID: "session_" + req.UserID + "_1",
		UserID:    req.UserID,
		CreatedAt: time.Unix(100, 0).UTC(),
		UpdatedAt: time.Unix(100, 0).UTC(),
	}, nil
}

func (f *fakeSessionBackend) DeleteSession(context.Context, *api.DeleteSessionRequest) (*api.DeleteSessionResponse, error) {
	return nil, status.Error(codes.NotFound, "session ghost does not exist")
}

func startBackend(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	srv := grpc.NewServer()
	api.RegisterSessionServiceServer(srv, &fakeSessionBackend{})
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func startGateway(t *testing.T, sessionsAddr string) string {
	t.Helper()
	cfg := &config.GatewayConfig{
		Server:       config.ServerConfig{Workers: 4},
		SessionsAddr: sessionsAddr,
		ModelsAddr:   "localhost:1", // never dialed in these tests
	}
	tracer, _ := observability.NewTracer("gateway-test", config.TracingConfig{})
	gw := NewServer(cfg, observability.NewMetrics(prometheus.NewRegistry()), tracer, slog.New(slog.DiscardHandler))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("gateway listen: %v", err)
	}
	go gw.grpc.Serve(lis) //nolint:errcheck
	t.Cleanup(gw.grpc.Stop)
	return lis.Addr().String()
}

func dialSessions(t *testing.T, addr string) api.SessionServiceClient {
	t.Helper()
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(api.CallOption()),
	)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { conn.Close() })
	return api.NewSessionServiceClient(conn)
}

func routedCtx(service string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), api.TargetServiceKey, service)
}

func TestProxy_MissingRoutingMetadata(t *testing.T) {
	backend := startBackend(t)
	gw := startGateway(t, backend)
	client := dialSessions(t, gw)

	_, err := client.GetOrCreateSession(context.Background(), &api.GetOrCreateSessionRequest{UserID: "alice"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("call without routing metadata: code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestProxy_UnregisteredService(t *testing.T) {
	backend := startBackend(t)
	gw := startGateway(t, backend)
	client := dialSessions(t, gw)

	_, err := client.GetOrCreateSession(routedCtx("guardrails"), &api.GetOrCreateSessionRequest{UserID: "alice"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("call to unregistered service: code = %v, want NotFound", status.Code(err))
	}
}

func TestProxy_MatchesDirectCall(t *testing.T) {
	backend := startBackend(t)
	gw := startGateway(t, backend)

	direct := dialSessions(t, backend)
	proxied := dialSessions(t, gw)

	req := &api.GetOrCreateSessionRequest{UserID: "alice"}
	want, err := direct.GetOrCreateSession(context.Background(), req)
	if err != nil {
		t.Fatalf("direct call error = %v", err)
	}
	got, err := proxied.GetOrCreateSession(routedCtx("sessions"), req)
	if err != nil {
		t.Fatalf("proxied call error = %v", err)
	}
	if *got != *want {
		t.Errorf("proxied response = %+v, want %+v", got, want)
	}
}

func TestProxy_BackendErrorVerbatim(t *testing.T) {
	backend := startBackend(t)
	gw := startGateway(t, backend)

	direct := dialSessions(t, backend)
	proxied := dialSessions(t, gw)

	req := &api.DeleteSessionRequest{SessionID: "ghost"}
	_, directErr := direct.DeleteSession(context.Background(), req)
	_, proxiedErr := proxied.DeleteSession(routedCtx("sessions"), req)

	ds, ps := status.Convert(directErr), status.Convert(proxiedErr)
	if ps.Code() != ds.Code() || ps.Message() != ds.Message() {
		t.Errorf("proxied error = (%v, %q), direct = (%v, %q)", ps.Code(), ps.Message(), ds.Code(), ds.Message())
	}
}

func TestProxy_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	backend := startBackend(t)
	gw := startGateway(t, backend)
	client := dialSessions(t, gw)

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := client.GetOrCreateSession(routedCtx("sessions"), &api.GetOrCreateSessionRequest{UserID: "alice"})
			errs <- err
		}()
	}
	for i := 0; i < 20; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent proxied call error = %v", err)
		}
	}
}
