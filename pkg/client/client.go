// Package client is the Go SDK for the Lattice platform.
//
// A Platform dials the gateway once and hands out typed service clients.
// Every call carries the x-target-service routing tag, so the gateway's
// generic proxy can forward it to the right backend.
//
// Example:
//
//	platform, err := client.New("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer platform.Close()
//
//	session, err := platform.Sessions().GetOrCreateSession(ctx,
//		&api.GetOrCreateSessionRequest{UserID: "user-123"})
package client

import (
	"context"
	"fmt"
	"os"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/haasonsaas/lattice/pkg/api"
)

// DefaultGatewayURL is used when neither the constructor argument nor
// LATTICE_GATEWAY_URL names a gateway.
const DefaultGatewayURL = "localhost:50051"

// Platform is the SDK entry point. Service clients share one gateway
// connection and are created lazily on first access.
type Platform struct {
	conn *grpc.ClientConn

	mu       sync.Mutex
	sessions api.SessionServiceClient
	models   api.ModelServiceClient
}

// New connects to the gateway. An empty gatewayURL falls back to
// LATTICE_GATEWAY_URL, then to localhost:50051.
func New(gatewayURL string, opts ...grpc.DialOption) (*Platform, error) {
	if gatewayURL == "" {
		gatewayURL = os.Getenv("LATTICE_GATEWAY_URL")
	}
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(gatewayURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("client: dial gateway %s: %w", gatewayURL, err)
	}
	return &Platform{conn: conn}, nil
}

// Sessions returns the session service client.
func (p *Platform) Sessions() api.SessionServiceClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = api.NewSessionServiceClient(&routedConn{conn: p.conn, service: "sessions"})
	}
	return p.sessions
}

// Models returns the model service client.
func (p *Platform) Models() api.ModelServiceClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.models == nil {
		p.models = api.NewModelServiceClient(&routedConn{conn: p.conn, service: "models"})
	}
	return p.models
}

// Close tears down the gateway connection.
func (p *Platform) Close() error {
	return p.conn.Close()
}

// routedConn stamps the routing tag and the wire codec onto every call
// before it leaves for the gateway.
type routedConn struct {
	conn    *grpc.ClientConn
	service string
}

func (r *routedConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	ctx = metadata.AppendToOutgoingContext(ctx, api.TargetServiceKey, r.service)
	return r.conn.Invoke(ctx, method, args, reply, append(opts, api.CallOption())...)
}

func (r *routedConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, api.TargetServiceKey, r.service)
	return r.conn.NewStream(ctx, desc, method, append(opts, api.CallOption())...)
}
