package grpc

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavX/opensubtitles-scraper/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
)

type fakeSource struct {
	valid atomic.Bool
}

func (f *fakeSource) Status() transport.Status {
	return transport.Status{ChallengeValid: f.valid.Load(), Solver: "warmup"}
}

func serve(t *testing.T, src StatusSource) (*Server, *grpc.ClientConn) {
	t.Helper()
	srv := NewGRPCServer(src)

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func check(t *testing.T, conn *grpc.ClientConn, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Health check for %q failed: %v", service, err)
	}
	return resp.Status
}

func TestNewGRPCServer_HealthCheck(t *testing.T) {
	src := &fakeSource{}
	src.valid.Store(true)
	_, conn := serve(t, src)

	if got := check(t, conn, ""); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING for the process, got %v", got)
	}
	if got := check(t, conn, SessionService); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING for the session, got %v", got)
	}
}

func TestNewGRPCServer_SessionFollowsChallenge(t *testing.T) {
	src := &fakeSource{}
	srv, conn := serve(t, src)

	if got := check(t, conn, SessionService); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING without a token, got %v", got)
	}
	if got := check(t, conn, ""); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected the process to stay SERVING, got %v", got)
	}

	src.valid.Store(true)
	srv.UpdateHealth()
	if got := check(t, conn, SessionService); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING after the token became valid, got %v", got)
	}
}

func TestServer_Watch(t *testing.T) {
	src := &fakeSource{}
	srv, conn := serve(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	src.valid.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for check(t, conn, SessionService) != grpc_health_v1.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("Watch did not pick up the valid token")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}

func TestNewGRPCServer_ReflectionEnabled(t *testing.T) {
	_, conn := serve(t, &fakeSource{})

	reflectionClient := grpc_reflection_v1.NewServerReflectionClient(conn)
	stream, err := reflectionClient.ServerReflectionInfo(context.Background())
	if err != nil {
		t.Fatalf("Failed to create reflection stream: %v", err)
	}

	err = stream.Send(&grpc_reflection_v1.ServerReflectionRequest{
		MessageRequest: &grpc_reflection_v1.ServerReflectionRequest_ListServices{
			ListServices: "",
		},
	})
	if err != nil {
		t.Fatalf("Failed to send reflection request: %v", err)
	}

	resp, err := stream.Recv()
	if err != nil {
		t.Fatalf("Failed to receive reflection response: %v", err)
	}

	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		t.Fatal("Expected list services response")
	}

	found := false
	for _, svc := range listResp.Service {
		if svc.Name == "grpc.health.v1.Health" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected the health service to be registered")
	}
}

func TestNewGRPCServer_CalledMultipleTimes(t *testing.T) {
	// sync.Once prevents double registration panics
	srv1 := NewGRPCServer(&fakeSource{})
	srv2 := NewGRPCServer(&fakeSource{})

	if srv1 == nil || srv2 == nil {
		t.Fatal("Expected non-nil servers from multiple calls")
	}
}
