package doctor

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkGRPCHealth dials addr and queries the standard gRPC health service.
func checkGRPCHealth(ctx context.Context, addr string) Check {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Check{Name: "backend.grpc", Pass: false, Message: fmt.Sprintf("dial %q: %v", addr, err)}
	}
	defer conn.Close()

	readyCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		return Check{Name: "backend.grpc", Pass: false, Message: fmt.Sprintf("wait for %s: %v", addr, err)}
	}

	resp, err := healthpb.NewHealthClient(conn).Check(readyCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return Check{Name: "backend.grpc", Pass: false, Message: fmt.Sprintf("health check %s: %v", addr, err)}
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: "backend.grpc", Pass: false, Message: fmt.Sprintf("%s reports %s", addr, resp.GetStatus())}
	}
	return Check{Name: "backend.grpc", Pass: true, Message: fmt.Sprintf("serving at %s", addr)}
}

// waitForReady blocks until gRPC connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
