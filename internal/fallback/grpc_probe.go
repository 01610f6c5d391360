package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCProbe checks a server-side recognition backend's health whenever a
// fallback is requested and logs whether it could take over.
type GRPCProbe struct {
	Endpoint string
	Service  string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// RequestFallback probes the backend in the background.
func (p GRPCProbe) RequestFallback(ctx context.Context, req Request) {
	if strings.TrimSpace(p.Endpoint) == "" {
		return
	}
	go func() {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout())
		defer cancel()

		serving, err := Probe(probeCtx, p.Endpoint, p.Service)
		if p.Logger == nil {
			return
		}
		if err != nil {
			p.Logger.Warn("fallback backend probe failed",
				"intent", string(req.Intent),
				"endpoint", p.Endpoint,
				"error", err.Error(),
			)
			return
		}
		p.Logger.Info("fallback backend probed",
			"intent", string(req.Intent),
			"endpoint", p.Endpoint,
			"serving", serving,
		)
	}()
}

func (p GRPCProbe) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 1500 * time.Millisecond
	}
	return p.Timeout
}

// Probe dials endpoint and reports whether service answers SERVING on the
// standard gRPC health protocol. ctx bounds the whole probe.
func Probe(ctx context.Context, endpoint string, service string) (bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return false, errors.New("fallback grpc endpoint is empty")
	}

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return false, fmt.Errorf("dial fallback grpc %q: %w", endpoint, err)
	}
	defer conn.Close()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return false, fmt.Errorf("wait for fallback grpc readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
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
