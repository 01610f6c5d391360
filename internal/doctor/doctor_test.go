package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "/run/user/1000")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.TrimSpace(v) != "" },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckConfigReportsMissingFile(t *testing.T) {
	check := checkConfig(config.Loaded{Path: "/tmp/none.yaml"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "using defaults")

	check = checkConfig(config.Loaded{Path: "/tmp/speach.yaml", Exists: true})
	require.Contains(t, check.Message, "loaded")
}

func TestCheckEngine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-recognizer"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	cfg := config.Default().Engine
	cfg.Command = "fake-recognizer --model small"
	check := checkEngine(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, filepath.Join(dir, "fake-recognizer"))

	cfg.Command = "definitely-not-a-real-recognizer"
	check = checkEngine(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "not found in PATH")

	cfg.Backend = "none"
	check = checkEngine(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "fallback")
}

func TestCheckAudioInputFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	check := checkAudioInput(context.Background(), config.Default().Audio)
	require.False(t, check.Pass)
}

func TestCheckSocket(t *testing.T) {
	t.Setenv("SPEACH_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	check := checkSocket()
	require.True(t, check.Pass)
	require.Equal(t, "/run/user/1000/speach.sock", check.Message)
}

func TestCheckFallbackProbesHealth(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.SetServingStatus("speach.Recognizer", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	cfg := config.Default().Fallback
	check := checkFallback(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Equal(t, "not configured", check.Message)

	cfg.GRPCEndpoint = listener.Addr().String()
	cfg.GRPCService = "speach.Recognizer"
	check = checkFallback(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "serving")

	healthServer.SetServingStatus("speach.Recognizer", healthpb.HealthCheckResponse_NOT_SERVING)
	check = checkFallback(context.Background(), cfg)
	require.False(t, check.Pass)
}

func TestCheckBus(t *testing.T) {
	check := checkBus(context.Background(), config.Default().Bus, "fallback.request")
	require.True(t, check.Pass)
	require.Equal(t, "not configured", check.Message)

	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	cfg := config.Default().Bus
	cfg.Servers = []string{ns.ClientURL()}
	check = checkBus(context.Background(), cfg, "fallback.request")
	require.True(t, check.Pass, check.Message)

	cfg.Servers = []string{"nats://127.0.0.1:1"}
	cfg.ConnectTimeout = 200
	check = checkBus(context.Background(), cfg, "fallback.request")
	require.False(t, check.Pass)
}

func TestRunIncludesEveryCheck(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("SPEACH_SOCKET", "")

	loaded := config.Loaded{Path: "/tmp/speach.yaml", Config: config.Default()}
	loaded.Config.Engine.Backend = "none"

	report := Run(context.Background(), loaded)
	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "XDG_RUNTIME_DIR", "ipc.socket", "engine", "audio.input", "fallback.grpc", "bus.nats"}, names)
	require.False(t, report.OK())
}
