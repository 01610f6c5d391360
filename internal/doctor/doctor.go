// Package doctor runs readiness diagnostics for config, engine, audio, fallback, and bus.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pandagg110/speach-recognition/internal/audio"
	"github.com/pandagg110/speach-recognition/internal/bus"
	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/pandagg110/speach-recognition/internal/engine"
	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/ipc"
	"github.com/pandagg110/speach-recognition/internal/logging"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir is set", "XDG_RUNTIME_DIR is empty; set SPEACH_SOCKET instead"))

	checks = append(checks, checkSocket())
	checks = append(checks, checkEngine(cfg.Engine))
	checks = append(checks, checkAudioInput(ctx, cfg.Audio))
	checks = append(checks, checkFallback(ctx, cfg.Fallback))
	checks = append(checks, checkBus(ctx, cfg.Bus, cfg.Fallback.Subject))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkSocket() Check {
	path, err := ipc.RuntimeSocketPath()
	if err != nil {
		return Check{Name: "ipc.socket", Pass: false, Message: err.Error()}
	}
	return Check{Name: "ipc.socket", Pass: true, Message: path}
}

// checkEngine reports whether a capable recognition engine would be acquired.
func checkEngine(cfg config.EngineConfig) Check {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "none") {
		return Check{Name: "engine", Pass: true, Message: "disabled; intents go to the fallback hook"}
	}
	argv, ok := engine.ResolveCommand(cfg.Command)
	if !ok {
		return Check{Name: "engine", Pass: false, Message: fmt.Sprintf("recognizer command %q not found in PATH", cfg.Command)}
	}
	return Check{Name: "engine", Pass: true, Message: fmt.Sprintf("found at %s (locale %s)", argv[0], engine.DefaultSettings().Locale)}
}

// checkAudioInput resolves the configured input source the engine captures from.
func checkAudioInput(ctx context.Context, cfg config.AudioConfig) Check {
	dev, err := audio.FindInput(ctx, cfg.Input)
	if err != nil {
		return Check{Name: "audio.input", Pass: false, Message: err.Error()}
	}
	if dev.Muted {
		return Check{Name: "audio.input", Pass: false, Message: fmt.Sprintf("%q is muted", dev.ID)}
	}
	if !dev.Available {
		return Check{Name: "audio.input", Pass: false, Message: fmt.Sprintf("%q is not available", dev.ID)}
	}
	return Check{Name: "audio.input", Pass: true, Message: fmt.Sprintf("selected %q (%s)", dev.ID, dev.State)}
}

// checkFallback probes the server-side recognizer health endpoint when configured.
func checkFallback(ctx context.Context, cfg config.FallbackConfig) Check {
	endpoint := strings.TrimSpace(cfg.GRPCEndpoint)
	if endpoint == "" {
		return Check{Name: "fallback.grpc", Pass: true, Message: "not configured"}
	}

	timeout := time.Duration(cfg.ProbeTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	serving, err := fallback.Probe(probeCtx, endpoint, cfg.GRPCService)
	if err != nil {
		return Check{Name: "fallback.grpc", Pass: false, Message: err.Error()}
	}
	if !serving {
		return Check{Name: "fallback.grpc", Pass: false, Message: fmt.Sprintf("%s is not serving", endpoint)}
	}
	return Check{Name: "fallback.grpc", Pass: true, Message: fmt.Sprintf("serving at %s", endpoint)}
}

// checkBus dials NATS when servers are configured.
func checkBus(ctx context.Context, cfg config.BusConfig, fallbackSubject string) Check {
	if len(cfg.Servers) == 0 {
		return Check{Name: "bus.nats", Pass: true, Message: "not configured"}
	}

	client, err := bus.Connect(ctx, cfg, fallbackSubject, logging.Discard())
	if err != nil {
		return Check{Name: "bus.nats", Pass: false, Message: err.Error()}
	}
	defer client.Close()
	return Check{Name: "bus.nats", Pass: true, Message: fmt.Sprintf("connected to %s", strings.Join(cfg.Servers, ","))}
}
