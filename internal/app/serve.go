package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pandagg110/speach-recognition/internal/bus"
	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/pandagg110/speach-recognition/internal/engine"
	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/indicator"
	"github.com/pandagg110/speach-recognition/internal/ipc"
	"github.com/pandagg110/speach-recognition/internal/session"
	"github.com/pandagg110/speach-recognition/internal/telemetry"
	"github.com/pandagg110/speach-recognition/internal/transcript"
	"golang.org/x/sync/errgroup"
)

// commandServe owns the controller behind the runtime socket until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, startNow bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	rt, err := buildDaemon(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close(logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return rt.controller.Run(groupCtx)
	})
	group.Go(func() error {
		return rt.telemetry.Serve(groupCtx, cfg.Telemetry.PrometheusBind, logger)
	})
	group.Go(func() error {
		if err := ipc.Serve(groupCtx, listener, rt.controller, logger); err != nil {
			return fmt.Errorf("ipc server failed: %w", err)
		}
		return nil
	})

	if startNow {
		outcome := rt.controller.RequestStart(groupCtx)
		logger.Info("initial start requested", "outcome", string(outcome))
	}

	logger.Info("session serving",
		"socket", socketPath,
		"capable", rt.controller.Capable(),
	)

	if err := group.Wait(); err != nil {
		logger.Error("serve failed", "error", err.Error())
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// daemon bundles the controller with the collaborators it publishes to.
type daemon struct {
	controller *session.Controller
	telemetry  *telemetry.Telemetry
	notifier   *indicator.Notifier
	bus        *bus.Client
}

func buildDaemon(ctx context.Context, cfg config.Config, logger *slog.Logger) (*daemon, error) {
	tel, err := telemetry.Setup(ctx, logger)
	if err != nil {
		return nil, err
	}
	rt := &daemon{telemetry: tel}

	hooks := fallback.Hooks{fallback.LogHook{Logger: logger}}
	observers := []session.Observer{tel.Recorder()}

	if endpoint := strings.TrimSpace(cfg.Fallback.GRPCEndpoint); endpoint != "" {
		hooks = append(hooks, fallback.GRPCProbe{
			Endpoint: endpoint,
			Service:  cfg.Fallback.GRPCService,
			Timeout:  time.Duration(cfg.Fallback.ProbeTimeoutMS) * time.Millisecond,
			Logger:   logger,
		})
	}

	if len(cfg.Bus.Servers) > 0 {
		client, err := bus.Connect(ctx, cfg.Bus, cfg.Fallback.Subject, logger)
		if err != nil {
			logger.Warn("state bus unavailable; continuing without it", "error", err.Error())
		} else {
			rt.bus = client
			hooks = append(hooks, client)
			observers = append(observers, client)
		}
	}

	if cfg.Indicator.Enable || cfg.Indicator.SoundEnable {
		rt.notifier = indicator.NewNotifier(cfg.Indicator, cfg.Display.Language, logger)
		observers = append(observers, rt.notifier)
	}

	var handle engine.Handle
	if acquired, ok := engine.Acquire(cfg.Engine, logger); ok {
		handle = acquired
	}

	rt.controller = session.NewController(handle, session.Options{
		Logger:    logger,
		Ledger:    transcript.NewLedger(),
		Fallback:  hooks,
		Observers: observers,
		Locale:    cfg.Display.Language,
	})
	return rt, nil
}

// Close releases the engine, then observers, then telemetry.
func (rt *daemon) Close(logger *slog.Logger) {
	if rt.controller != nil {
		_ = rt.controller.Close()
	}
	if rt.notifier != nil {
		rt.notifier.Close()
	}
	if rt.bus != nil {
		rt.bus.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rt.telemetry.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("telemetry shutdown failed", "error", err.Error())
	}
}
