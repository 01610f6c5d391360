// Package fallback announces start/stop intents that arrive while no local
// recognition engine is available, so a server-side backend can take over.
package fallback

import (
	"context"
	"log/slog"
	"time"
)

// Intent is the user intent that could not be served locally.
type Intent string

const (
	IntentStart Intent = "start"
	IntentStop  Intent = "stop"
)

// Request is one degraded-capability signal.
type Request struct {
	Intent Intent    `json:"intent"`
	At     time.Time `json:"at"`
}

// Hook receives fallback requests. Implementations must not block the caller.
type Hook interface {
	RequestFallback(context.Context, Request)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(context.Context, Request)

func (f HookFunc) RequestFallback(ctx context.Context, req Request) {
	f(ctx, req)
}

// Hooks fans a request out to every non-nil hook in order.
type Hooks []Hook

func (h Hooks) RequestFallback(ctx context.Context, req Request) {
	for _, hook := range h {
		if hook != nil {
			hook.RequestFallback(ctx, req)
		}
	}
}

// LogHook records fallback requests in the runtime log.
type LogHook struct {
	Logger *slog.Logger
}

func (l LogHook) RequestFallback(_ context.Context, req Request) {
	if l.Logger == nil {
		return
	}
	l.Logger.Warn("fallback recognition requested",
		"intent", string(req.Intent),
		"at", req.At.Format(time.RFC3339Nano),
	)
}
