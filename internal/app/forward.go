package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pandagg110/speach-recognition/internal/fsm"
	"github.com/pandagg110/speach-recognition/internal/ipc"
	"github.com/pandagg110/speach-recognition/internal/session"
)

const forwardTimeout = 220 * time.Millisecond

var errNoSession = errors.New("no active speach session; run `speach serve` first")

// commandIntent forwards start/stop/toggle to the serving controller.
func (r Runner) commandIntent(ctx context.Context, cmd ipc.Command) int {
	resp, err := r.forward(ctx, cmd)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "%s (%s)\n", resp.Message, resp.State)
	return 0
}

func (r Runner) commandStatus(ctx context.Context, raw bool) int {
	resp, err := r.forward(ctx, ipc.CommandStatus)
	if errors.Is(err, errNoSession) {
		fmt.Fprintln(r.Stdout, fsm.StateIdle)
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if raw {
		fmt.Fprintln(r.Stdout, string(resp.Snapshot))
		return 0
	}

	snap, err := session.DecodeSnapshot(resp)
	if err != nil {
		state := resp.State
		if state == "" {
			state = string(fsm.StateIdle)
		}
		fmt.Fprintln(r.Stdout, state)
		return 0
	}

	fmt.Fprintln(r.Stdout, snap.State)
	if !snap.CapabilitySupported {
		fmt.Fprintln(r.Stdout, "capability: unsupported (fallback)")
	}
	if snap.StopRequested {
		fmt.Fprintln(r.Stdout, "stop: requested")
	}
	if snap.Restarts > 0 {
		fmt.Fprintf(r.Stdout, "restarts: %d\n", snap.Restarts)
	}
	if snap.LastTranscript != "" {
		fmt.Fprintf(r.Stdout, "last: %s\n", snap.LastTranscript)
	}
	if snap.ActiveErrorMessage != "" {
		fmt.Fprintf(r.Stdout, "error: %s\n", snap.ActiveErrorMessage)
	}
	return 0
}

func (r Runner) commandHistory(ctx context.Context, raw bool) int {
	resp, err := r.forward(ctx, ipc.CommandHistory)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	snap, err := session.DecodeSnapshot(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if raw {
		fmt.Fprintln(r.Stdout, string(resp.Snapshot))
		return 0
	}

	for i, u := range snap.History {
		fmt.Fprintf(r.Stdout, "%d. %s (%.2f)\n", i+1, u.Text, u.Confidence)
	}
	return 0
}

func (r Runner) forward(ctx context.Context, cmd ipc.Command) (ipc.Response, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return ipc.Response{}, err
	}
	resp, handled, err := tryForward(ctx, socketPath, cmd)
	if !handled {
		return ipc.Response{}, errNoSession
	}
	return resp, err
}

// tryForward reports handled=false when no session serves socketPath.
func tryForward(ctx context.Context, socketPath string, cmd ipc.Command) (ipc.Response, bool, error) {
	resp, err := ipc.Call(ctx, socketPath, cmd, forwardTimeout)
	switch {
	case err == nil && resp.OK:
		return resp, true, nil
	case err == nil:
		return resp, true, errors.New(resp.Error)
	case ipc.Unavailable(err):
		return ipc.Response{}, false, nil
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", cmd, err)
	}
}
