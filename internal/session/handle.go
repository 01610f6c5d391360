package session

import (
	"context"
	"fmt"

	"github.com/pandagg110/speach-recognition/internal/ipc"
)

// Command serves one presentation-shell command arriving over IPC. Intents
// report their outcome; every reply carries the resulting snapshot.
func (c *Controller) Command(ctx context.Context, cmd ipc.Command) ipc.Reply {
	var outcome Outcome
	switch cmd {
	case ipc.CommandStart:
		outcome = c.RequestStart(ctx)
	case ipc.CommandStop:
		outcome = c.RequestStop(ctx)
	case ipc.CommandToggle:
		outcome = c.Toggle(ctx)
	case ipc.CommandStatus, ipc.CommandHistory:
	default:
		return ipc.Reply{Error: fmt.Sprintf("unknown command %q", cmd)}
	}

	snap := c.Snapshot()
	reply := ipc.Reply{
		Outcome:  string(outcome),
		Rejected: outcome == OutcomeRejected,
		State:    string(snap.State),
		Snapshot: snap,
	}
	if reply.Rejected {
		reply.Error = snap.ActiveErrorMessage
	}
	return reply
}

// DecodeSnapshot unpacks the snapshot carried by an IPC response.
func DecodeSnapshot(resp ipc.Response) (Snapshot, error) {
	var snap Snapshot
	if err := ipc.DecodeSnapshot(resp, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
