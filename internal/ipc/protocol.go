// Package ipc carries presentation-shell intents and snapshots over a unix socket.
package ipc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Command is one presentation-shell request understood by the serving session.
type Command string

const (
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandToggle  Command = "toggle"
	CommandStatus  Command = "status"
	CommandHistory Command = "history"
)

// Commands lists every command in help order.
func Commands() []Command {
	return []Command{CommandStart, CommandStop, CommandToggle, CommandStatus, CommandHistory}
}

// ParseCommand normalizes raw and rejects anything outside Commands.
func ParseCommand(raw string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Commands() {
		if cmd == known {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", raw)
}

// Intent reports whether cmd changes listening state rather than reading it.
func (c Command) Intent() bool {
	return c == CommandStart || c == CommandStop || c == CommandToggle
}

// Request is one line sent by a client.
type Request struct {
	Command Command `json:"command"`
}

// Response answers one Request. Snapshot carries the encoded session view.
type Response struct {
	OK       bool            `json:"ok"`
	State    string          `json:"state,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// Reply is a session's answer to one command before it is put on the wire.
type Reply struct {
	// Outcome is the intent outcome; empty for read-only commands.
	Outcome  string
	Rejected bool
	State    string
	Error    string
	Snapshot any
}

// encode converts r into its wire form. A rejected or failed reply is not OK.
func (r Reply) encode() (Response, error) {
	resp := Response{
		OK:      !r.Rejected && r.Error == "",
		State:   r.State,
		Message: r.Outcome,
		Error:   r.Error,
	}
	if r.Snapshot == nil {
		return resp, nil
	}
	payload, err := json.Marshal(r.Snapshot)
	if err != nil {
		return Response{OK: false, State: r.State, Error: fmt.Sprintf("encode snapshot: %v", err)}, err
	}
	resp.Snapshot = payload
	return resp, nil
}

var errNoSnapshot = errors.New("response carries no snapshot")

// DecodeSnapshot unpacks the snapshot carried by resp into v.
func DecodeSnapshot(resp Response, v any) error {
	if len(resp.Snapshot) == 0 {
		return errNoSnapshot
	}
	if err := json.Unmarshal(resp.Snapshot, v); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}
