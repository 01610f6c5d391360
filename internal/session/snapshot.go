package session

import (
	"github.com/pandagg110/speach-recognition/internal/fsm"
	"github.com/pandagg110/speach-recognition/internal/transcript"
)

// Snapshot is the read-only controller view consumed by presentation shells.
type Snapshot struct {
	CapabilitySupported bool                   `json:"capability_supported"`
	State               fsm.State              `json:"state"`
	Listening           bool                   `json:"listening"`
	StopRequested       bool                   `json:"stop_requested,omitempty"`
	LastTranscript      string                 `json:"last_transcript"`
	History             []transcript.Utterance `json:"history"`
	ActiveErrorCategory string                 `json:"active_error_category,omitempty"`
	ActiveErrorMessage  string                 `json:"active_error,omitempty"`
	SessionID           string                 `json:"session_id,omitempty"`
	Restarts            int                    `json:"restarts"`
}

// Change describes one dispatched input and its consequences.
type Change struct {
	Event    fsm.EventKind
	Previous fsm.Machine
	Current  fsm.Machine
	Effects  []fsm.Effect
	// Recorded holds utterances appended to the ledger by this change.
	Recorded []transcript.Utterance
	Snapshot Snapshot
}

// Observer is notified after every dispatched input. Observe runs on the
// controller's dispatch path and must not block.
type Observer interface {
	Observe(Change)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Change)

func (f ObserverFunc) Observe(change Change) {
	f(change)
}

// Restarted reports whether the change bridged a segment boundary.
func (c Change) Restarted() bool {
	return c.Current.Restarts > c.Previous.Restarts
}

// ErrorRaised reports whether the change set a new active error: either none
// was active before, or a fresh start attempt was rejected again.
func (c Change) ErrorRaised() bool {
	if !c.Current.HasError() {
		return false
	}
	if !c.Previous.HasError() {
		return true
	}
	for _, effect := range c.Effects {
		if effect.Kind == fsm.EffectStartEngine {
			return true
		}
	}
	return false
}
