// Package engine binds the external speech recognition engine driven by the session controller.
package engine

import (
	"errors"
	"strings"
)

var (
	// ErrBusy is returned by Start when a recognition run is already active.
	ErrBusy = errors.New("recognition engine already running")
	// ErrClosed is returned by Start once the handle has been closed.
	ErrClosed = errors.New("recognition engine closed")
)

// Run identifies one recognition run. Every event carries the run that produced it.
type Run uint64

// Settings is the fixed recognition profile every acquired handle is configured with.
type Settings struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

// DefaultSettings returns Mandarin (Mainland China), continuous, final-results-only.
func DefaultSettings() Settings {
	return Settings{Locale: "zh-CN", Continuous: true, InterimResults: false}
}

// Kind names one engine lifecycle edge.
type Kind string

const (
	KindStarted Kind = "started"
	KindEnded   Kind = "ended"
	KindResult  Kind = "result"
	KindError   Kind = "error"
)

// Alternative is one recognition hypothesis. A nil Confidence means the engine omitted it.
type Alternative struct {
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Result is one recognized segment with its ranked alternatives.
type Result struct {
	Final        bool          `json:"final"`
	Alternatives []Alternative `json:"alternatives"`
}

// Event is one push-delivered engine notification.
type Event struct {
	Run     Run
	Kind    Kind
	Results []Result
	Code    string
	Message string
}

// Latest extracts the most recent result's top alternative: trimmed text and
// confidence, defaulting to 0 when omitted.
func (e Event) Latest() (string, float64, bool) {
	if len(e.Results) == 0 {
		return "", 0, false
	}
	alternatives := e.Results[len(e.Results)-1].Alternatives
	if len(alternatives) == 0 {
		return "", 0, false
	}
	top := alternatives[0]
	confidence := 0.0
	if top.Confidence != nil {
		confidence = *top.Confidence
	}
	return strings.TrimSpace(top.Transcript), confidence, true
}

// Handle is the single engine instance owned by a session controller.
//
// Start and Stop return immediately; outcomes arrive on Events. Start returns
// the identifier stamped on every event of the run it spawned. Within one run
// events are ordered started, (result|error)*, ended.
type Handle interface {
	Start() (Run, error)
	Stop() error
	Events() <-chan Event
}

// IsBusy reports whether err is a synchronous already-running rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
