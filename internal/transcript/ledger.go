// Package transcript keeps the bounded, newest-first history of recognized utterances.
package transcript

import (
	"strings"
	"sync"
)

// Capacity is the fixed number of utterances retained.
const Capacity = 8

// Utterance is one finalized recognized phrase.
type Utterance struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Ledger retains the most recent utterances, newest first.
type Ledger struct {
	mu       sync.RWMutex
	entries  []Utterance
	latest   string
	recorded bool
}

// NewLedger returns an empty ledger holding at most Capacity utterances.
func NewLedger() *Ledger {
	return &Ledger{entries: make([]Utterance, 0, Capacity)}
}

// Record prepends a trimmed utterance and evicts the oldest entries beyond capacity.
// Empty text is accepted as-is.
func (l *Ledger) Record(text string, confidence float64) Utterance {
	u := Utterance{Text: strings.TrimSpace(text), Confidence: confidence}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Utterance, 0, Capacity)
	next = append(next, u)
	next = append(next, l.entries...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}
	l.entries = next
	l.latest = u.Text
	l.recorded = true
	return u
}

// Latest returns the newest utterance text, or false when nothing was recorded.
func (l *Ledger) Latest() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest, l.recorded
}

// History returns a copy of the retained utterances, newest first.
func (l *Ledger) History() []Utterance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Utterance(nil), l.entries...)
}

// Len reports how many utterances are retained.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
