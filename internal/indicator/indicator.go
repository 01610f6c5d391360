// Package indicator renders listening and error state as desktop notifications
// and optional audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/pandagg110/speach-recognition/internal/session"
)

const (
	dispatchTimeout    = 400 * time.Millisecond
	listeningTimeoutMS = 0 // until replaced or dismissed
	defaultErrorMS     = 1200
	queueSize          = 16
)

// Notifier is a session observer that renders snapshots off the dispatch path.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	queue chan func()
	done  chan struct{}

	closeMu sync.RWMutex
	closed  bool

	mu             sync.Mutex
	notificationID uint32
}

// NewNotifier starts the render worker. Close must be called to stop it.
func NewNotifier(cfg config.IndicatorConfig, locale string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessages(resolveLocale(locale)),
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
	}
	go n.work()
	return n
}

// Observe maps one controller change onto notification and cue updates.
func (n *Notifier) Observe(change session.Change) {
	if !n.cfg.Enable && !n.cfg.SoundEnable {
		return
	}

	wasListening := change.Previous.Listening()
	isListening := change.Current.Listening()
	snap := change.Snapshot

	switch {
	case change.ErrorRaised():
		text := snap.ActiveErrorMessage
		if text == "" {
			text = n.messages.errorText
		}
		n.enqueue(func() {
			n.show(text, "", n.errorTimeout())
			n.cue(cueFailed)
		})
	case !wasListening && isListening:
		n.enqueue(func() {
			n.show(n.messages.listening, "", listeningTimeoutMS)
			n.cue(cueListening)
		})
	case wasListening && !isListening:
		n.enqueue(func() {
			n.hide()
			n.cue(cueStopped)
		})
	case isListening && len(change.Recorded) > 0:
		latest := change.Recorded[len(change.Recorded)-1].Text
		n.enqueue(func() {
			n.show(n.messages.listening, latest, listeningTimeoutMS)
		})
	}
}

// Close drains pending updates and stops the worker.
func (n *Notifier) Close() {
	n.closeMu.Lock()
	if n.closed {
		n.closeMu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.closeMu.Unlock()

	<-n.done
}

func (n *Notifier) enqueue(fn func()) {
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- fn:
	default:
		n.log("indicator queue full; update dropped", nil)
	}
}

func (n *Notifier) work() {
	defer close(n.done)
	for fn := range n.queue {
		fn()
	}
}

func (n *Notifier) errorTimeout() int {
	if n.cfg.ErrorTimeoutMS <= 0 {
		return defaultErrorMS
	}
	return n.cfg.ErrorTimeoutMS
}

// show sends a replaceable notification and remembers its ID.
func (n *Notifier) show(summary string, body string, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}

	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "speach"
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	id, err := desktopNotify(ctx, appName, replaceID, summary, body, timeoutMS)
	if err != nil {
		n.log("indicator dispatch failed", err)
		return
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
}

// hide closes the current notification when present.
func (n *Notifier) hide() {
	if !n.cfg.Enable {
		return
	}

	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := desktopDismiss(ctx, id); err != nil {
		n.log("indicator dismiss failed", err)
	}
}

func (n *Notifier) cue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	if err := playCue(context.Background(), kind); err != nil {
		n.log("indicator audio cue failed", err)
	}
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil {
		return
	}
	if err == nil {
		n.logger.Debug(message)
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
