package telemetry

import (
	"context"
	"fmt"

	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/fsm"
	"github.com/pandagg110/speach-recognition/internal/session"
	"go.opentelemetry.io/otel/metric"
)

// Recorder converts controller changes into metric updates.
type Recorder struct {
	utterances metric.Int64Counter
	restarts   metric.Int64Counter
	errors     metric.Int64Counter
	fallbacks  metric.Int64Counter
	listening  metric.Int64UpDownCounter
}

// NewRecorder registers the controller instruments on provider.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)

	utterances, err := meter.Int64Counter("speach.utterances.recorded",
		metric.WithDescription("Utterances appended to the transcript ledger."))
	if err != nil {
		return nil, fmt.Errorf("create utterance counter: %w", err)
	}
	restarts, err := meter.Int64Counter("speach.session.restarts",
		metric.WithDescription("Engine restarts across segment boundaries."))
	if err != nil {
		return nil, fmt.Errorf("create restart counter: %w", err)
	}
	errs, err := meter.Int64Counter("speach.session.errors",
		metric.WithDescription("Listening sessions ended by a classified error."))
	if err != nil {
		return nil, fmt.Errorf("create error counter: %w", err)
	}
	fallbacks, err := meter.Int64Counter("speach.fallback.requests",
		metric.WithDescription("Intents forwarded to the fallback hook."))
	if err != nil {
		return nil, fmt.Errorf("create fallback counter: %w", err)
	}
	listening, err := meter.Int64UpDownCounter("speach.session.listening",
		metric.WithDescription("1 while the controller is listening."))
	if err != nil {
		return nil, fmt.Errorf("create listening gauge: %w", err)
	}

	return &Recorder{
		utterances: utterances,
		restarts:   restarts,
		errors:     errs,
		fallbacks:  fallbacks,
		listening:  listening,
	}, nil
}

func (r *Recorder) Observe(change session.Change) {
	ctx := context.Background()

	if n := len(change.Recorded); n > 0 {
		r.utterances.Add(ctx, int64(n))
	}
	if change.Restarted() {
		r.restarts.Add(ctx, int64(change.Current.Restarts-change.Previous.Restarts))
	}
	if change.ErrorRaised() {
		r.errors.Add(ctx, 1, metric.WithAttributes(categoryAttr(string(change.Current.Err))))
	}
	for _, effect := range change.Effects {
		if effect.Kind == fsm.EffectRequestFallback {
			intent := fallback.IntentStart
			if effect.Intent == fsm.EventStopIntent {
				intent = fallback.IntentStop
			}
			r.fallbacks.Add(ctx, 1, metric.WithAttributes(intentAttr(intent)))
		}
	}

	switch was, is := change.Previous.Listening(), change.Current.Listening(); {
	case !was && is:
		r.listening.Add(ctx, 1)
	case was && !is:
		r.listening.Add(ctx, -1)
	}
}
