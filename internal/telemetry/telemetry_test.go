package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pandagg110/speach-recognition/internal/failure"
	"github.com/pandagg110/speach-recognition/internal/fsm"
	"github.com/pandagg110/speach-recognition/internal/logging"
	"github.com/pandagg110/speach-recognition/internal/session"
	"github.com/pandagg110/speach-recognition/internal/transcript"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, point := range sum.DataPoints {
					totals[m.Name] += point.Value
				}
			}
		}
	}
	return totals
}

func TestRecorderCountsSessionChanges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	recorder, err := NewRecorder(provider)
	require.NoError(t, err)

	idle := fsm.New(true)
	listening := fsm.Machine{State: fsm.StateListening, Capable: true}
	restarted := listening
	restarted.Restarts = 1
	failed := fsm.Machine{State: fsm.StateIdle, Capable: true, Err: failure.NetworkUnavailable}

	recorder.Observe(session.Change{Event: fsm.EventStartIntent, Previous: idle, Current: listening})
	recorder.Observe(session.Change{
		Event:    fsm.EventResult,
		Previous: listening,
		Current:  listening,
		Recorded: []transcript.Utterance{{Text: "一"}, {Text: "二"}},
	})
	recorder.Observe(session.Change{Event: fsm.EventEnded, Previous: listening, Current: restarted})
	recorder.Observe(session.Change{Event: fsm.EventError, Previous: restarted, Current: failed})
	// A second error while already idle keeps the first one and is not counted.
	recorder.Observe(session.Change{Event: fsm.EventError, Previous: failed, Current: failed})
	recorder.Observe(session.Change{
		Event:    fsm.EventStartIntent,
		Previous: fsm.New(false),
		Current:  fsm.New(false),
		Effects:  []fsm.Effect{{Kind: fsm.EffectRequestFallback, Intent: fsm.EventStartIntent}},
	})

	totals := collect(t, reader)
	require.Equal(t, int64(2), totals["speach.utterances.recorded"])
	require.Equal(t, int64(1), totals["speach.session.restarts"])
	require.Equal(t, int64(1), totals["speach.session.errors"])
	require.Equal(t, int64(1), totals["speach.fallback.requests"])
	require.Equal(t, int64(0), totals["speach.session.listening"])
}

func TestSetupExposesPrometheusHandler(t *testing.T) {
	tel, err := Setup(context.Background(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	tel.Recorder().Observe(session.Change{
		Event:    fsm.EventResult,
		Previous: fsm.Machine{State: fsm.StateListening, Capable: true},
		Current:  fsm.Machine{State: fsm.StateListening, Capable: true},
		Recorded: []transcript.Utterance{{Text: "你好", Confidence: 0.5}},
	})

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "speach_utterances_recorded")
}

func TestServeStopsOnContextCancel(t *testing.T) {
	tel, err := Setup(context.Background(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tel.serve(ctx, listener, logging.Discard())
	}()

	url := "http://" + listener.Addr().String() + "/metrics"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestServeDisabledWithoutBind(t *testing.T) {
	tel, err := Setup(context.Background(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	require.NoError(t, tel.Serve(context.Background(), "  ", logging.Discard()))
}
