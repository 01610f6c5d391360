package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/stretchr/testify/require"
)

func installRecognizerStub(t *testing.T, name string, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	return path
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for engine event")
		return Event{}
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestEventLatestPicksLastResultTopAlternative(t *testing.T) {
	ev := Event{Kind: KindResult, Results: []Result{
		{Final: true, Alternatives: []Alternative{{Transcript: "old", Confidence: floatPtr(0.1)}}},
		{Final: true, Alternatives: []Alternative{
			{Transcript: "  今天天气很好  ", Confidence: floatPtr(0.93)},
			{Transcript: "今天天气很号", Confidence: floatPtr(0.4)},
		}},
	}}

	text, confidence, ok := ev.Latest()
	require.True(t, ok)
	require.Equal(t, "今天天气很好", text)
	require.InDelta(t, 0.93, confidence, 1e-9)
}

func TestEventLatestDefaultsMissingConfidence(t *testing.T) {
	ev := Event{Kind: KindResult, Results: []Result{{Alternatives: []Alternative{{Transcript: "hi"}}}}}
	text, confidence, ok := ev.Latest()
	require.True(t, ok)
	require.Equal(t, "hi", text)
	require.Zero(t, confidence)

	_, _, ok = Event{Kind: KindResult}.Latest()
	require.False(t, ok)
	_, _, ok = Event{Kind: KindResult, Results: []Result{{}}}.Latest()
	require.False(t, ok)
}

func TestParseLineMatrix(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		interim bool
		want    Kind
		wantOK  bool
		code    string
	}{
		{name: "start", line: `{"type":"start"}`, want: KindStarted, wantOK: true},
		{name: "error", line: `{"type":"error","error":"no-speech"}`, want: KindError, wantOK: true, code: "no-speech"},
		{name: "error without code", line: `{"type":"error"}`, want: KindError, wantOK: true, code: "unknown"},
		{name: "result list", line: `{"type":"result","results":[{"alternatives":[{"transcript":"a","confidence":0.5}]}]}`, want: KindResult, wantOK: true},
		{name: "flat result", line: `{"type":"result","transcript":"b"}`, want: KindResult, wantOK: true},
		{name: "interim dropped", line: `{"type":"result","results":[{"final":false,"alternatives":[{"transcript":"c"}]}]}`, wantOK: false},
		{name: "interim kept", line: `{"type":"result","final":false,"transcript":"c"}`, interim: true, want: KindResult, wantOK: true},
		{name: "end ignored", line: `{"type":"end"}`, wantOK: false},
		{name: "garbage", line: `not json`, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := parseLine(tc.line, tc.interim)
			require.Equal(t, tc.wantOK, ok)
			if !tc.wantOK {
				return
			}
			require.Equal(t, tc.want, ev.Kind)
			require.Equal(t, tc.code, ev.Code)
		})
	}
}

func TestResolveCommand(t *testing.T) {
	path := installRecognizerStub(t, "fake-recognizer", "exit 0")

	argv, ok := ResolveCommand("fake-recognizer --model 'small zh'")
	require.True(t, ok)
	require.Equal(t, []string{path, "--model", "small zh"}, argv)

	_, ok = ResolveCommand("definitely-not-a-real-recognizer")
	require.False(t, ok)

	_, ok = ResolveCommand("   ")
	require.False(t, ok)
}

func TestAcquireCapabilityDetection(t *testing.T) {
	installRecognizerStub(t, "fake-recognizer", "exit 0")

	cfg := config.Default().Engine
	cfg.Command = "fake-recognizer"
	handle, ok := Acquire(cfg, nil)
	require.True(t, ok)
	require.NotNil(t, handle)
	require.Equal(t, DefaultSettings(), handle.(*Process).settings)

	cfg.Command = "definitely-not-a-real-recognizer"
	handle, ok = Acquire(cfg, nil)
	require.False(t, ok)
	require.Nil(t, handle)

	cfg.Backend = "none"
	_, ok = Acquire(cfg, nil)
	require.False(t, ok)
}

func TestProcessRunEmitsOrderedEvents(t *testing.T) {
	installRecognizerStub(t, "fake-recognizer", `
[[ "$*" == *"--lang zh-CN"* ]] || exit 3
[[ "${SPEACH_CONTINUOUS}" == "true" ]] || exit 4
echo '{"type":"start"}'
echo '{"type":"result","results":[{"final":true,"alternatives":[{"transcript":" 你好 ","confidence":0.9}]}]}'
`)
	argv, ok := ResolveCommand("fake-recognizer")
	require.True(t, ok)

	p := NewProcess(argv, DefaultSettings(), nil)
	first, err := p.Start()
	require.NoError(t, err)
	require.Equal(t, Run(1), first)

	started := nextEvent(t, p.Events())
	require.Equal(t, KindStarted, started.Kind)
	require.Equal(t, first, started.Run)
	result := nextEvent(t, p.Events())
	require.Equal(t, KindResult, result.Kind)
	require.Equal(t, first, result.Run)
	text, confidence, ok := result.Latest()
	require.True(t, ok)
	require.Equal(t, "你好", text)
	require.InDelta(t, 0.9, confidence, 1e-9)
	ended := nextEvent(t, p.Events())
	require.Equal(t, KindEnded, ended.Kind)
	require.Equal(t, first, ended.Run)

	second, err := p.Start()
	require.NoError(t, err, "a finished run must allow the next segment")
	require.Equal(t, Run(2), second)
	started = nextEvent(t, p.Events())
	require.Equal(t, KindStarted, started.Kind)
	require.Equal(t, second, started.Run)
}

func TestProcessStartWhileRunningIsBusyAndStopEndsRun(t *testing.T) {
	installRecognizerStub(t, "fake-recognizer", `
trap 'exit 0' INT TERM
echo '{"type":"start"}'
while true; do sleep 0.1; done
`)
	argv, ok := ResolveCommand("fake-recognizer")
	require.True(t, ok)

	p := NewProcess(argv, DefaultSettings(), nil)
	_, err := p.Start()
	require.NoError(t, err)
	require.Equal(t, KindStarted, nextEvent(t, p.Events()).Kind)

	run, err := p.Start()
	require.True(t, IsBusy(err))
	require.Zero(t, run)

	require.NoError(t, p.Stop())
	require.Equal(t, KindEnded, nextEvent(t, p.Events()).Kind)
}

func TestProcessFailedExitReportsError(t *testing.T) {
	installRecognizerStub(t, "fake-recognizer", `
echo '{"type":"start"}'
exit 7
`)
	argv, ok := ResolveCommand("fake-recognizer")
	require.True(t, ok)

	p := NewProcess(argv, DefaultSettings(), nil)
	_, err := p.Start()
	require.NoError(t, err)
	require.Equal(t, KindStarted, nextEvent(t, p.Events()).Kind)

	ev := nextEvent(t, p.Events())
	require.Equal(t, KindError, ev.Kind)
	require.Equal(t, "engine-exit", ev.Code)
	require.Equal(t, KindEnded, nextEvent(t, p.Events()).Kind)
}

func TestProcessStartSpawnFailureIsSynchronous(t *testing.T) {
	p := NewProcess([]string{filepath.Join(t.TempDir(), "missing")}, DefaultSettings(), nil)
	_, err := p.Start()
	require.Error(t, err)
	require.Contains(t, err.Error(), "start recognizer")
	require.False(t, IsBusy(err))

	require.NoError(t, p.Stop())
}

func TestProcessCloseUnblocksUndrainedRunAndRejectsStart(t *testing.T) {
	installRecognizerStub(t, "fake-recognizer", `
for i in $(seq 1 200); do
  echo '{"type":"result","results":[{"final":true,"alternatives":[{"transcript":"x"}]}]}'
done
`)
	argv, ok := ResolveCommand("fake-recognizer")
	require.True(t, ok)

	p := NewProcess(argv, DefaultSettings(), nil)
	_, err := p.Start()
	require.NoError(t, err)

	// Nobody drains the stream: the reader fills the buffer and must not stay blocked.
	require.Eventually(t, func() bool {
		return len(p.Events()) == eventBuffer
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.running
	}, 3*time.Second, 10*time.Millisecond)

	_, err = p.Start()
	require.ErrorIs(t, err, ErrClosed)
}
