package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const eventBuffer = 64

// Process drives an external recognizer process. Each Start spawns one run
// (one segment); the run ends when the process exits.
type Process struct {
	argv     []string
	settings Settings
	logger   *slog.Logger
	events   chan Event

	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	closed  bool
	run     Run
}

// NewProcess creates a process-backed handle for argv.
func NewProcess(argv []string, settings Settings, logger *slog.Logger) *Process {
	return &Process{
		argv:     append([]string(nil), argv...),
		settings: settings,
		logger:   logger,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Events returns the engine event stream.
func (p *Process) Events() <-chan Event {
	return p.events
}

// Start spawns one recognizer run. It fails synchronously with ErrBusy while a
// run is active, with ErrClosed after Close, or with a wrapped spawn error.
func (p *Process) Start() (Run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.running {
		return 0, ErrBusy
	}
	if len(p.argv) == 0 {
		return 0, errors.New("recognizer command is empty")
	}

	args := append([]string(nil), p.argv[1:]...)
	args = append(args,
		"--lang", p.settings.Locale,
		"--continuous="+strconv.FormatBool(p.settings.Continuous),
		"--interim="+strconv.FormatBool(p.settings.InterimResults),
	)
	cmd := exec.Command(p.argv[0], args...)
	cmd.Env = append(os.Environ(),
		"SPEACH_LOCALE="+p.settings.Locale,
		"SPEACH_CONTINUOUS="+strconv.FormatBool(p.settings.Continuous),
		"SPEACH_INTERIM_RESULTS="+strconv.FormatBool(p.settings.InterimResults),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("recognizer stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("recognizer stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start recognizer: %w", err)
	}

	p.run++
	p.cmd = cmd
	p.running = true
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.logLines(stderr)
	}()
	go p.readRun(p.run, cmd, stdout, stderrDone)
	return p.run, nil
}

// Stop asks the active run to finish. The ended event follows once the process exits.
func (p *Process) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal recognizer: %w", err)
	}
	return nil
}

// Close interrupts the active run and stops event delivery. Events still
// pending in the reader are discarded.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Stop()
}

// readRun forwards decoded events for one run and emits ended on exit.
func (p *Process) readRun(run Run, cmd *exec.Cmd, stdout io.Reader, stderrDone <-chan struct{}) {
	sawError := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, ok := parseLine(line, p.settings.InterimResults)
		if !ok {
			p.debug("recognizer line ignored", "line", line)
			continue
		}
		if ev.Kind == KindError {
			sawError = true
		}
		ev.Run = run
		p.emit(ev)
	}
	if err := scanner.Err(); err != nil {
		p.debug("recognizer read failed", "error", err.Error())
	}

	<-stderrDone
	waitErr := cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.cmd = nil
	p.mu.Unlock()

	if waitErr != nil && !sawError && !interrupted(waitErr) {
		p.emit(Event{Run: run, Kind: KindError, Code: "engine-exit", Message: waitErr.Error()})
	}
	p.emit(Event{Run: run, Kind: KindEnded})
}

// emit delivers ev unless the handle was closed.
func (p *Process) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Process) logLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			p.debug("recognizer stderr", "line", line)
		}
	}
}

func (p *Process) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

// interrupted reports whether the run exited because Stop signalled it.
func interrupted(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	if exitErr.ExitCode() == 130 {
		return true
	}
	return strings.Contains(exitErr.Error(), "signal: interrupt")
}

type wireEvent struct {
	Type       string       `json:"type"`
	Error      string       `json:"error"`
	Message    string       `json:"message"`
	Results    []wireResult `json:"results"`
	Transcript string       `json:"transcript"`
	Confidence *float64     `json:"confidence"`
	Final      *bool        `json:"final"`
}

type wireResult struct {
	Final        *bool         `json:"final"`
	Alternatives []Alternative `json:"alternatives"`
}

// parseLine decodes one JSON line from the recognizer protocol.
func parseLine(line string, interim bool) (Event, bool) {
	var w wireEvent
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Event{}, false
	}

	switch strings.ToLower(strings.TrimSpace(w.Type)) {
	case "start", "started":
		return Event{Kind: KindStarted}, true
	case "error":
		code := strings.TrimSpace(w.Error)
		if code == "" {
			code = "unknown"
		}
		return Event{Kind: KindError, Code: code, Message: w.Message}, true
	case "result":
		results := make([]Result, 0, len(w.Results)+1)
		for _, r := range w.Results {
			final := r.Final == nil || *r.Final
			if !final && !interim {
				continue
			}
			results = append(results, Result{Final: final, Alternatives: r.Alternatives})
		}
		if len(w.Results) == 0 && w.Transcript != "" {
			final := w.Final == nil || *w.Final
			if final || interim {
				results = append(results, Result{
					Final:        final,
					Alternatives: []Alternative{{Transcript: w.Transcript, Confidence: w.Confidence}},
				})
			}
		}
		if len(results) == 0 {
			return Event{}, false
		}
		return Event{Kind: KindResult, Results: results}, true
	default:
		return Event{}, false
	}
}
