package engine

import (
	"log/slog"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/pandagg110/speach-recognition/internal/config"
)

// Acquire returns a configured engine handle, or false when no recognition
// capability exists. It only inspects the environment and never starts anything.
func Acquire(cfg config.EngineConfig, logger *slog.Logger) (Handle, bool) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "command":
		argv, ok := ResolveCommand(cfg.Command)
		if !ok {
			if logger != nil {
				logger.Warn("recognition engine unavailable", "command", cfg.Command)
			}
			return nil, false
		}
		return NewProcess(argv, DefaultSettings(), logger), true
	default:
		return nil, false
	}
}

// ResolveCommand parses a recognizer command line and reports whether its binary resolves in PATH.
func ResolveCommand(raw string) ([]string, bool) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	argv, err := parser.Parse(raw)
	if err != nil || len(argv) == 0 {
		return nil, false
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, false
	}
	argv[0] = path
	return argv, true
}
