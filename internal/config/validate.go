package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Engine.Backend))
	switch backend {
	case "command":
		if strings.TrimSpace(cfg.Engine.Command) == "" {
			return nil, fmt.Errorf("engine.command must not be empty when engine.backend=command")
		}
	case "none":
		warnings = append(warnings, Warning{Message: "engine.backend=none; start/stop requests will be forwarded to the fallback hook"})
	default:
		return nil, fmt.Errorf("engine.backend must be one of: command, none")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Display.Language)) {
	case "zh", "en":
	default:
		return nil, fmt.Errorf("display.language must be one of: zh, en")
	}

	if cfg.Fallback.ProbeTimeoutMS < 0 {
		return nil, fmt.Errorf("fallback.probe_timeout_ms must be >= 0")
	}
	if cfg.Bus.ConnectTimeout < 0 {
		return nil, fmt.Errorf("bus.connect_timeout_ms must be >= 0")
	}
	if len(cfg.Bus.Servers) > 0 && strings.TrimSpace(cfg.Bus.SubjectPrefix) == "" {
		return nil, fmt.Errorf("bus.subject_prefix must not be empty when bus.servers is set")
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}
