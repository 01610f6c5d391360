package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnvOverrides(&base)
			warnings, err := Validate(base)
			if err != nil {
				return Loaded{}, fmt.Errorf("validate defaults: %w", err)
			}
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: append([]Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}}, warnings...),
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, err := Parse(content, base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	applyEnvOverrides(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// Parse decodes YAML content on top of base. Unknown keys are rejected.
func Parse(content []byte, base Config) (Config, error) {
	cfg := base
	if strings.TrimSpace(string(content)) == "" {
		return cfg, nil
	}

	dec := yaml.NewDecoder(strings.NewReader(string(content)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Log.Level, "SPEACH_LOG_LEVEL")
	overrideString(&cfg.Engine.Backend, "SPEACH_ENGINE_BACKEND")
	overrideString(&cfg.Engine.Command, "SPEACH_ENGINE_COMMAND")
	overrideString(&cfg.Display.Language, "SPEACH_DISPLAY_LANGUAGE")
	overrideString(&cfg.Fallback.GRPCEndpoint, "SPEACH_FALLBACK_GRPC_ENDPOINT")
	overrideInt(&cfg.Fallback.ProbeTimeoutMS, "SPEACH_FALLBACK_PROBE_TIMEOUT_MS")
	overrideStringSlice(&cfg.Bus.Servers, "SPEACH_BUS_SERVERS")
	overrideString(&cfg.Bus.Token, "SPEACH_BUS_TOKEN")
	overrideString(&cfg.Telemetry.PrometheusBind, "SPEACH_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Indicator.Enable, "SPEACH_INDICATOR_ENABLE")
}

func overrideString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(target *int, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, key string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*target = out
}
