// Package config resolves, parses, validates, and defaults speach configuration.
package config

// Config is the fully materialized runtime configuration used by speach.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
	Display   DisplayConfig   `yaml:"display"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Bus       BusConfig       `yaml:"bus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Audio     AudioConfig     `yaml:"audio"`
}

// LogConfig controls the JSONL runtime logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// EngineConfig selects the recognition engine binding. The recognition profile
// itself (zh-CN, continuous, final results only) is fixed.
type EngineConfig struct {
	// Backend is one of: command, none.
	Backend string `yaml:"backend"`
	Command string `yaml:"command"`
}

// DisplayConfig controls the language of user-facing error and indicator text.
type DisplayConfig struct {
	// Language is one of: zh, en.
	Language string `yaml:"language"`
}

// FallbackConfig controls where degraded-capability requests are announced.
type FallbackConfig struct {
	GRPCEndpoint   string `yaml:"grpc_endpoint"`
	GRPCService    string `yaml:"grpc_service"`
	ProbeTimeoutMS int    `yaml:"probe_timeout_ms"`
	Subject        string `yaml:"subject"`
}

// BusConfig controls optional NATS publication of controller state.
type BusConfig struct {
	Servers        []string `yaml:"servers"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	PrometheusBind string `yaml:"prometheus_bind"`
}

// IndicatorConfig controls desktop notifications for listening/error state.
type IndicatorConfig struct {
	Enable         bool   `yaml:"enable"`
	SoundEnable    bool   `yaml:"sound_enable"`
	DesktopAppName string `yaml:"desktop_app_name"`
	ErrorTimeoutMS int    `yaml:"error_timeout_ms"`
}

// AudioConfig names the input source checked by doctor.
type AudioConfig struct {
	Input string `yaml:"input"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Line    int
	Message string
}
