package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Engine: EngineConfig{
			Backend: "command",
			Command: "speach-engine",
		},
		Display: DisplayConfig{Language: "zh"},
		Fallback: FallbackConfig{
			GRPCEndpoint:   "",
			GRPCService:    "",
			ProbeTimeoutMS: 1500,
			Subject:        "fallback.request",
		},
		Bus: BusConfig{
			Servers:        nil,
			SubjectPrefix:  "speach",
			ConnectTimeout: 2000,
		},
		Telemetry: TelemetryConfig{PrometheusBind: ""},
		Indicator: IndicatorConfig{
			Enable:         false,
			SoundEnable:    false,
			DesktopAppName: "speach",
			ErrorTimeoutMS: 2500,
		},
		Audio: AudioConfig{Input: "default"},
	}
}
