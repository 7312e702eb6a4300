// Package config provides configuration types and defaults for klaude.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/paths"
)

// Config holds all configuration options for klaude.
type Config struct {
	Wrapper WrapperConfig `mapstructure:"wrapper"`
	SDK     SDKConfig     `mapstructure:"sdk"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// WrapperConfig holds the orchestrator's own settings.
type WrapperConfig struct {
	// ClaudeBinary is the foreground TUI executable. Resolved via PATH
	// when not absolute.
	ClaudeBinary string `mapstructure:"claudeBinary"`

	// ProjectsDir overrides where per-session JSONL logs are written.
	// Default: <home>/projects.
	ProjectsDir string `mapstructure:"projectsDir"`

	// SocketDir overrides where instance sockets are created.
	// Default: <home>/run.
	SocketDir string `mapstructure:"socketDir"`

	Switch SwitchConfig `mapstructure:"switch"`

	// MaxAgentDepth caps the session tree: start-agent is rejected when
	// the child would sit deeper than this many edges below a root.
	MaxAgentDepth int `mapstructure:"maxAgentDepth"`

	Gpt GptConfig `mapstructure:"gpt"`
}

// SwitchConfig tunes the checkout state machine.
type SwitchConfig struct {
	// GraceSeconds is how long a TUI child gets between SIGTERM and
	// SIGKILL during a switch.
	GraceSeconds float64 `mapstructure:"graceSeconds"`
}

// GptConfig holds the three one-shot GPT backend configurations. A
// backend with an empty binaryPath is not configured.
type GptConfig struct {
	Exec      GptBackendConfig `mapstructure:"exec"`
	Stream    GptBackendConfig `mapstructure:"stream"`
	StreamEnv GptBackendConfig `mapstructure:"stream-env"`
}

// GptBackendConfig holds per-backend spawn settings.
type GptBackendConfig struct {
	BinaryPath string `mapstructure:"binaryPath"`

	// StartupRetries is the max number of spawn attempts when the child
	// exits without producing any output.
	StartupRetries int `mapstructure:"startupRetries"`

	// StartupRetryDelayMs is the linear backoff base between attempts.
	StartupRetryDelayMs int `mapstructure:"startupRetryDelayMs"`

	// StartupRetryJitterMs is the exclusive upper bound of random jitter
	// added to each retry delay.
	StartupRetryJitterMs int `mapstructure:"startupRetryJitterMs"`
}

// Configured reports whether the backend can be spawned.
func (g GptBackendConfig) Configured() bool { return g.BinaryPath != "" }

// SDKConfig is passed through to native headless runtimes.
type SDKConfig struct {
	Model           string `mapstructure:"model"`
	FallbackModel   string `mapstructure:"fallbackModel"`
	PermissionMode  string `mapstructure:"permissionMode"`
	ReasoningEffort string `mapstructure:"reasoningEffort"`

	// RunnerBinary is the headless runner executable for native agent
	// runtimes. Resolved via PATH when not absolute.
	RunnerBinary string `mapstructure:"runnerBinary"`
}

// LoggingConfig controls the wrapper's file logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // default: <home>/logs/klaude.log
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active. Default: false.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp". Default: "file".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	// Default: <home>/traces/traces.jsonl.
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0). Default: 1.0.
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ResolveProjectsDir returns the configured projects dir or the default
// under the data root.
func (w WrapperConfig) ResolveProjectsDir(home string) string {
	if w.ProjectsDir != "" {
		return w.ProjectsDir
	}
	return paths.ProjectsDir(home)
}

// ResolveSocketDir returns the configured socket dir or the default
// under the data root.
func (w WrapperConfig) ResolveSocketDir(home string) string {
	if w.SocketDir != "" {
		return w.SocketDir
	}
	return paths.RunDir(home)
}

// ResolveLogFile returns the configured log file or the default under
// the data root.
func (l LoggingConfig) ResolveLogFile(home string) string {
	if l.File != "" {
		return l.File
	}
	return paths.LogFile(home)
}

// Backend returns the configuration for one of the gpt backend kinds
// ("exec", "stream", "stream-env").
func (g GptConfig) Backend(kind string) (GptBackendConfig, bool) {
	switch kind {
	case "exec":
		return g.Exec, true
	case "stream":
		return g.Stream, true
	case "stream-env":
		return g.StreamEnv, true
	default:
		return GptBackendConfig{}, false
	}
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	return filepath.Join(paths.Home(), "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	gptDefaults := GptBackendConfig{
		StartupRetries:       3,
		StartupRetryDelayMs:  400,
		StartupRetryJitterMs: 200,
	}
	return Config{
		Wrapper: WrapperConfig{
			ClaudeBinary:  "claude",
			Switch:        SwitchConfig{GraceSeconds: 1},
			MaxAgentDepth: 3,
			Gpt: GptConfig{
				Exec:      gptDefaults,
				Stream:    gptDefaults,
				StreamEnv: gptDefaults,
			},
		},
		SDK: SDKConfig{
			PermissionMode: "bypassPermissions",
			RunnerBinary:   "klaude-runner",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from the data root at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the whole configuration for errors. Empty values that
// have defaults are valid.
func Validate(cfg Config) error {
	if err := ValidateWrapper(cfg.Wrapper); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateWrapper checks wrapper configuration for errors.
func ValidateWrapper(w WrapperConfig) error {
	if w.ClaudeBinary == "" {
		return fmt.Errorf("wrapper.claudeBinary is required")
	}
	if w.MaxAgentDepth < 1 {
		return fmt.Errorf("wrapper.maxAgentDepth must be at least 1, got %d", w.MaxAgentDepth)
	}
	if w.Switch.GraceSeconds < 0 {
		return fmt.Errorf("wrapper.switch.graceSeconds must not be negative, got %v", w.Switch.GraceSeconds)
	}
	for _, b := range []struct {
		name string
		cfg  GptBackendConfig
	}{
		{"wrapper.gpt.exec", w.Gpt.Exec},
		{"wrapper.gpt.stream", w.Gpt.Stream},
		{"wrapper.gpt.stream-env", w.Gpt.StreamEnv},
	} {
		if b.cfg.StartupRetries < 1 {
			return fmt.Errorf("%s.startupRetries must be at least 1, got %d", b.name, b.cfg.StartupRetries)
		}
		if b.cfg.StartupRetryDelayMs < 0 {
			return fmt.Errorf("%s.startupRetryDelayMs must not be negative, got %d", b.name, b.cfg.StartupRetryDelayMs)
		}
		if b.cfg.StartupRetryJitterMs < 0 {
			return fmt.Errorf("%s.startupRetryJitterMs must not be negative, got %d", b.name, b.cfg.StartupRetryJitterMs)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
			// Valid
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Klaude Configuration

wrapper:
  # Foreground TUI binary (resolved via PATH when not absolute)
  claudeBinary: claude

  # Where per-session event logs are written
  # projectsDir: ~/.klaude/projects

  # Where instance sockets are created
  # socketDir: ~/.klaude/run

  switch:
    graceSeconds: 1    # SIGTERM -> SIGKILL grace when swapping the TUI

  # Maximum depth of the agent session tree (root = 0)
  maxAgentDepth: 3

  # One-shot GPT backends. A backend with no binaryPath is disabled.
  # gpt:
  #   exec:
  #     binaryPath: /usr/local/bin/gpt-exec
  #     startupRetries: 3         # attempts when the child exits silently
  #     startupRetryDelayMs: 400  # linear backoff base
  #     startupRetryJitterMs: 200 # random extra delay per attempt
  #   stream:
  #     binaryPath: /usr/local/bin/gpt-stream
  #   stream-env:
  #     binaryPath: /usr/local/bin/gpt-stream-env

# Settings forwarded to native headless agent runtimes
sdk:
  # model: claude-sonnet-4-5
  # fallbackModel: claude-haiku-4-5
  permissionMode: bypassPermissions
  # reasoningEffort: medium
  # runnerBinary: klaude-runner

logging:
  level: info   # debug, info, warn, error
  # file: ~/.klaude/logs/klaude.log

# Distributed tracing (spans for socket requests, checkouts, spawns)
# tracing:
#   enabled: false
#   exporter: file                 # none, file, stdout, otlp
#   file_path: ~/.klaude/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # for the otlp exporter
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
