// Package cmd wires the klaude CLI: the bare binary runs a wrapper
// instance around the foreground TUI, subcommands talk to a running
// instance over its socket or read the shared store directly.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/klaude/internal/config"
	"github.com/zjrosen/klaude/internal/format"
	"github.com/zjrosen/klaude/internal/log"
	"github.com/zjrosen/klaude/internal/paths"
	"github.com/zjrosen/klaude/internal/wrapper"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "klaude [-- tui-args...]",
	Short: "Session orchestrator for multi-agent TUI work",
	Long: `Klaude wraps the interactive TUI in a per-project orchestrator: it owns
the foreground TUI child, serves a control socket, spawns headless agent
runtimes, and keeps the session tree in a shared store.

Arguments after -- are passed through to every TUI launch:

  klaude                    # wrap a fresh TUI in the current project
  klaude -- --continue      # wrap and continue the last conversation`,
	Version:       version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runWrapper,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.klaude/config.yaml)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("wrapper.claudeBinary", defaults.Wrapper.ClaudeBinary)
	viper.SetDefault("wrapper.projectsDir", defaults.Wrapper.ProjectsDir)
	viper.SetDefault("wrapper.socketDir", defaults.Wrapper.SocketDir)
	viper.SetDefault("wrapper.switch.graceSeconds", defaults.Wrapper.Switch.GraceSeconds)
	viper.SetDefault("wrapper.maxAgentDepth", defaults.Wrapper.MaxAgentDepth)
	for kind, b := range map[string]config.GptBackendConfig{
		"exec":       defaults.Wrapper.Gpt.Exec,
		"stream":     defaults.Wrapper.Gpt.Stream,
		"stream-env": defaults.Wrapper.Gpt.StreamEnv,
	} {
		viper.SetDefault("wrapper.gpt."+kind+".binaryPath", b.BinaryPath)
		viper.SetDefault("wrapper.gpt."+kind+".startupRetries", b.StartupRetries)
		viper.SetDefault("wrapper.gpt."+kind+".startupRetryDelayMs", b.StartupRetryDelayMs)
		viper.SetDefault("wrapper.gpt."+kind+".startupRetryJitterMs", b.StartupRetryJitterMs)
	}
	viper.SetDefault("sdk.model", defaults.SDK.Model)
	viper.SetDefault("sdk.fallbackModel", defaults.SDK.FallbackModel)
	viper.SetDefault("sdk.permissionMode", defaults.SDK.PermissionMode)
	viper.SetDefault("sdk.reasoningEffort", defaults.SDK.ReasoningEffort)
	viper.SetDefault("sdk.runnerBinary", defaults.SDK.RunnerBinary)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	configPath := cfgFile
	if configPath == "" {
		configPath = filepath.Join(paths.Home(), "config.yaml")
	}
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("KLAUDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// First run: materialize a commented default config, but only at
		// the default location. An explicit --config that is missing
		// stays missing.
		if cfgFile == "" && os.IsNotExist(err) {
			if writeErr := config.WriteDefaultConfig(configPath); writeErr == nil {
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runWrapper(cmd *cobra.Command, args []string) error {
	tuiArgs, err := splitTuiArgs(cmd, args)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rootPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	home := paths.Home()
	cleanup, err := log.Init(cfg.Logging.ResolveLogFile(home))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Logging.Level))

	// Ctrl+C belongs to the foreground TUI. The wrapper stays up to
	// observe the child's exit and finalize the session.
	signal.Ignore(syscall.SIGINT)

	orch := wrapper.New(cfg, rootPath, tuiArgs)
	code, runErr := orch.Run(context.Background())
	cleanup()
	if runErr != nil {
		return runErr
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// splitTuiArgs extracts the TUI pass-through arguments. Anything after
// -- goes to the TUI verbatim; positional arguments without -- are a
// mistyped subcommand.
func splitTuiArgs(cmd *cobra.Command, args []string) ([]string, error) {
	at := cmd.ArgsLenAtDash()
	if at < 0 {
		if len(args) > 0 {
			return nil, usageErrorf("unknown command %q (TUI arguments go after --)", args[0])
		}
		return nil, nil
	}
	if at > 0 {
		return nil, usageErrorf("unexpected arguments before --: %s", strings.Join(args[:at], " "))
	}
	return args, nil
}

// usageError marks argument and flag mistakes so Execute can exit 2
// instead of the generic 1.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usageErrorf(formatStr string, args ...any) error {
	return usageError{fmt.Errorf(formatStr, args...)}
}

// Execute runs the root command. Exit codes: 0 success, 1 error,
// 2 usage error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// detectColors is called by output-producing subcommands; the root
// wrapper path must not touch the terminal the TUI inherits.
func detectColors() {
	format.DetectColorProfile()
}
