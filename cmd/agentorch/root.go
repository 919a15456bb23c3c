package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/backend"
	"github.com/aristath/agentorch/internal/config"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/orchestrator"
)

// shutdownTimeout bounds how long Close may take after an interrupt.
const shutdownTimeout = 10 * time.Second

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "agentorch",
	Short: "Multi-agent task orchestrator",
	Long: `agentorch answers a query by asking an orchestrator agent to break it
into subtasks, matching each subtask to the agent whose capabilities fit
best, running independent subtasks in parallel batches and combining the
results into one answer.

Configuration is read from the global file (see "agentorch config path"),
then from the nearest .agentorch.yaml, then from AGENTORCH_* variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogging(nil)
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Global config file (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig reads the global and project files, honouring --config.
func loadConfig() (*config.Config, error) {
	global := configPath
	if global == "" {
		global = config.GlobalPath()
	}
	cfg, err := config.Load(global, config.FindProjectConfig())
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)
	return cfg, nil
}

// configureLogging applies flags over the configured log settings.
func configureLogging(cfg *config.Config) {
	opts := observability.Options{Level: "info", Format: "text", Output: os.Stderr}
	if cfg != nil {
		opts.Level, opts.Format = cfg.Log.Level, cfg.Log.Format
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFormat != "" {
		opts.Format = logFormat
	}
	observability.Configure(opts)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withSystem builds the orchestrator, runs fn and tears everything down.
// Agent processes are killed as soon as the context is cancelled.
func withSystem(fn func(ctx context.Context, cfg *config.Config, sys *orchestrator.System) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sys, err := orchestrator.Build(ctx, cfg, orchestrator.Options{})
	if err != nil {
		return err
	}

	go killOnCancel(ctx, sys.Processes)

	if cfg.Engine.WatchPrompts {
		go func() {
			if err := sys.Prompts.Watch(ctx); err != nil {
				observability.Logger().Warn("prompt watcher stopped", "error", err)
			}
		}()
	}

	runErr := fn(ctx, cfg, sys)

	closed := make(chan error, 1)
	go func() { closed <- sys.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			observability.Logger().Warn("shutdown", "error", err)
		}
	case <-time.After(shutdownTimeout):
		observability.Logger().Warn("shutdown timed out")
	}
	return runErr
}

// killOnCancel kills every tracked agent process once ctx is done.
func killOnCancel(ctx context.Context, pm *backend.ProcessManager) {
	<-ctx.Done()
	if err := pm.KillAll(); err != nil {
		observability.Logger().Warn("killing agent processes", "error", err)
	}
}

// printStatus prints a colored status line.
func printStatus(symbol, message string, attr color.Attribute) {
	fmt.Printf("%s %s\n", color.New(attr).Sprint(symbol), message)
}
