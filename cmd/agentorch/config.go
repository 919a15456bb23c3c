package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration files in load order",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("global:  %s\n", globalConfigPath())
		project := config.FindProjectConfig()
		if project == "" {
			project = "(none)"
		}
		fmt.Printf("project: %s\n", project)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		displayConfig(cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Println()
			printStatus("✗", err.Error(), color.FgRed)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the global file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		printStatus("✓", "Wrote "+path, color.FgGreen)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configPathCmd, configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func globalConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GlobalPath()
}

func displayConfig(cfg *config.Config) {
	bold := color.New(color.Bold)

	bold.Println("Providers")
	for name, p := range cfg.Providers {
		fmt.Printf("  %s: type=%s", name, p.Type)
		if p.Command != "" {
			fmt.Printf(" command=%s", p.Command)
		}
		if p.Model != "" {
			fmt.Printf(" model=%s", p.Model)
		}
		if p.APIKey != "" {
			fmt.Print(" api_key=****")
		}
		if p.AWSRegion != "" {
			fmt.Printf(" aws_region=%s", p.AWSRegion)
		}
		fmt.Println()
	}

	fmt.Println()
	bold.Println("Agents")
	fmt.Printf("  orchestrator: %s\n", cfg.OrchestratorAgent)
	for _, a := range cfg.Agents {
		fmt.Printf("  %s: role=%s provider=%s capabilities=%d\n", a.ID, a.Role, a.Provider, len(a.Capabilities))
	}

	fmt.Println()
	bold.Println("Engine")
	concurrency := "unlimited"
	if cfg.Engine.MaxConcurrency > 0 {
		concurrency = fmt.Sprint(cfg.Engine.MaxConcurrency)
	}
	fmt.Printf("  max_concurrency:    %s\n", concurrency)
	fmt.Printf("  invocation_timeout: %s\n", cfg.Engine.InvocationTimeout)
	fmt.Printf("  prompts_dir:        %s\n", orNone(cfg.Engine.PromptsDir))
	fmt.Printf("  watch_prompts:      %t\n", cfg.Engine.WatchPrompts)
	fmt.Printf("  keep_sessions:      %t\n", cfg.Engine.KeepSessions)

	fmt.Println()
	bold.Println("Circuit breaker")
	fmt.Printf("  max_failures:       %d\n", cfg.Breaker.MaxFailures)
	fmt.Printf("  open_timeout:       %s\n", cfg.Breaker.OpenTimeout)
	fmt.Printf("  half_open_requests: %d\n", cfg.Breaker.HalfOpenRequests)

	fmt.Println()
	bold.Println("Archive")
	fmt.Printf("  enabled: %t\n", cfg.Archive.Enabled)
	fmt.Printf("  path:    %s\n", orNone(cfg.Archive.Path))

	fmt.Println()
	bold.Println("Log")
	fmt.Printf("  level:  %s\n", cfg.Log.Level)
	fmt.Printf("  format: %s\n", cfg.Log.Format)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
