package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/orchestrator"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the configured agents and their capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		dir, err := orchestrator.Directory(cfg)
		if err != nil {
			return err
		}
		defs, err := dir.All(context.Background())
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		for _, d := range defs {
			ac, _ := cfg.Agent(d.ID)
			model := ac.Model
			if model == "" {
				model = cfg.Providers[ac.Provider].Model
			}
			if model == "" {
				model = "default"
			}

			marker := " "
			if d.ID == cfg.OrchestratorAgent {
				marker = color.New(color.FgCyan).Sprint("*")
			}
			fmt.Printf("%s %s (%s)\n", marker, bold.Sprint(d.ID), d.Role)
			if d.Name != d.ID {
				fmt.Printf("    name:     %s\n", d.Name)
			}
			if d.Description != "" {
				fmt.Printf("    about:    %s\n", d.Description)
			}
			fmt.Printf("    provider: %s/%s\n", ac.Provider, model)
			if len(d.Capabilities) > 0 {
				ids := make([]string, len(d.Capabilities))
				for i, c := range d.Capabilities {
					ids[i] = c.ID
				}
				fmt.Printf("    can:      %s\n", strings.Join(ids, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}
