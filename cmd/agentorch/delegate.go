package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/config"
	"github.com/aristath/agentorch/internal/delegate"
	"github.com/aristath/agentorch/internal/orchestrator"
)

var (
	delegateChatID string
	delegateAgent  string
)

var delegateCmd = &cobra.Command{
	Use:   "delegate --agent <id> <prompt>",
	Short: "Hand a prompt straight to one agent",
	Long: `Delegate runs the prompt on a single agent, the same way an agent
calling the ` + delegate.ToolName + ` tool would, and prints the tool's JSON
response.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, _ *config.Config, sys *orchestrator.System) error {
			resp := sys.Delegate.Delegate(ctx, delegate.Request{
				ChatID:  delegateChatID,
				AgentID: delegateAgent,
				Prompt:  strings.Join(args, " "),
			})
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if resp.Status == delegate.StatusError {
				return errors.New(resp.Error)
			}
			return nil
		})
	},
}

func init() {
	delegateCmd.Flags().StringVar(&delegateChatID, "chat", "cli", "Chat id the delegation runs under")
	delegateCmd.Flags().StringVarP(&delegateAgent, "agent", "a", "", "Target agent id")
	_ = delegateCmd.MarkFlagRequired("agent")
	rootCmd.AddCommand(delegateCmd)
}
