package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/config"
	"github.com/aristath/agentorch/internal/observability"
	"github.com/aristath/agentorch/internal/orchestrator"
	"github.com/aristath/agentorch/internal/session"
	"github.com/aristath/agentorch/internal/tui"
)

var (
	askChatID string
	askWatch  bool
	askPlan   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a query with the configured agents",
	Long: `Ask decomposes the query into subtasks, assigns each to an agent,
runs them in dependency order and prints the combined answer.

With --watch a live view of the subtasks is shown while the session runs.
Press q once it finishes to print the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		chatID := askChatID
		if chatID == "" {
			chatID = uuid.NewString()
		}
		return withSystem(func(ctx context.Context, _ *config.Config, sys *orchestrator.System) error {
			var (
				answer orchestrator.Answer
				err    error
			)
			if askWatch {
				answer, err = askWithView(ctx, sys, chatID, query)
			} else {
				answer, err = sys.Engine.Ask(ctx, chatID, query)
			}
			if answer.SessionID != "" {
				printAnswer(answer, askPlan)
			}
			return err
		})
	},
}

func init() {
	askCmd.Flags().StringVar(&askChatID, "chat", "", "Chat id to group sessions under (default: random)")
	askCmd.Flags().BoolVarP(&askWatch, "watch", "w", false, "Show a live view of the session")
	askCmd.Flags().BoolVar(&askPlan, "plan", false, "Print every subtask with its agent and result status")
	rootCmd.AddCommand(askCmd)
}

type askResult struct {
	answer orchestrator.Answer
	err    error
}

// askWithView runs the session while the watch view renders its events.
// Closing the view early cancels the session.
func askWithView(ctx context.Context, sys *orchestrator.System, chatID, query string) (orchestrator.Answer, error) {
	observability.Discard()

	sub := sys.Bus.SubscribeAll(256)
	defer sys.Bus.Unsubscribe(sub)

	askCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan askResult, 1)
	go func() {
		a, err := sys.Engine.Ask(askCtx, chatID, query)
		done <- askResult{answer: a, err: err}
	}()

	final, err := tea.NewProgram(tui.New(sub), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-done
		return orchestrator.Answer{}, fmt.Errorf("watch view: %w", err)
	}
	if m, ok := final.(tui.Model); !ok || !m.Finished() {
		printStatus("!", "watch view closed before the session finished; cancelling", color.FgYellow)
		cancel()
	}

	res := <-done
	return res.answer, res.err
}

func printAnswer(a orchestrator.Answer, withPlan bool) {
	switch a.Status {
	case session.StatusCompleted:
		printStatus("✓", fmt.Sprintf("Session %s completed", a.SessionID), color.FgGreen)
	default:
		printStatus("✗", fmt.Sprintf("Session %s %s", a.SessionID, a.Status), color.FgRed)
	}
	if a.UsedFallback {
		printStatus("!", "The plan could not be parsed; the query ran as a single subtask", color.FgYellow)
	}

	if withPlan {
		fmt.Println()
		for _, st := range a.Subtasks {
			agent := st.AssignedAgentID
			if agent == "" {
				agent = "-"
			}
			fmt.Printf("  %s %-12s %-12s %s\n", subtaskIcon(st.Status), st.ID, agent, st.Description)
			if len(st.Dependencies) > 0 {
				fmt.Printf("    after: %s\n", strings.Join(st.Dependencies, ", "))
			}
		}
	}

	if a.Text != "" {
		fmt.Println()
		fmt.Println(a.Text)
	}
}

func subtaskIcon(s session.SubtaskStatus) string {
	switch s {
	case session.SubtaskCompleted:
		return color.New(color.FgGreen).Sprint("✓")
	case session.SubtaskFailed:
		return color.New(color.FgRed).Sprint("✗")
	case session.SubtaskInProgress:
		return color.New(color.FgYellow).Sprint("●")
	default:
		return color.New(color.FgHiBlack).Sprint("○")
	}
}
