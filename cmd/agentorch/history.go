package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agentorch/internal/config"
	"github.com/aristath/agentorch/internal/persistence"
	"github.com/aristath/agentorch/internal/session"
)

var (
	historyLimit   int
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived sessions",
	Long: `History lists finished sessions from the archive, newest first.
Pass --session to see one session's subtasks and answer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Archive.Enabled {
			return errors.New("history archive is disabled (archive.enabled: false)")
		}
		path := cfg.Archive.Path
		if path == "" {
			path = config.DefaultArchivePath()
		}

		ctx := context.Background()
		archive, err := persistence.NewSQLiteArchive(ctx, path)
		if err != nil {
			return err
		}
		defer archive.Close()

		if historySession != "" {
			return showSession(ctx, archive, historySession)
		}
		return listSessions(ctx, archive, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to list (0 for all)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show one session in detail")
	rootCmd.AddCommand(historyCmd)
}

func listSessions(ctx context.Context, archive persistence.Archive, limit int) error {
	records, err := archive.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No archived sessions.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s %s  %s  %2d subtasks  %s\n",
			sessionIcon(r.Status),
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.SubtaskCount,
			oneLine(r.Query, 60))
	}
	return nil
}

func showSession(ctx context.Context, archive persistence.Archive, id string) error {
	rec, err := archive.GetSession(ctx, id)
	if err != nil {
		return err
	}
	subtasks, err := archive.GetSubtasks(ctx, id)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	fmt.Printf("%s %s\n", sessionIcon(rec.Status), bold.Sprint(rec.ID))
	fmt.Printf("  chat:    %s\n", rec.ChatID)
	fmt.Printf("  status:  %s\n", rec.Status)
	fmt.Printf("  created: %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("  query:   %s\n", rec.Query)

	fmt.Println()
	bold.Println("Subtasks")
	for _, st := range subtasks {
		agent := st.AssignedAgentID
		if agent == "" {
			agent = "-"
		}
		fmt.Printf("  %s %-12s %-12s %s\n", subtaskIcon(st.Status), st.ID, agent, st.Description)
		if len(st.Dependencies) > 0 {
			fmt.Printf("    after:  %s\n", strings.Join(st.Dependencies, ", "))
		}
		if st.Result != "" {
			fmt.Printf("    result: %s\n", oneLine(st.Result, 80))
		}
	}

	if rec.Answer != "" {
		fmt.Println()
		bold.Println("Answer")
		fmt.Println(rec.Answer)
	}
	return nil
}

func sessionIcon(s session.Status) string {
	if s == session.StatusCompleted {
		return color.New(color.FgGreen).Sprint("✓")
	}
	return color.New(color.FgRed).Sprint("✗")
}

// oneLine flattens s and cuts it to width runes.
func oneLine(s string, width int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= width {
		return string(r)
	}
	return string(r[:width-3]) + "..."
}
