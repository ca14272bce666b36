package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/abhisek/techtree/internal/store"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect and reset learner progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show [learner]",
	Short: "Show progress per learner and lesson",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		learner := ""
		if len(args) == 1 {
			learner = args[0]
		}
		rows, err := st.ProgressRepo().List(cmd.Context(), learner)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No progress recorded yet.")
			return nil
		}

		fmt.Printf("%-16s  %-20s  %-12s  %8s  %9s  %s\n", "Learner", "Lesson", "Status", "Answered", "Avg score", "Updated")
		fmt.Println(strings.Repeat("─", 92))
		for _, p := range rows {
			fmt.Printf("%-16s  %-20s  %-12s  %8d  %9s  %s\n",
				truncate(p.LearnerID, 16), truncate(p.LessonID, 20), p.Status, p.Answered,
				formatScore(p), p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}

		answered := lo.SumBy(rows, func(p store.Progress) int { return p.Answered })
		total := lo.SumBy(rows, func(p store.Progress) float64 { return p.ScoreTotal })
		fmt.Println(strings.Repeat("─", 92))
		fmt.Printf("%-16s  %-20s  %-12s  %8d  %9s\n", "TOTAL", "", "", answered,
			formatScore(store.Progress{Answered: answered, ScoreTotal: total}))
		return nil
	},
}

var progressHistoryCmd = &cobra.Command{
	Use:   "history <learner> <lesson>",
	Short: "Print the conversation of a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.HistoryRepo().Recent(cmd.Context(), args[0], args[1], limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No history for this session.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("[%s] %s (%s)\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Role, e.MessageType)
			fmt.Println(e.Content)
			fmt.Println()
		}

		responses, err := st.ProgressRepo().Responses(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if len(responses) > 0 {
			fmt.Println(strings.Repeat("─", 60))
			fmt.Println("Responses")
			for _, r := range responses {
				score := "-"
				if r.Score != nil {
					score = fmt.Sprintf("%.2f", *r.Score)
				}
				fmt.Printf("  %-10s  %-18s  %5s  %s\n", r.TaskKind, r.TaskType, score, truncate(r.Answer, 40))
			}
		}
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset <learner> <lesson>",
	Short: "Delete the state, history and responses of a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.ProgressRepo().Reset(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Reset %s on %s.\n", args[0], args[1])
		return nil
	},
}

func formatScore(p store.Progress) string {
	if p.Answered == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", p.AverageScore()*100)
}

func init() {
	progressHistoryCmd.Flags().IntP("limit", "n", 0, "Show only the last N entries (0 for all)")

	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressHistoryCmd)
	progressCmd.AddCommand(progressResetCmd)
}
