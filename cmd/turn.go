package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/tutor"
)

var turnCmd = &cobra.Command{
	Use:   "turn <message>",
	Short: "Send one message to a tutoring session and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")
		lesson, _ := cmd.Flags().GetString("lesson")
		submit, _ := cmd.Flags().GetString("submit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := newService(cmd.Context(), st)
		if err != nil {
			return err
		}

		reply, err := svc.HandleTurn(cmd.Context(), interaction.Turn{
			LearnerID:  learner,
			LessonID:   lesson,
			Message:    strings.Join(args, " "),
			Submission: interaction.Submission(submit),
		})
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		}
		fmt.Println(reply.Message)
		if reply.Mode == tutor.ModeAwaitingAnswer {
			fmt.Println()
			fmt.Println("(answer with: techtree turn --submit answer ...)")
		}
		if reply.Error != "" {
			fmt.Fprintln(os.Stderr, "warning:", reply.Error)
		}
		return nil
	},
}

func init() {
	turnCmd.Flags().StringP("learner", "l", "", "Learner ID")
	turnCmd.Flags().String("lesson", "", "Lesson ID")
	turnCmd.Flags().String("submit", string(interaction.SubmitChat), "Submission type: chat, answer or assessment")
	turnCmd.Flags().Bool("json", false, "Print the reply as JSON")
	_ = turnCmd.MarkFlagRequired("learner")
	_ = turnCmd.MarkFlagRequired("lesson")
}
