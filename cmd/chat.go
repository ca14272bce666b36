package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/techtree/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive tutoring app",
	Long:  "chat opens the terminal app. Without --learner it asks who is learning; without --lesson it shows the lesson picker.",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")
		lesson, _ := cmd.Flags().GetString("lesson")

		// Log lines on stderr would draw over the full-screen UI.
		if cfg.Log.File == "" {
			logger = zap.NewNop()
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := newService(cmd.Context(), st)
		if err != nil {
			return err
		}

		return app.Run(cmd.Context(), app.Options{
			Learner:  learner,
			LessonID: lesson,
			Lessons:  st.LessonRepo(),
			Progress: st.ProgressRepo(),
			Sessions: svc,
		})
	},
}

func init() {
	chatCmd.Flags().StringP("learner", "l", "", "Learner ID")
	chatCmd.Flags().String("lesson", "", "Lesson ID to open directly")
}
