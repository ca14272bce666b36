package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/abhisek/techtree/internal/interaction"
	"github.com/abhisek/techtree/internal/llm"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

var previewCmd = &cobra.Command{
	Use:   "preview <lesson.yaml>",
	Short: "Preview generated exercises or assessments for a lesson file (no database)",
	Long: `Generate and interactively answer tasks for a lesson read from a YAML file.

This is a stateless developer tool: no database, no progress, no events.
Useful for evaluating task quality and prompt changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("lesson", "", "Lesson ID within the file (default: the first lesson)")
	previewCmd.Flags().String("kind", string(tutor.KindExercise), "Task kind: exercise or assessment")
	previewCmd.Flags().Int("count", 3, "Number of tasks to generate")
}

func runPreview(cmd *cobra.Command, args []string) error {
	lessonID, _ := cmd.Flags().GetString("lesson")
	kindVal, _ := cmd.Flags().GetString("kind")
	count, _ := cmd.Flags().GetInt("count")
	ctx := cmd.Context()

	lesson, err := readLesson(args[0], lessonID)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, nil, logger)
	if err != nil {
		return fmt.Errorf("LLM provider: %w", err)
	}
	t := tutor.New(provider, cfg.Tutor, logger.Named("tutor"))

	generate := t.GenerateExercise
	switch tutor.Kind(strings.ToLower(kindVal)) {
	case tutor.KindExercise:
	case tutor.KindAssessment:
		generate = t.GenerateAssessment
	default:
		return fmt.Errorf("invalid kind %q: must be exercise or assessment", kindVal)
	}

	scanner := bufio.NewScanner(os.Stdin)
	state := tutor.NewState()

	fmt.Printf("Lesson: %s (%s)\n", lesson.Title, lesson.ModuleTitle)
	fmt.Printf("Generating %d %s task(s)...\n\n", count, kindVal)

	var scores []float64
	for i := 1; i <= count; i++ {
		state.BeginTurn("", nil)
		state.Apply(generate(ctx, state.Input(lesson)))
		if state.ActiveTask() == nil {
			fmt.Printf("Task %d: generation failed: %s\n\n", i, state.ErrorMessage)
			continue
		}

		fmt.Printf("── Task %d/%d ──\n", i, count)
		fmt.Println(state.NewAssistantMessage)

		fmt.Print("\nYour answer: ")
		if !scanner.Scan() {
			fmt.Println("\n(input closed)")
			break
		}
		answer := strings.TrimSpace(scanner.Text())

		state.BeginTurn(answer, nil)
		state.Apply(t.Evaluate(ctx, state.Input(lesson)))
		fmt.Println(state.EvaluationFeedback)
		if state.ScoreUpdate != nil {
			scores = append(scores, *state.ScoreUpdate)
		}
		fmt.Println()
	}

	if len(scores) > 0 {
		fmt.Printf("── Summary: %d scored, average %.0f%% ──\n", len(scores), lo.Mean(scores)*100)
	} else {
		fmt.Println("── Summary: nothing scored ──")
	}
	return nil
}

// readLesson loads one lesson from a YAML lesson file.
func readLesson(path, id string) (tutor.Lesson, error) {
	f, err := os.Open(path)
	if err != nil {
		return tutor.Lesson{}, err
	}
	defer f.Close()

	lessons, err := parseLessons(f)
	if err != nil {
		return tutor.Lesson{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(lessons) == 0 {
		return tutor.Lesson{}, fmt.Errorf("%s: no lessons", path)
	}
	if id == "" {
		return interaction.LessonContext(&lessons[0]), nil
	}
	l, ok := lo.Find(lessons, func(l store.Lesson) bool { return l.ID == id })
	if !ok {
		ids := lo.Map(lessons, func(l store.Lesson, _ int) string { return l.ID })
		return tutor.Lesson{}, fmt.Errorf("no lesson %q in %s (have: %s)", id, path, strings.Join(ids, ", "))
	}
	return interaction.LessonContext(&l), nil
}
