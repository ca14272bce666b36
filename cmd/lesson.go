package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/techtree/internal/store"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Manage lessons",
}

var lessonImportCmd = &cobra.Command{
	Use:   "import <file.yaml>...",
	Short: "Import lessons from YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		repo := st.LessonRepo()
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			lessons, err := parseLessons(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for i := range lessons {
				if err := repo.Upsert(cmd.Context(), &lessons[i]); err != nil {
					return err
				}
			}
			ids := lo.Map(lessons, func(l store.Lesson, _ int) string { return l.ID })
			fmt.Printf("Imported %d lesson(s) from %s: %s\n", len(lessons), path, strings.Join(ids, ", "))
		}
		return nil
	},
}

var lessonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		lessons, err := st.LessonRepo().List(cmd.Context())
		if err != nil {
			return err
		}
		if len(lessons) == 0 {
			fmt.Println("No lessons found. Import some with `techtree lesson import`.")
			return nil
		}

		fmt.Printf("%-20s  %-32s  %-24s  %s\n", "ID", "Title", "Module", "Level")
		fmt.Println(strings.Repeat("─", 90))
		for _, l := range lessons {
			fmt.Printf("%-20s  %-32s  %-24s  %s\n",
				truncate(l.ID, 20), truncate(l.Title, 32), truncate(l.ModuleTitle, 24), l.KnowledgeLevel)
		}
		return nil
	},
}

var lessonShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		l, err := st.LessonRepo().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:      %s\n", l.ID)
		fmt.Printf("Title:   %s\n", l.Title)
		fmt.Printf("Topic:   %s\n", l.Topic)
		fmt.Printf("Module:  %s\n", l.ModuleTitle)
		fmt.Printf("Level:   %s\n", l.KnowledgeLevel)
		fmt.Printf("Updated: %s\n", l.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		if len(l.Outline) > 0 {
			fmt.Println()
			fmt.Println("Outline:")
			for _, m := range l.Outline {
				fmt.Printf("  %s\n", m.Title)
				for _, title := range m.Lessons {
					fmt.Printf("    - %s\n", title)
				}
			}
		}
		fmt.Println()
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(l.Exposition)
		return nil
	},
}

// parseLessons reads a YAML stream whose documents are either one lesson or
// a list of lessons.
func parseLessons(r io.Reader) ([]store.Lesson, error) {
	dec := yaml.NewDecoder(r)
	var out []store.Lesson
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode lessons: %w", err)
		}
		if len(doc.Content) == 0 {
			continue
		}

		switch doc.Content[0].Kind {
		case yaml.SequenceNode:
			var ls []store.Lesson
			if err := doc.Decode(&ls); err != nil {
				return nil, fmt.Errorf("decode lessons: %w", err)
			}
			out = append(out, ls...)
		case yaml.MappingNode:
			var l store.Lesson
			if err := doc.Decode(&l); err != nil {
				return nil, fmt.Errorf("decode lesson: %w", err)
			}
			out = append(out, l)
		default:
			return nil, fmt.Errorf("line %d: expected a lesson or a list of lessons", doc.Content[0].Line)
		}
	}

	for i, l := range out {
		if strings.TrimSpace(l.ID) == "" {
			return nil, fmt.Errorf("lesson %d (%q) has no id", i+1, l.Title)
		}
	}
	if dup := lo.FindDuplicatesBy(out, func(l store.Lesson) string { return l.ID }); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate lesson id %q", dup[0].ID)
	}
	return out, nil
}

func init() {
	lessonCmd.AddCommand(lessonImportCmd)
	lessonCmd.AddCommand(lessonListCmd)
	lessonCmd.AddCommand(lessonShowCmd)
}
