package tutor

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

// RenderConfirmation is the message that introduces a new task.
func RenderConfirmation(t *Task) string {
	var b strings.Builder
	if t.Kind == KindAssessment {
		b.WriteString("Okay, here's a question for you:\n\n")
		b.WriteString("**Type:** " + t.Type + "\n")
		b.WriteString("**Question:** " + t.Question)
	} else {
		b.WriteString("Okay, here's an exercise for you:\n\n")
		b.WriteString("**Type:** " + t.Type + "\n")
		b.WriteString("**Instructions:** " + t.Instructions)
		if t.Question != "" {
			b.WriteString("\n**Question:** " + t.Question)
		}
	}

	switch body := t.Body.(type) {
	case Choice:
		if len(body.Options) > 0 {
			b.WriteString("\n\n**Options:**\n")
			b.WriteString(optionLines(body.Options))
		}
	case Ordering:
		if len(body.Items) > 0 {
			b.WriteString("\n\n**Items to order:**\n")
			lines := lo.Map(body.Items, func(item string, _ int) string { return "- " + item })
			b.WriteString(strings.Join(lines, "\n"))
		}
	case FreeText:
		if body.ExpectedFormat != "" && t.Kind == KindExercise {
			b.WriteString("\n\n**Expected format:** " + body.ExpectedFormat)
		}
	}
	return b.String()
}

func optionLines(opts []Option) string {
	lines := lo.Map(opts, func(o Option, _ int) string {
		return "- (" + o.ID + ") " + o.Text
	})
	return strings.Join(lines, "\n")
}

// taskDetails describes the task for the evaluation prompt.
func taskDetails(t *Task) string {
	var b strings.Builder
	b.WriteString("Type: " + t.Type + "\n")
	b.WriteString("Instructions/Question: " + t.Prompt())
	if t.Kind == KindExercise && t.Question != "" && t.Question != t.Prompt() {
		b.WriteString("\nQuestion: " + t.Question)
	}

	switch body := t.Body.(type) {
	case Choice:
		if len(body.Options) > 0 {
			b.WriteString("\nOptions:\n")
			b.WriteString(optionLines(body.Options))
		}
	case Ordering:
		items, err := json.Marshal(body.Items)
		if err != nil || body.Items == nil {
			items = []byte("[]")
		}
		b.WriteString("\nItems to Order: " + string(items))
	case FreeText:
	}
	return b.String()
}

// correctAnswerDetails is the reference answer for the evaluation prompt.
func correctAnswerDetails(t *Task) string {
	var parts []string
	switch body := t.Body.(type) {
	case Choice:
		if body.CorrectAnswer != "" {
			parts = append(parts, "Correct Answer/Solution: "+body.CorrectAnswer)
		}
		if body.CorrectID != "" {
			parts = append(parts, "Correct Answer ID: "+body.CorrectID)
		}
	case Ordering:
		if body.CorrectAnswer != "" {
			parts = append(parts, "Correct Answer/Solution: "+body.CorrectAnswer)
		}
	case FreeText:
		if body.CorrectAnswer != "" {
			parts = append(parts, "Correct Answer/Solution: "+body.CorrectAnswer)
		}
		if body.ExpectedFormat != "" {
			parts = append(parts, "Expected Format: "+body.ExpectedFormat)
		}
	}
	if len(parts) == 0 {
		return "N/A"
	}
	return strings.Join(parts, "\n")
}
