package tutor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/samber/lo"
)

const (
	summaryLimit = 500
	excerptLimit = 1000
)

const classifySystemPrompt = `You classify what a learner wants during a lesson with an AI tutor.

Choose exactly one intent:
- "request_exercise": the learner wants a practice exercise or problem to work on.
- "request_assessment": the learner wants to be quizzed or assessed on the lesson.
- "chatting": anything else, including questions about the material, greetings and comments.

Respond with a single JSON object and nothing else:
{"intent": "<intent>", "reasoning": "<one sentence>"}`

var classifyUserTemplate = template.Must(template.New("classify").Parse(`Topic: {{.Lesson.Topic}}
Lesson: {{.Lesson.Title}}
Knowledge level: {{.Lesson.KnowledgeLevel}}

Lesson summary:
{{.Summary}}

Recent conversation:
{{.History}}

Active task: {{.ActiveTask}}

Learner message:
{{.Message}}`))

const exerciseSystemPrompt = `You write practice exercises for a lesson taught by an AI tutor.

Write one exercise that checks understanding of the lesson content at the learner's knowledge level.
Supported types are "multiple_choice", "true_false", "short_answer" and "ordering".

Respond with a single JSON object and nothing else, using these fields:
- "id": a short unique identifier
- "type": the exercise type
- "instructions": what the learner should do
- "question": the question, if separate from the instructions
- "options": for choice types, a list of {"id": "A", "text": "..."}
- "items": for ordering, the items to put in order (shuffled)
- "correct_answer_id": for choice types, the id of the correct option
- "correct_answer": for other types, the reference answer or correct order
- "expected_solution_format": how the learner should format the answer
- "hints": optional list of hints
- "explanation": why the correct answer is correct`

const assessmentSystemPrompt = `You write assessment questions for a lesson taught by an AI tutor.

Write one question that assesses mastery of the lesson content at the learner's knowledge level.
Supported types are "multiple_choice", "true_false" and "short_answer".

Respond with a single JSON object and nothing else, using these fields:
- "id": a short unique identifier
- "type": the question type
- "question_text": the question
- "options": for choice types, a list of {"id": "A", "text": "..."}
- "correct_answer_id": for choice types, the id of the correct option
- "correct_answer": for other types, the reference answer
- "explanation": why the correct answer is correct`

var taskUserTemplate = template.Must(template.New("task").Parse(`Topic: {{.Lesson.Topic}}
Lesson: {{.Lesson.Title}}
Knowledge level: {{.Lesson.KnowledgeLevel}}
Syllabus context: {{.Syllabus}}

Lesson content excerpt:
{{.Excerpt}}

Previously generated {{.Noun}} (do not repeat these):
{{.Prior}}

Write a new {{.Singular}} now.`))

const chatSystemPrompt = `You are a patient, encouraging tutor. Answer the learner's message using the lesson content.
Explain clearly at the learner's knowledge level, keep answers focused, and ask a short follow-up question when it helps.
If the learner asks about something outside the lesson, answer briefly and steer back to the lesson.`

var chatUserTemplate = template.Must(template.New("chat").Parse(`Topic: {{.Lesson.Topic}}
Lesson: {{.Lesson.Title}}
Knowledge level: {{.Lesson.KnowledgeLevel}}
Syllabus context: {{.Syllabus}}
{{- if .Outline}}

Course outline:
{{.Outline}}
{{- end}}

Lesson content excerpt:
{{.Excerpt}}

Conversation so far:
{{.History}}

Learner: {{.Message}}`))

const evaluateSystemPrompt = `You grade a learner's answer to a lesson task.

Compare the answer with the correct answer details. Give partial credit where the answer is partly right.
Respond with a single JSON object and nothing else:
{"score": <number from 0.0 to 1.0>, "is_correct": <true|false>, "feedback": "<encouraging feedback addressed to the learner>", "explanation": "<optional explanation>"}`

var evaluateUserTemplate = template.Must(template.New("evaluate").Parse(`Topic: {{.Lesson.Topic}}
Lesson: {{.Lesson.Title}}
Knowledge level: {{.Lesson.KnowledgeLevel}}

Task type: {{.TaskType}}
Task details:
{{.Details}}

Correct answer details:
{{.Correct}}

Learner's answer:
{{.Answer}}`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func (t *Tutor) buildClassifyMessage(in Input) (string, error) {
	active := "None"
	if in.Task != nil {
		active = fmt.Sprintf("%s (%s)", in.Task.Kind, in.Task.Type)
	}
	return render(classifyUserTemplate, struct {
		Lesson     Lesson
		Summary    string
		History    string
		ActiveTask string
		Message    string
	}{
		Lesson:     in.Lesson,
		Summary:    truncate(in.Lesson.Exposition, summaryLimit),
		History:    formatHistory(lastN(priorHistory(in), t.cfg.HistoryWindow)),
		ActiveTask: active,
		Message:    in.Message,
	})
}

func (t *Tutor) buildTaskMessage(in Input, kind Kind) (string, error) {
	noun, singular, prior := "exercises", "exercise", in.PriorExercises
	if kind == KindAssessment {
		noun, singular, prior = "assessment questions", "assessment question", in.PriorAssessments
	}
	return render(taskUserTemplate, struct {
		Lesson   Lesson
		Syllabus string
		Excerpt  string
		Noun     string
		Singular string
		Prior    string
	}{
		Lesson:   in.Lesson,
		Syllabus: syllabusContext(in.Lesson),
		Excerpt:  truncate(in.Lesson.Exposition, excerptLimit),
		Noun:     noun,
		Singular: singular,
		Prior:    t.noveltyList(prior),
	})
}

func (t *Tutor) buildChatMessage(in Input, message string) (string, error) {
	return render(chatUserTemplate, struct {
		Lesson   Lesson
		Syllabus string
		Outline  string
		Excerpt  string
		History  string
		Message  string
	}{
		Lesson:   in.Lesson,
		Syllabus: syllabusContext(in.Lesson),
		Outline:  formatOutline(in.Lesson.Outline),
		Excerpt:  truncate(in.Lesson.Exposition, excerptLimit),
		History:  formatHistory(lastN(in.History[:len(in.History)-1], t.cfg.HistoryWindow)),
		Message:  message,
	})
}

func buildEvaluateMessage(in Input, answer string) (string, error) {
	taskType := "Exercise"
	if in.Task.Kind == KindAssessment {
		taskType = "Assessment Question"
	}
	return render(evaluateUserTemplate, struct {
		Lesson   Lesson
		TaskType string
		Details  string
		Correct  string
		Answer   string
	}{
		Lesson:   in.Lesson,
		TaskType: taskType,
		Details:  taskDetails(in.Task),
		Correct:  correctAnswerDetails(in.Task),
		Answer:   answer,
	})
}

// priorHistory drops the current message from the end of the window.
func priorHistory(in Input) []Message {
	h := in.History
	if n := len(h); n > 0 && h[n-1].Role == RoleUser && h[n-1].Content == in.Message {
		return h[:n-1]
	}
	return h
}

func lastN(msgs []Message, n int) []Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func formatHistory(msgs []Message) string {
	if len(msgs) == 0 {
		return "(no previous messages)"
	}
	lines := lo.Map(msgs, func(m Message, _ int) string {
		return capitalize(m.Role) + ": " + m.Content
	})
	return strings.Join(lines, "\n")
}

func formatOutline(outline []OutlineModule) string {
	lines := lo.FilterMap(outline, func(m OutlineModule, _ int) (string, bool) {
		if m.Title == "" {
			return "", false
		}
		if len(m.Lessons) == 0 {
			return "- " + m.Title, true
		}
		return "- " + m.Title + ": " + strings.Join(m.Lessons, ", "), true
	})
	return strings.Join(lines, "\n")
}

func syllabusContext(l Lesson) string {
	module := l.ModuleTitle
	if module == "" {
		module = "N/A"
	}
	lesson := l.Title
	if lesson == "" {
		lesson = "N/A"
	}
	return fmt.Sprintf("Module: %s, Lesson: %s", module, lesson)
}

// noveltyList renders the most recent generated items as a JSON array.
func (t *Tutor) noveltyList(items []GeneratedItem) string {
	n := t.cfg.NoveltyWindow
	if n <= 0 || len(items) == 0 {
		return "[]"
	}
	if len(items) > n {
		items = items[len(items)-n:]
	}
	summaries := lo.Map(items, func(g GeneratedItem, _ int) string { return g.Summary })
	data, err := json.Marshal(summaries)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
