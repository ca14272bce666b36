package tutor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind says which slot of the session state a task occupies.
type Kind string

const (
	KindExercise   Kind = "exercise"
	KindAssessment Kind = "assessment"
)

// Option is one answer choice of a choice task.
type Option struct {
	ID   string
	Text string
}

// Body is the type-specific part of a task.
type Body interface {
	isBody()
}

// Choice is a multiple choice or true/false task. Providers may send the
// correct option id, the answer text, or both.
type Choice struct {
	Options       []Option
	CorrectID     string
	CorrectAnswer string
}

// Ordering asks the learner to put Items in order.
type Ordering struct {
	Items         []string
	CorrectAnswer string
}

// FreeText covers short answers and every type label without a
// dedicated variant.
type FreeText struct {
	CorrectAnswer  string
	ExpectedFormat string
}

func (Choice) isBody()   {}
func (Ordering) isBody() {}
func (FreeText) isBody() {}

// Task is an exercise or assessment question issued to a learner.
// Tasks are immutable once created; they are replaced, never edited.
type Task struct {
	ID           string
	Kind         Kind
	Type         string
	Instructions string
	Question     string
	Explanation  string
	Hints        []string
	Body         Body
}

// Options returns the choices of a Choice task, or nil.
func (t *Task) Options() []Option {
	if c, ok := t.Body.(Choice); ok {
		return c.Options
	}
	return nil
}

// Prompt is the text the learner is asked to respond to.
func (t *Task) Prompt() string {
	if t.Kind == KindExercise && t.Instructions != "" {
		return t.Instructions
	}
	if t.Question != "" {
		return t.Question
	}
	return t.Instructions
}

// Summary is a one-line description used in novelty lists.
func (t *Task) Summary() string {
	s := strings.Join(strings.Fields(t.Prompt()), " ")
	if r := []rune(s); len(r) > 120 {
		s = string(r[:117]) + "..."
	}
	return s
}

// bodyFor picks the variant for a provider type label.
func bodyFor(label string) Body {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "order"), strings.Contains(l, "sequenc"):
		return Ordering{}
	case strings.Contains(l, "choice"), l == "true_false", l == "true/false", l == "boolean":
		return Choice{}
	default:
		return FreeText{}
	}
}

// taskWire is the flat JSON form providers emit and state persists.
type taskWire struct {
	ID              looseString  `json:"id,omitempty"`
	Kind            Kind         `json:"kind,omitempty"`
	Type            looseString  `json:"type"`
	Instructions    looseString  `json:"instructions,omitempty"`
	Question        looseString  `json:"question,omitempty"`
	QuestionText    looseString  `json:"question_text,omitempty"`
	Options         []optionWire `json:"options,omitempty"`
	Items           looseStrings `json:"items,omitempty"`
	CorrectAnswerID looseString  `json:"correct_answer_id,omitempty"`
	CorrectAnswer   looseString  `json:"correct_answer,omitempty"`
	ExpectedFormat  looseString  `json:"expected_solution_format,omitempty"`
	Hints           looseStrings `json:"hints,omitempty"`
	Explanation     looseString  `json:"explanation,omitempty"`
}

type optionWire struct {
	ID   looseString `json:"id"`
	Text looseString `json:"text"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	w := taskWire{
		ID:           looseString(t.ID),
		Kind:         t.Kind,
		Type:         looseString(t.Type),
		Instructions: looseString(t.Instructions),
		Hints:        toLooseStrings(t.Hints),
		Explanation:  looseString(t.Explanation),
	}
	if t.Kind == KindAssessment {
		w.QuestionText = looseString(t.Question)
	} else {
		w.Question = looseString(t.Question)
	}

	switch b := t.Body.(type) {
	case Choice:
		for _, o := range b.Options {
			w.Options = append(w.Options, optionWire{ID: looseString(o.ID), Text: looseString(o.Text)})
		}
		w.CorrectAnswerID = looseString(b.CorrectID)
		w.CorrectAnswer = looseString(b.CorrectAnswer)
	case Ordering:
		w.Items = toLooseStrings(b.Items)
		w.CorrectAnswer = looseString(b.CorrectAnswer)
	case FreeText:
		w.CorrectAnswer = looseString(b.CorrectAnswer)
		w.ExpectedFormat = looseString(b.ExpectedFormat)
	}
	return json.Marshal(w)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = w.task(w.Kind)
	return nil
}

func (w taskWire) task(kind Kind) Task {
	if kind == "" {
		kind = KindExercise
	}
	t := Task{
		ID:           string(w.ID),
		Kind:         kind,
		Type:         strings.TrimSpace(string(w.Type)),
		Instructions: string(w.Instructions),
		Question:     string(w.QuestionText),
		Explanation:  string(w.Explanation),
		Hints:        []string(w.Hints),
	}
	if t.Question == "" {
		t.Question = string(w.Question)
	}

	switch bodyFor(t.Type).(type) {
	case Choice:
		c := Choice{CorrectID: string(w.CorrectAnswerID), CorrectAnswer: string(w.CorrectAnswer)}
		for _, o := range w.Options {
			c.Options = append(c.Options, Option{ID: string(o.ID), Text: string(o.Text)})
		}
		t.Body = c
	case Ordering:
		t.Body = Ordering{Items: []string(w.Items), CorrectAnswer: string(w.CorrectAnswer)}
	default:
		t.Body = FreeText{CorrectAnswer: string(w.CorrectAnswer), ExpectedFormat: string(w.ExpectedFormat)}
	}
	return t
}

// TaskFromObject builds a task of the given kind from an extracted
// provider payload. A payload without an id gets a fresh one.
func TaskFromObject(kind Kind, obj map[string]any) (*Task, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	t := w.task(kind)
	if t.Type == "" {
		return nil, fmt.Errorf("%w: task has no type", ErrInvalidPayload)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return &t, nil
}

// looseString accepts any JSON scalar, and keeps arrays and objects as
// compact JSON text. Providers are not consistent about ids and answers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*s = looseString(buf.String())
	return nil
}

// looseStrings accepts either a list or a single value.
type looseStrings []string

func (l *looseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		var s looseString
		if err := s.UnmarshalJSON(data); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = looseStrings{string(s)}
		}
		return nil
	}
	var items []looseString
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(looseStrings, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	*l = out
	return nil
}

func toLooseStrings(ss []string) looseStrings {
	if len(ss) == 0 {
		return nil
	}
	return looseStrings(ss)
}
