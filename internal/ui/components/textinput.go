package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// TextInput is a single-line input that remembers what was submitted
// with Take; up and down step through those earlier entries.
type TextInput struct {
	textinput.Model

	sent []string
	pos  int // len(sent) when not browsing
}

// NewTextInput returns a focused input. A charLimit of 0 keeps the
// bubbles default.
func NewTextInput(placeholder string, charLimit int) TextInput {
	m := textinput.New()
	m.Placeholder = placeholder
	if charLimit > 0 {
		m.CharLimit = charLimit
	}
	m.Focus()
	return TextInput{Model: m}
}

func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			t.browse(-1)
			return t, nil
		case "down":
			t.browse(1)
			return t, nil
		}
	}

	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// browse moves through the submitted entries; stepping past the newest
// one clears the input.
func (t *TextInput) browse(step int) {
	next := t.pos + step
	if next < 0 || next > len(t.sent) {
		return
	}
	t.pos = next
	if next == len(t.sent) {
		t.SetValue("")
	} else {
		t.SetValue(t.sent[next])
	}
	t.CursorEnd()
}

// Take returns the trimmed value and clears the input. Non-empty values
// are kept for browsing.
func (t *TextInput) Take() string {
	v := strings.TrimSpace(t.Value())
	if v != "" {
		t.sent = append(t.sent, v)
	}
	t.pos = len(t.sent)
	t.Reset()
	return v
}
