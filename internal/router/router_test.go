package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/screen"
)

type stubScreen struct {
	title string
	inits int
	seen  []tea.Msg
}

func (s *stubScreen) Init() tea.Cmd {
	s.inits++
	return nil
}

func (s *stubScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	s.seen = append(s.seen, msg)
	return s, nil
}

func (s *stubScreen) View(int, int) string { return "view:" + s.title }
func (s *stubScreen) Title() string        { return s.title }

func TestNavigation(t *testing.T) {
	lessons := &stubScreen{title: "Lessons"}
	chat := &stubScreen{title: "Goroutines"}
	progress := &stubScreen{title: "Progress"}

	tests := []struct {
		name      string
		msg       tea.Msg
		wantDepth int
		wantTop   string
		wantTrail string
		resumes   bool
	}{
		{"push", PushScreenMsg{Screen: chat}, 2, "Goroutines", "Lessons › Goroutines", false},
		{"replace keeps depth", ReplaceScreenMsg{Screen: progress}, 2, "Progress", "Lessons › Progress", false},
		{"pop resumes", PopScreenMsg{}, 1, "Lessons", "Lessons", true},
		{"pop at bottom", PopScreenMsg{}, 1, "Lessons", "Lessons", false},
	}

	r := New(lessons)
	for _, tt := range tests {
		cmd := r.Update(tt.msg)
		if r.Depth() != tt.wantDepth {
			t.Errorf("%s: depth = %d, want %d", tt.name, r.Depth(), tt.wantDepth)
		}
		if got := r.Active().Title(); got != tt.wantTop {
			t.Errorf("%s: active = %q, want %q", tt.name, got, tt.wantTop)
		}
		if got := r.Trail(); got != tt.wantTrail {
			t.Errorf("%s: trail = %q, want %q", tt.name, got, tt.wantTrail)
		}
		if tt.resumes {
			if cmd == nil {
				t.Fatalf("%s: expected a resume command", tt.name)
			}
			if _, ok := cmd().(ResumedMsg); !ok {
				t.Errorf("%s: expected ResumedMsg", tt.name)
			}
		} else if _, isPop := tt.msg.(PopScreenMsg); isPop && cmd != nil {
			t.Errorf("%s: expected no command", tt.name)
		}
	}

	if chat.inits != 1 || progress.inits != 1 {
		t.Errorf("inits: chat %d, progress %d", chat.inits, progress.inits)
	}
	if len(lessons.seen) != 0 {
		t.Errorf("navigation messages leaked to screens: %v", lessons.seen)
	}
}

func TestUpdate_ForwardsToActive(t *testing.T) {
	bottom := &stubScreen{title: "bottom"}
	top := &stubScreen{title: "top"}
	r := New(bottom)
	r.Push(top)

	r.Update(ResumedMsg{})
	r.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	if len(top.seen) != 2 || len(bottom.seen) != 0 {
		t.Errorf("top saw %d, bottom saw %d; want 2 and 0", len(top.seen), len(bottom.seen))
	}
	if got := r.View(80, 20); got != "view:top" {
		t.Errorf("view = %q", got)
	}
}

func TestTrail_SkipsUntitled(t *testing.T) {
	r := New(&stubScreen{})
	r.Push(&stubScreen{title: "Lessons"})
	if got := r.Trail(); got != "Lessons" {
		t.Errorf("trail = %q", got)
	}
}
