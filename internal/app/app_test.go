package app

import (
	"path/filepath"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/screens/chat"
	"github.com/abhisek/techtree/internal/screens/lessons"
	"github.com/abhisek/techtree/internal/screens/welcome"
	"github.com/abhisek/techtree/internal/store"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.LessonRepo().Upsert(t.Context(), &store.Lesson{ID: "go-101", Title: "Goroutines"}); err != nil {
		t.Fatal(err)
	}
	return Options{Lessons: st.LessonRepo(), Progress: st.ProgressRepo()}
}

func TestNewAppModel_FirstScreen(t *testing.T) {
	opts := testOptions(t)

	m, err := newAppModel(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.router.Active().(*welcome.WelcomeScreen); !ok {
		t.Errorf("no learner: got %T, want welcome", m.router.Active())
	}

	opts.Learner = "ada"
	m, err = newAppModel(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.router.Active().(*lessons.LessonsScreen); !ok {
		t.Errorf("learner only: got %T, want lessons", m.router.Active())
	}

	opts.LessonID = "go-101"
	m, err = newAppModel(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	cs, ok := m.router.Active().(*chat.ChatScreen)
	if !ok {
		t.Fatalf("learner and lesson: got %T, want chat", m.router.Active())
	}
	if cs.Title() != "Goroutines" {
		t.Errorf("chat title = %q", cs.Title())
	}

	opts.LessonID = "nope"
	if _, err := newAppModel(t.Context(), opts); err == nil {
		t.Error("expected an error for an unknown lesson")
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	opts := testOptions(t)
	opts.Learner = "ada"
	m, err := newAppModel(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}

	_, cmd := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"})
	if cmd == nil {
		t.Fatal("q should quit on the lesson picker")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce QuitMsg")
	}

	// The welcome screen takes typed text, so q is not a shortcut there.
	opts.Learner = ""
	m, err = newAppModel(t.Context(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, cmd := m.Update(tea.KeyPressMsg{Code: 'q', Text: "q"}); cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Error("q should be typed into the welcome input, not quit")
		}
	}
}
