package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/ui/theme"
)

// MenuItem is one entry of a Menu. Action runs on enter.
type MenuItem struct {
	Label       string
	Description string
	Action      func() tea.Cmd
}

// Menu is a vertical list of two-line entries with one selected.
// Navigation wraps around at both ends.
type Menu struct {
	Items    []MenuItem
	Selected int
}

func NewMenu(items []MenuItem) Menu {
	return Menu{Items: items}
}

// Select moves the selection to i, clamped to the item range.
func (m *Menu) Select(i int) {
	m.Selected = min(max(i, 0), max(len(m.Items)-1, 0))
}

func (m Menu) Update(msg tea.Msg) (Menu, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || len(m.Items) == 0 {
		return m, nil
	}

	n := len(m.Items)
	switch key.String() {
	case "up", "k":
		m.Selected = (m.Selected - 1 + n) % n
	case "down", "j":
		m.Selected = (m.Selected + 1) % n
	case "home", "g":
		m.Selected = 0
	case "end", "G":
		m.Selected = n - 1
	case "enter":
		if a := m.Items[m.Selected].Action; a != nil {
			return m, a()
		}
	}
	return m, nil
}

// View renders as many entries as fit in height rows, scrolled so the
// selection is visible. A non-positive height renders everything.
func (m Menu) View(height int) string {
	const rowsPerItem = 2

	first, last := 0, len(m.Items)
	if height > 0 {
		fit := max(height/rowsPerItem, 1)
		first = max(m.Selected-fit+1, 0)
		last = min(first+fit, len(m.Items))
	}

	var b strings.Builder
	for i, item := range m.Items[first:last] {
		if first+i == m.Selected {
			b.WriteString(theme.Selected.Render("  ▸ " + item.Label))
		} else {
			b.WriteString(theme.Unselected.Render("    " + item.Label))
		}
		b.WriteString("\n" + theme.Hint.Render("      "+item.Description) + "\n")
	}
	return b.String()
}
