package components

import (
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/techtree/internal/ui/theme"
)

// Choice is one selectable option.
type Choice struct {
	ID   string
	Text string
}

// ChoiceList lets the learner pick one option with arrows or number keys.
type ChoiceList struct {
	Options  []Choice
	Selected int
}

// NewChoiceList creates a choice list with the first option selected.
func NewChoiceList(options []Choice) ChoiceList {
	return ChoiceList{Options: options}
}

// Update handles navigation. It reports the chosen option when the learner
// presses enter or a number key.
func (c ChoiceList) Update(msg tea.Msg) (ChoiceList, *Choice) {
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok || len(c.Options) == 0 {
		return c, nil
	}

	key := kmsg.String()
	switch key {
	case "up", "k":
		if c.Selected > 0 {
			c.Selected--
		}
	case "down", "j":
		if c.Selected < len(c.Options)-1 {
			c.Selected++
		}
	case "enter":
		chosen := c.Options[c.Selected]
		return c, &chosen
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(c.Options) {
			c.Selected = n - 1
			chosen := c.Options[c.Selected]
			return c, &chosen
		}
	}
	return c, nil
}

// View renders the options.
func (c ChoiceList) View() string {
	var b strings.Builder
	for i, opt := range c.Options {
		line := fmt.Sprintf("%d) (%s) %s", i+1, opt.ID, opt.Text)
		if i == c.Selected {
			b.WriteString(theme.Selected.Render("▸ " + line))
		} else {
			b.WriteString(theme.Unselected.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
