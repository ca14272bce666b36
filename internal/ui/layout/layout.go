// Package layout renders the frame around every screen.
package layout

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/ui/theme"
)

// Smallest terminal the frame renders in.
const (
	MinWidth  = 60
	MinHeight = 16
)

// KeyHint is a key binding shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// Frame is the chrome around a screen body: a header bar with the app
// name, screen title and status, and a footer of key hints.
type Frame struct {
	Title  string
	Status string
	Hints  []KeyHint
}

// Render draws the frame at width x height and fills the space between
// header and footer with body, which is given the size it may use.
func (f Frame) Render(width, height int, body func(width, height int) string) string {
	if width < MinWidth || height < MinHeight {
		return tooSmall(width, height)
	}

	header := bar(width).Render(f.headerLine(width - 4))
	footer := bar(width).Render("  " + f.hintLine())

	inner := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	content := lipgloss.NewStyle().
		Width(width).
		Height(inner).
		MaxHeight(inner).
		Render(body(width, inner))

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

// headerLine centers the title between the app name and the status.
func (f Frame) headerLine(width int) string {
	name := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("  techtree")
	title := theme.Body.Render(f.Title)
	status := lipgloss.NewStyle().Foreground(theme.Accent).Render(f.Status)

	nw, tw, sw := lipgloss.Width(name), lipgloss.Width(title), lipgloss.Width(status)
	left := max((width-tw)/2-nw, 1)
	right := max(width-nw-left-tw-sw, 1)
	return name + strings.Repeat(" ", left) + title + strings.Repeat(" ", right) + status
}

func (f Frame) hintLine() string {
	keyStyle := theme.Body.Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	parts := make([]string, len(f.Hints))
	for i, h := range f.Hints {
		parts[i] = keyStyle.Render(h.Key) + " " + descStyle.Render(h.Description)
	}
	return strings.Join(parts, "   ")
}

func bar(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Background(theme.BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)
}

func tooSmall(width, height int) string {
	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Width(width).
		Height(height).
		Render(fmt.Sprintf("Terminal too small.\n\nResize to at least %d x %d\n(currently %d x %d)",
			MinWidth, MinHeight, width, height))
}
