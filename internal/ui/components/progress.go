package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/ui/theme"
)

// ScoreBar renders label, a bar filled to frac of its length and the
// percentage, in width columns. frac is clamped to [0, 1].
func ScoreBar(label string, frac float64, width int) string {
	frac = min(max(frac, 0), 1)
	pct := lipgloss.NewStyle().Foreground(theme.TextDim).Render(fmt.Sprintf("%4d%%", int(frac*100+0.5)))

	prefix := ""
	if label != "" {
		prefix = theme.Body.Render(label) + "  "
	}
	length := max(width-lipgloss.Width(prefix)-lipgloss.Width(pct)-1, 4)
	filled := int(float64(length) * frac)

	return prefix +
		theme.ProgressFilled.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", length-filled)) +
		" " + pct
}
